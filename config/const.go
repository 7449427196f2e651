// Package config provides shared naming and filesystem-path constants for
// the smart selection engine and its host.
package config

// AppVersion is the version of the engine, set via -ldflags at build time.
var AppVersion string

// ServiceName is the name of the service, used to derive default paths.
const ServiceName = "smartselect"

// AppName is the display/directory name used for cache and data paths.
const AppName = "smartselect"

// LogSubDir is the sub-directory (under the user's home) used for log files
// on Unix-like systems.
const LogSubDir = ".cache/" + AppName + "/log"

// LogWinSubDir is the sub-directory (under the user cache dir) used for log
// files on Windows.
const LogWinSubDir = AppName + "\\log"

// LogExt is the file extension applied to the rotating log file.
const LogExt = ".log"

// DefaultDBSubPath is the default relative path (under the user's data
// directory) of the catalog store file.
const DefaultDBSubPath = AppName + "/smart_selection.db"

// ColorToolCacheSubDir is the default cache sub-directory the external
// color-analysis tool writes its palette files under.
const ColorToolCacheSubDir = ".cache/wallust"
