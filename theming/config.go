// Package theming implements the Theming Engine: it consumes the current
// wallpaper's palette, renders user-supplied templates to destination
// paths, and invokes reload commands, with debouncing and atomic writes.
//
// Grounded on arthur404dev-heimdall-cli's internal/theme-applier.go and
// internal/theme-cache.go (template rendering from a color map, mtime
// cache validation, atomic writes via a sibling temp file + rename,
// per-application reload) and the teacher's pkg/wallpaper/store.go
// debounce (scheduleSaveLocked/saveTimer) and pkg/wallpaper/file_manager.go
// atomic-write discipline.
package theming

import (
	"encoding/json"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/dixieflatline76/smartselect/config"
)

// MainConfig is the TOML-shaped, wallust.toml-like configuration
// enumerating color-tool integration, per spec.md §4.7.
type MainConfig struct {
	Backend     string `toml:"backend"`
	PaletteType string `toml:"palette_type"`
	CacheDir    string `toml:"cache_dir"`
}

// LoadMainConfig reads and parses a TOML main config from path.
func LoadMainConfig(path string) (MainConfig, error) {
	var mc MainConfig
	expanded, err := config.ExpandUser(path)
	if err != nil {
		return mc, err
	}
	if _, err := toml.DecodeFile(expanded, &mc); err != nil {
		return mc, err
	}
	return mc, nil
}

// TemplateDescriptor is one entry of the JSON-shaped theming config, per
// spec.md §4.7's "{name, source_path, dest_path, reload_command?,
// palette_type?}".
type TemplateDescriptor struct {
	Name           string `json:"name"`
	SourcePath     string `json:"source_path"`
	DestPath       string `json:"dest_path"`
	ReloadCommand  string `json:"reload_command,omitempty"`
	PaletteType    string `json:"palette_type,omitempty"`
}

// ThemingConfig is the JSON-shaped "theming.json" config: a list of
// template descriptors.
type ThemingConfig struct {
	Templates []TemplateDescriptor `json:"templates"`
}

// LoadThemingConfig reads and parses a JSON theming config from path.
func LoadThemingConfig(path string) (ThemingConfig, error) {
	var tc ThemingConfig
	expanded, err := config.ExpandUser(path)
	if err != nil {
		return tc, err
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		return tc, err
	}
	if err := json.Unmarshal(data, &tc); err != nil {
		return tc, err
	}
	return tc, nil
}
