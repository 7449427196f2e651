// Command smartselectd is the one-shot CLI entry point into the Smart
// Selection Engine, currently exposing theme application to wallpaper
// change hooks invoked by the host rotator.
//
// Grounded on the teacher's main.go (flag handling, log.Fatalf on
// bootstrap error) and the small single-purpose cmd/util/*/main.go tools.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/dixieflatline76/smartselect/catalog"
	"github.com/dixieflatline76/smartselect/config"
	"github.com/dixieflatline76/smartselect/theming"
	"github.com/dixieflatline76/smartselect/util/log"
)

func main() {
	applyTheme := flag.String("apply-theme", "", "apply theming templates for <current|path-to-wallpaper>")
	dbPath := flag.String("db", "", "path to the catalog database (defaults to the platform data directory)")
	themingConfigPath := flag.String("theming-config", "", "path to theming.json")
	flag.Parse()

	if *applyTheme == "" {
		fmt.Fprintln(os.Stderr, "usage: smartselectd --apply-theme <current|path>")
		os.Exit(2)
	}

	path := *dbPath
	if path == "" {
		var err error
		path, err = config.DefaultDBPath()
		if err != nil {
			log.Warnf("smartselectd: failed to resolve database path, skipping: %v", err)
			os.Exit(0)
		}
	}

	store, err := catalog.Open(path)
	if err != nil {
		log.Warnf("smartselectd: failed to open catalog, skipping: %v", err)
		os.Exit(0)
	}
	defer store.Close()

	wallpaperPath := *applyTheme
	if wallpaperPath == "current" {
		wallpaperPath, err = store.GetMostRecentlyShownImage(context.Background())
		if err != nil || wallpaperPath == "" {
			log.Warnf("smartselectd: could not resolve current wallpaper, skipping: %v", err)
			os.Exit(0)
		}
	}

	themingCfg, err := theming.LoadThemingConfig(*themingConfigPath)
	if err != nil {
		log.Warnf("smartselectd: could not load theming config, skipping apply: %v", err)
		os.Exit(0)
	}

	engine := theming.New(store, themingCfg)
	defer engine.Cleanup()

	if err := engine.Apply(context.Background(), wallpaperPath); err != nil {
		log.Warnf("smartselectd: theme apply encountered an error: %v", err)
	}
	os.Exit(0)
}
