// cmd/loom/main.go
//
// Entry point for the loom session runner. It loads a mount plan, resolves
// and mounts the declared modules, and either runs a fixed number of turns or
// opens the live monitor TUI.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kingrea/loom/internal/logging"
	"github.com/kingrea/loom/internal/module"
	"github.com/kingrea/loom/internal/modules"
	"github.com/kingrea/loom/internal/plan"
	"github.com/kingrea/loom/internal/session"
	"github.com/kingrea/loom/internal/tui"
	"github.com/kingrea/loom/plugins"
)

func main() {
	planPath := flag.String("plan", "", "path to the mount plan YAML (defaults to .loom/plan.yaml)")
	projectDir := flag.String("project", "", "path to the project directory (defaults to cwd)")
	turns := flag.Int("turns", 1, "number of turns to run before exiting")
	monitor := flag.Bool("monitor", false, "open the live session monitor instead of running turns")
	listModules := flag.Bool("list", false, "list resolvable module ids and exit")
	flag.Parse()

	project := *projectDir
	if project == "" {
		var err error
		project, err = os.Getwd()
		if err != nil {
			die("determine working directory: %v", err)
		}
	}
	project, err := filepath.Abs(project)
	if err != nil {
		die("resolve project dir: %v", err)
	}

	logger, err := logging.New(project)
	if err != nil {
		die("open log: %v", err)
	}
	defer logger.Close()

	reg := module.NewRegistry()
	modules.RegisterBuiltins(reg)
	modulesDir := filepath.Join(project, logging.LoomDir, "modules")
	resolver := plugins.NewResolver(reg, plugins.WithSearchDir(modulesDir))

	if *listModules {
		for _, id := range reg.IDs() {
			fmt.Println(id)
		}
		if manifests, err := plugins.LoadAllManifests(modulesDir); err == nil {
			for _, file := range manifests {
				fmt.Printf("%s (%s)\n", file.Manifest.ID, file.Path)
			}
		}
		return
	}

	path := strings.TrimSpace(*planPath)
	if path == "" {
		path = filepath.Join(project, logging.LoomDir, "plan.yaml")
	}
	p, err := plan.Load(path)
	if err != nil {
		die("load plan: %v", err)
	}

	sess, err := session.NewFromPlan(p, resolver, session.Config{}, logger)
	if err != nil {
		// Modules that did load remain usable; report and continue.
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}
	defer sess.Close()

	if *monitor {
		if err := tui.Run(sess); err != nil {
			die("monitor: %v", err)
		}
		return
	}

	for i := 0; i < *turns; i++ {
		turn := sess.BeginTurn()
		fmt.Printf("turn %d: injected %d bytes\n", turn, sess.InjectedThisTurn())
	}
	for _, mp := range module.MountPoints() {
		mounted := sess.Coordinator().Mounted(mp)
		if len(mounted) == 0 {
			continue
		}
		fmt.Printf("%s: %s\n", mp, strings.Join(mounted, ", "))
	}
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
