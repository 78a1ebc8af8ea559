// Package main provides the entry point for the Lens Composer application.
package main

import (
	"flag"
	"log/slog"
	"os"
	"time"

	fyneapp "fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/dialog"

	"lens-composer/internal/app"
	"lens-composer/internal/render"
	"lens-composer/internal/render/gpu"
	"lens-composer/internal/render/soft"
	"lens-composer/internal/session"
	"lens-composer/ui/mainwindow"
	"lens-composer/ui/prefs"
)

func main() {
	var (
		dev     = flag.Bool("dev", false, "watch the binary and offer restart on rebuild")
		backend = flag.String("renderer", "", "rendering backend: gpu or soft (default from preferences)")
		verbose = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	app.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	appPrefs := prefs.Load()
	if *backend == "" {
		*backend = appPrefs.String(prefs.KeyRenderer, "gpu")
	}

	renderer := pickRenderer(*backend)
	defer renderer.Close()

	composite := session.New(renderer)
	defer composite.Close()
	single := session.NewSingle(renderer)
	defer single.Close()

	fyneApp := fyneapp.NewWithID("io.lenscomposer.app")
	fyneApp.Settings().SetTheme(&app.LensTheme{})

	win := mainwindow.New(fyneApp, composite, single, appPrefs)

	if *dev {
		setupHotReload(win)
	}

	win.ShowAndRun()
}

// pickRenderer opens the requested backend. GPU initialization failure is
// permanent for that backend; the process falls back to the CPU renderer
// rather than retrying.
func pickRenderer(backend string) render.Renderer {
	if backend == "soft" {
		app.Logger().Info("using CPU renderer")
		return soft.New()
	}
	r, err := gpu.New()
	if err != nil {
		app.Logger().Warn("GPU renderer unavailable, falling back to CPU", "error", err)
		return soft.New()
	}
	return r
}

// setupHotReload offers a restart when the binary is rebuilt during
// development.
func setupHotReload(win *mainwindow.MainWindow) {
	reloader := app.NewHotReloader(2 * time.Second)
	if reloader == nil {
		app.Logger().Warn("hot reload disabled, executable path unknown")
		return
	}

	reloader.OnNewBinary(func() {
		dialog.ShowConfirm("New Version Available",
			"The application binary has been updated. Restart now?",
			func(restart bool) {
				if !restart {
					reloader.ResetBaseline()
					reloader.Start()
					return
				}
				if err := reloader.Restart(); err != nil {
					app.Logger().Error("restart failed", "error", err)
				}
			}, win.Window)
	})
	reloader.Start()
}
