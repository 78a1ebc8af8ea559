// Package mainwindow provides the main application window.
package mainwindow

import (
	"fmt"
	"path/filepath"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"

	"lens-composer/internal/app"
	"lens-composer/internal/distortion"
	"lens-composer/internal/export"
	"lens-composer/internal/imageio"
	"lens-composer/internal/layer"
	"lens-composer/internal/project"
	"lens-composer/internal/session"
	"lens-composer/internal/version"
	"lens-composer/internal/view"
	"lens-composer/pkg/geometry"
	"lens-composer/ui/canvas"
	"lens-composer/ui/panels"
	"lens-composer/ui/prefs"
)

// MainWindow is the primary application window.
type MainWindow struct {
	fyne.Window
	app   fyne.App
	prefs *prefs.Prefs

	session *session.Session
	single  *session.SingleImageSession

	canvas       *canvas.CompositeCanvas
	singleCanvas *canvas.SingleCanvas
	layersPanel  *panels.LayersPanel
	paramsPanel  *panels.ParamsPanel
	statusBar    *widget.Label

	projectPath string
}

// New creates the main window around the two editing sessions.
func New(fyneApp fyne.App, s *session.Session, single *session.SingleImageSession, p *prefs.Prefs) *MainWindow {
	win := fyneApp.NewWindow("Lens Composer")

	mw := &MainWindow{
		Window:  win,
		app:     fyneApp,
		prefs:   p,
		session: s,
		single:  single,
	}

	mw.setupUI()
	mw.setupMenus()
	mw.setupEventHandlers()
	mw.Resize(fyne.NewSize(
		float32(p.Int(prefs.KeyWindowWidth, 1280)),
		float32(p.Int(prefs.KeyWindowHeight, 800)),
	))

	return mw
}

// setupUI creates the main layout: side panels, composite canvas and the
// single-image tab.
func (mw *MainWindow) setupUI() {
	mw.canvas = canvas.NewComposite(mw.session)
	mw.canvas.SetFitPadding(mw.prefs.Float(prefs.KeyFitPadding, canvas.FitPadding))
	mw.singleCanvas = canvas.NewSingle(mw.single)
	mw.layersPanel = panels.NewLayersPanel(mw.session)
	mw.paramsPanel = panels.NewParamsPanel(mw.session)
	mw.statusBar = widget.NewLabel("Ready")

	side := container.NewVSplit(
		mw.layersPanel.Container(),
		mw.paramsPanel.Container(),
	)
	side.SetOffset(0.6)

	compositeSplit := container.NewHSplit(side, mw.canvas)
	compositeSplit.SetOffset(0.25)

	tabs := container.NewAppTabs(
		container.NewTabItem("Composite", compositeSplit),
		container.NewTabItem("Single Image", mw.buildSingleTab()),
	)

	content := container.NewBorder(
		nil,
		container.NewPadded(mw.statusBar),
		nil, nil,
		tabs,
	)
	mw.SetContent(content)
}

// buildSingleTab assembles the single-image correction mode: one canvas
// with a coefficient slider and a center zoom slider.
func (mw *MainWindow) buildSingleTab() fyne.CanvasObject {
	coeff := widget.NewSlider(distortion.MinCoefficient, distortion.MaxCoefficient)
	coeff.Step = 0.01
	coeff.OnChanged = mw.single.SetCoefficient

	zoom := widget.NewSlider(session.MinSingleZoom, session.MaxSingleZoom)
	zoom.Step = 0.05
	zoom.SetValue(1)
	zoom.OnChanged = mw.single.SetZoom

	open := widget.NewButton("Open Image...", func() {
		mw.pickImage(func(path string) {
			mw.single.Load(path)
			mw.updateStatus("Loading " + filepath.Base(path))
		})
	})

	controls := container.NewVBox(
		open,
		widget.NewLabel("Lens correction"),
		coeff,
		widget.NewLabel("Zoom"),
		zoom,
	)

	split := container.NewHSplit(controls, mw.singleCanvas)
	split.SetOffset(0.2)
	return split
}

func (mw *MainWindow) setupMenus() {
	fileMenu := fyne.NewMenu("File",
		fyne.NewMenuItem("Add Images...", mw.onAddImage),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Open Composition...", mw.onOpenProject),
		fyne.NewMenuItem("Save Composition", mw.onSaveProject),
		fyne.NewMenuItem("Save Composition As...", mw.onSaveProjectAs),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Export PNG...", mw.onExport),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Quit", func() { mw.app.Quit() }),
	)

	viewMenu := fyne.NewMenu("View",
		fyne.NewMenuItem("Zoom In", func() { mw.zoomCenter(1) }),
		fyne.NewMenuItem("Zoom Out", func() { mw.zoomCenter(-1) }),
		fyne.NewMenuItem("Fit to Window", mw.canvas.FitToWindow),
		fyne.NewMenuItem("Reset View", mw.onResetView),
	)

	helpMenu := fyne.NewMenu("Help",
		fyne.NewMenuItem("About", mw.onAbout),
	)

	mw.SetMainMenu(fyne.NewMainMenu(fileMenu, viewMenu, helpMenu))
}

func (mw *MainWindow) setupEventHandlers() {
	mw.session.On(session.EventViewChanged, func(any) {
		mw.updateStatus(fmt.Sprintf("Zoom %.0f%%", mw.session.View().Zoom*100))
	})
	mw.session.On(session.EventSelectionChanged, func(any) {
		if l, ok := mw.session.SelectedLayer(); ok {
			mw.updateStatus("Selected: " + l.Name)
		} else {
			mw.updateStatus("No selection")
		}
	})
	mw.session.On(session.EventLoadFailed, func(data any) {
		if err, ok := data.(error); ok {
			dialog.ShowError(err, mw.Window)
		}
	})
	mw.single.OnError(func(err error) {
		dialog.ShowError(err, mw.Window)
	})

	mw.SetOnClosed(func() {
		size := mw.Canvas().Size()
		mw.prefs.SetInt(prefs.KeyWindowWidth, int(size.Width))
		mw.prefs.SetInt(prefs.KeyWindowHeight, int(size.Height))
		if err := mw.prefs.Save(); err != nil {
			app.Logger().Warn("failed to save preferences", "error", err)
		}
	})
}

func (mw *MainWindow) updateStatus(text string) {
	mw.statusBar.SetText(text)
}

func (mw *MainWindow) zoomCenter(steps int) {
	f := mw.session.Frame()
	center := geometry.Point2D{X: float64(f.Width) / 2, Y: float64(f.Height) / 2}
	mw.session.ZoomStep(center, steps)
}

func (mw *MainWindow) onResetView() {
	mw.session.SetView(view.New())
}

// lastDir returns the remembered directory for the given preference key.
func (mw *MainWindow) lastDir(key string) fyne.ListableURI {
	path := mw.prefs.String(key, "")
	if path == "" {
		return nil
	}
	listable, err := storage.ListerForURI(storage.NewFileURI(path))
	if err != nil {
		return nil
	}
	return listable
}

// pickImage shows an open dialog filtered to supported raster formats.
func (mw *MainWindow) pickImage(chosen func(path string)) {
	fd := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil || reader == nil {
			return
		}
		reader.Close()
		path := reader.URI().Path()
		mw.prefs.SetString(prefs.KeyLastOpenDir, filepath.Dir(path))
		chosen(path)
	}, mw.Window)
	fd.SetFilter(storage.NewExtensionFileFilter(imageio.SupportedFormats()))
	if loc := mw.lastDir(prefs.KeyLastOpenDir); loc != nil {
		fd.SetLocation(loc)
	}
	fd.Show()
}

// onAddImage decodes the chosen file off the UI thread and adds it as the
// top layer.
func (mw *MainWindow) onAddImage() {
	mw.pickImage(func(path string) {
		mw.updateStatus("Loading " + filepath.Base(path))
		go func() {
			img, err := imageio.Decode(path)
			if err != nil {
				dialog.ShowError(err, mw.Window)
				return
			}
			id, err := mw.session.AddDecoded(path, img)
			if err != nil {
				dialog.ShowError(err, mw.Window)
				return
			}
			mw.layersPanel.SetThumbnail(id, img)
			mw.session.Select(id)
		}()
	})
}

func (mw *MainWindow) onOpenProject() {
	fd := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil || reader == nil {
			return
		}
		reader.Close()
		path := reader.URI().Path()
		mw.prefs.SetString(prefs.KeyLastOpenDir, filepath.Dir(path))
		go mw.loadProject(path)
	}, mw.Window)
	fd.SetFilter(storage.NewExtensionFileFilter([]string{project.Extension}))
	if loc := mw.lastDir(prefs.KeyLastOpenDir); loc != nil {
		fd.SetLocation(loc)
	}
	fd.Show()
}

// loadProject replaces the session contents with the saved composition.
// Layers decode sequentially so the saved draw order is preserved.
func (mw *MainWindow) loadProject(path string) {
	proj, err := project.Load(path)
	if err != nil {
		dialog.ShowError(err, mw.Window)
		return
	}

	for _, l := range mw.session.Layers() {
		mw.session.RemoveLayer(l.ID)
	}

	for _, rec := range proj.Layers {
		src := rec.SourcePath(path)
		img, err := imageio.Decode(src)
		if err != nil {
			dialog.ShowError(fmt.Errorf("failed to load layer %s: %w", rec.Name, err), mw.Window)
			continue
		}
		id, err := mw.session.AddDecoded(src, img)
		if err != nil {
			dialog.ShowError(err, mw.Window)
			continue
		}
		mw.layersPanel.SetThumbnail(id, img)
		name := rec.Name
		mw.session.UpdateLayer(id, layer.Patch{
			Name:        &name,
			Position:    &rec.Position,
			Rotation:    &rec.Rotation,
			Scale:       &rec.Scale,
			Opacity:     &rec.Opacity,
			Coefficient: &rec.Coefficient,
		})
	}
	mw.session.SetView(proj.View)

	mw.projectPath = path
	mw.SetTitle("Lens Composer - " + filepath.Base(path))
	mw.updateStatus("Opened " + path)
}

func (mw *MainWindow) onSaveProject() {
	if mw.projectPath == "" {
		mw.onSaveProjectAs()
		return
	}
	mw.saveProject(mw.projectPath)
}

func (mw *MainWindow) onSaveProjectAs() {
	fd := dialog.NewFileSave(func(writer fyne.URIWriteCloser, err error) {
		if err != nil || writer == nil {
			return
		}
		writer.Close()
		path := writer.URI().Path()
		if filepath.Ext(path) != project.Extension {
			path += project.Extension
		}
		mw.prefs.SetString(prefs.KeyLastOpenDir, filepath.Dir(path))
		mw.saveProject(path)
	}, mw.Window)
	fd.SetFileName("composite" + project.Extension)
	if loc := mw.lastDir(prefs.KeyLastOpenDir); loc != nil {
		fd.SetLocation(loc)
	}
	fd.Show()
}

func (mw *MainWindow) saveProject(path string) {
	proj := project.New(filepath.Base(path))
	proj.SetLayers(path, mw.session.Layers())
	proj.View = mw.session.View()
	if err := proj.Save(path); err != nil {
		dialog.ShowError(err, mw.Window)
		return
	}
	mw.projectPath = path
	mw.SetTitle("Lens Composer - " + filepath.Base(path))
	mw.updateStatus("Saved " + path)
}

// onExport renders the composite at the current framing and writes a PNG.
func (mw *MainWindow) onExport() {
	fd := dialog.NewFileSave(func(writer fyne.URIWriteCloser, err error) {
		if err != nil || writer == nil {
			return
		}
		writer.Close()
		path := writer.URI().Path()
		if filepath.Ext(path) != ".png" {
			path += ".png"
		}
		mw.prefs.SetString(prefs.KeyLastExportDir, filepath.Dir(path))

		frame := mw.session.Frame()
		layers := mw.session.Layers()
		v := mw.session.View()
		go func() {
			items, err := export.FromLayers(layers, imageio.Decode)
			if err != nil {
				dialog.ShowError(err, mw.Window)
				return
			}
			out, err := export.RenderComposite(items, v, frame.Width, frame.Height)
			if err != nil {
				dialog.ShowError(err, mw.Window)
				return
			}
			if err := export.WritePNG(path, out); err != nil {
				dialog.ShowError(err, mw.Window)
				return
			}
			mw.updateStatus("Exported " + path)
		}()
	}, mw.Window)
	fd.SetFileName("composite.png")
	if loc := mw.lastDir(prefs.KeyLastExportDir); loc != nil {
		fd.SetLocation(loc)
	}
	fd.Show()
}

func (mw *MainWindow) onAbout() {
	dialog.ShowInformation("About Lens Composer",
		fmt.Sprintf("Lens Composer v%s\n\n"+
			"Lens distortion correction and panorama compositing.\n\n"+
			"Built: %s\n"+
			"Commit: %s",
			version.Version, version.BuildTime, version.GitCommit),
		mw.Window)
}
