// Package canvas provides the interactive composite display widgets.
package canvas

import (
	"image"

	"fyne.io/fyne/v2"
	fynecanvas "fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"

	"lens-composer/internal/app"
	"lens-composer/internal/session"
	"lens-composer/pkg/geometry"
)

// FitPadding is the default margin kept around the content on
// fit-to-window; preferences can override it.
const FitPadding = 50.0

// CompositeCanvas displays the layered composite and translates pointer
// input into session operations. Drag moves the layer under the cursor,
// drag on empty space or with the right button pans, and the wheel zooms
// around the cursor.
type CompositeCanvas struct {
	widget.BaseWidget

	session *session.Session
	raster  *fynecanvas.Raster

	fitPadding float64

	// Framebuffer size from the last draw, used to map widget-space
	// pointer positions to pixels.
	frameW int
	frameH int
}

var _ desktop.Mouseable = (*CompositeCanvas)(nil)
var _ desktop.Hoverable = (*CompositeCanvas)(nil)
var _ fyne.Scrollable = (*CompositeCanvas)(nil)

// NewComposite creates the canvas for the given session and refreshes it
// on every session change.
func NewComposite(s *session.Session) *CompositeCanvas {
	c := &CompositeCanvas{session: s, fitPadding: FitPadding}
	c.raster = fynecanvas.NewRaster(c.draw)
	c.raster.ScaleMode = fynecanvas.ImageScalePixels
	c.ExtendBaseWidget(c)

	for _, ev := range []session.EventType{
		session.EventLayerAdded, session.EventLayerRemoved,
		session.EventLayerUpdated, session.EventLayersReordered,
		session.EventViewChanged,
	} {
		s.On(ev, func(any) { c.Refresh() })
	}
	return c
}

func (c *CompositeCanvas) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(c.raster)
}

func (c *CompositeCanvas) Refresh() {
	c.raster.Refresh()
	c.BaseWidget.Refresh()
}

// draw renders the session at the framebuffer size.
func (c *CompositeCanvas) draw(w, h int) image.Image {
	c.frameW, c.frameH = w, h
	c.session.SetViewport(w, h)
	out, err := c.session.Render()
	if err != nil {
		app.Logger().Error("frame render failed", "error", err)
		return image.NewRGBA(image.Rect(0, 0, w, h))
	}
	return out
}

// toPixels maps a widget-space position to framebuffer pixels. On high-DPI
// displays the framebuffer is larger than the widget.
func (c *CompositeCanvas) toPixels(pos fyne.Position) geometry.Point2D {
	size := c.Size()
	sx, sy := 1.0, 1.0
	if size.Width > 0 && c.frameW > 0 {
		sx = float64(c.frameW) / float64(size.Width)
	}
	if size.Height > 0 && c.frameH > 0 {
		sy = float64(c.frameH) / float64(size.Height)
	}
	return geometry.Point2D{X: float64(pos.X) * sx, Y: float64(pos.Y) * sy}
}

// MouseDown starts a layer drag or a view pan. The secondary and middle
// buttons, or a held Control, always pan.
func (c *CompositeCanvas) MouseDown(ev *desktop.MouseEvent) {
	pan := ev.Button == desktop.MouseButtonSecondary ||
		ev.Button == desktop.MouseButtonTertiary ||
		ev.Modifier&fyne.KeyModifierControl != 0
	c.session.PointerDown(c.toPixels(ev.Position), pan)
}

func (c *CompositeCanvas) MouseUp(*desktop.MouseEvent) {
	c.session.PointerUp()
}

func (c *CompositeCanvas) MouseIn(*desktop.MouseEvent) {}

func (c *CompositeCanvas) MouseOut() {}

// MouseMoved advances an active drag.
func (c *CompositeCanvas) MouseMoved(ev *desktop.MouseEvent) {
	if c.session.Mode() == session.ModeIdle {
		return
	}
	c.session.PointerMove(c.toPixels(ev.Position))
}

// Scrolled zooms around the cursor.
func (c *CompositeCanvas) Scrolled(ev *fyne.ScrollEvent) {
	switch {
	case ev.Scrolled.DY > 0:
		c.session.ZoomStep(c.toPixels(ev.Position), 1)
	case ev.Scrolled.DY < 0:
		c.session.ZoomStep(c.toPixels(ev.Position), -1)
	}
}

// SetFitPadding overrides the fit-to-window margin. Negative values are
// ignored.
func (c *CompositeCanvas) SetFitPadding(padding float64) {
	if padding >= 0 {
		c.fitPadding = padding
	}
}

// FitToWindow frames all layers in the viewport.
func (c *CompositeCanvas) FitToWindow() {
	c.session.FitToContent(c.fitPadding)
}
