package canvas

import (
	"image"

	"fyne.io/fyne/v2"
	fynecanvas "fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"

	"lens-composer/internal/app"
	"lens-composer/internal/session"
)

// SingleCanvas displays the single-image correction mode: one image filling
// the widget, center zoom on the wheel, no panning or layer interaction.
type SingleCanvas struct {
	widget.BaseWidget

	session *session.SingleImageSession
	raster  *fynecanvas.Raster
}

var _ fyne.Scrollable = (*SingleCanvas)(nil)

// NewSingle creates the canvas for the given single-image session.
func NewSingle(s *session.SingleImageSession) *SingleCanvas {
	c := &SingleCanvas{session: s}
	c.raster = fynecanvas.NewRaster(c.draw)
	c.raster.ScaleMode = fynecanvas.ImageScalePixels
	c.ExtendBaseWidget(c)
	s.OnChange(c.Refresh)
	return c
}

func (c *SingleCanvas) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(c.raster)
}

func (c *SingleCanvas) Refresh() {
	c.raster.Refresh()
	c.BaseWidget.Refresh()
}

func (c *SingleCanvas) draw(w, h int) image.Image {
	out, err := c.session.Render(w, h)
	if err != nil {
		app.Logger().Error("single render failed", "error", err)
		return image.NewRGBA(image.Rect(0, 0, w, h))
	}
	return out
}

// Scrolled steps the center zoom.
func (c *SingleCanvas) Scrolled(ev *fyne.ScrollEvent) {
	const step = 0.1
	switch {
	case ev.Scrolled.DY > 0:
		c.session.SetZoom(c.session.Zoom() + step)
	case ev.Scrolled.DY < 0:
		c.session.SetZoom(c.session.Zoom() - step)
	}
}
