// Package panels provides the side panels controlling the composite.
package panels

import (
	"image"

	"fyne.io/fyne/v2"
	fynecanvas "fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"lens-composer/internal/layer"
	"lens-composer/internal/session"
)

// LayersPanel lists the layers top-first with thumbnails, and offers
// reorder and delete controls for the selected layer.
type LayersPanel struct {
	session   *session.Session
	container fyne.CanvasObject

	list       *widget.List
	thumbnails map[layer.ID]*image.RGBA

	// ids in list order (reverse z: topmost first), rebuilt on refresh.
	ids []layer.ID

	syncing bool
}

// NewLayersPanel creates the panel for the given session.
func NewLayersPanel(s *session.Session) *LayersPanel {
	lp := &LayersPanel{
		session:    s,
		thumbnails: make(map[layer.ID]*image.RGBA),
	}

	lp.list = widget.NewList(
		func() int { return len(lp.ids) },
		func() fyne.CanvasObject {
			thumb := fynecanvas.NewImageFromImage(image.NewRGBA(image.Rect(0, 0, 1, 1)))
			thumb.FillMode = fynecanvas.ImageFillContain
			thumb.SetMinSize(fyne.NewSize(thumbSize, thumbSize))
			return container.NewBorder(nil, nil, thumb, nil, widget.NewLabel(""))
		},
		func(i widget.ListItemID, obj fyne.CanvasObject) {
			l, ok := lp.layerAt(i)
			if !ok {
				return
			}
			border := obj.(*fyne.Container)
			for _, child := range border.Objects {
				switch c := child.(type) {
				case *fynecanvas.Image:
					if thumb, ok := lp.thumbnails[l.ID]; ok {
						c.Image = thumb
					}
					c.Refresh()
				case *widget.Label:
					c.SetText(l.Name)
				}
			}
		},
	)
	lp.list.OnSelected = func(i widget.ListItemID) {
		if lp.syncing {
			return
		}
		if i >= 0 && i < len(lp.ids) {
			s.Select(lp.ids[i])
		}
	}
	lp.list.OnUnselected = func(widget.ListItemID) {
		if !lp.syncing {
			s.Select(0)
		}
	}

	up := widget.NewButton("Raise", func() { lp.moveSelected(1) })
	down := widget.NewButton("Lower", func() { lp.moveSelected(-1) })
	del := widget.NewButton("Delete", func() {
		if id := s.Selection(); id != 0 {
			delete(lp.thumbnails, id)
			s.RemoveLayer(id)
		}
	})

	lp.container = container.NewBorder(nil, container.NewHBox(up, down, del), nil, nil, lp.list)

	for _, ev := range []session.EventType{
		session.EventLayerAdded, session.EventLayerRemoved,
		session.EventLayersReordered, session.EventSelectionChanged,
	} {
		s.On(ev, func(any) { lp.Sync() })
	}
	lp.Sync()
	return lp
}

// Container returns the panel container.
func (lp *LayersPanel) Container() fyne.CanvasObject {
	return lp.container
}

// SetThumbnail registers the preview for a layer; call it when the layer's
// pixels are decoded.
func (lp *LayersPanel) SetThumbnail(id layer.ID, img *image.RGBA) {
	lp.thumbnails[id] = MakeThumbnail(img)
	lp.list.Refresh()
}

func (lp *LayersPanel) layerAt(i int) (layer.Layer, bool) {
	if i < 0 || i >= len(lp.ids) {
		return layer.Layer{}, false
	}
	for _, l := range lp.session.Layers() {
		if l.ID == lp.ids[i] {
			return l, true
		}
	}
	return layer.Layer{}, false
}

// moveSelected shifts the selected layer's z rank by delta.
func (lp *LayersPanel) moveSelected(delta int) {
	id := lp.session.Selection()
	if id == 0 {
		return
	}
	for rank, l := range lp.session.Layers() {
		if l.ID == id {
			lp.session.ReorderLayer(id, rank+delta)
			return
		}
	}
}

// Sync rebuilds the list from the session, topmost layer first.
func (lp *LayersPanel) Sync() {
	layers := lp.session.Layers()
	lp.ids = lp.ids[:0]
	for i := len(layers) - 1; i >= 0; i-- {
		lp.ids = append(lp.ids, layers[i].ID)
	}

	lp.syncing = true
	lp.list.Refresh()
	selected := lp.session.Selection()
	lp.list.UnselectAll()
	for i, id := range lp.ids {
		if id == selected {
			lp.list.Select(i)
			break
		}
	}
	lp.syncing = false
}
