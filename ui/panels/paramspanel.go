package panels

import (
	"math"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"lens-composer/internal/distortion"
	"lens-composer/internal/layer"
	"lens-composer/internal/session"
)

// ParamsPanel edits the selected layer's appearance and placement
// parameters with sliders. Every change is applied immediately.
type ParamsPanel struct {
	session   *session.Session
	container fyne.CanvasObject

	coefficient *widget.Slider
	opacity     *widget.Slider
	scale       *widget.Slider
	rotation    *widget.Slider

	coefficientValue *widget.Label
	opacityValue     *widget.Label
	scaleValue       *widget.Label
	rotationValue    *widget.Label

	// syncing suppresses slider callbacks while reflecting session state.
	syncing bool
}

// NewParamsPanel creates the panel for the given session.
func NewParamsPanel(s *session.Session) *ParamsPanel {
	pp := &ParamsPanel{session: s}

	pp.coefficient = widget.NewSlider(distortion.MinCoefficient, distortion.MaxCoefficient)
	pp.coefficient.Step = 0.01
	pp.opacity = widget.NewSlider(0, 1)
	pp.opacity.Step = 0.01
	pp.scale = widget.NewSlider(layer.MinScale, layer.MaxScale)
	pp.scale.Step = 0.01
	pp.rotation = widget.NewSlider(-180, 180)
	pp.rotation.Step = 0.5

	pp.coefficientValue = widget.NewLabel("0.00")
	pp.opacityValue = widget.NewLabel("")
	pp.scaleValue = widget.NewLabel("")
	pp.rotationValue = widget.NewLabel("")

	pp.coefficient.OnChanged = func(v float64) {
		pp.apply(layer.Patch{Coefficient: &v})
	}
	pp.opacity.OnChanged = func(v float64) {
		pp.apply(layer.Patch{Opacity: &v})
	}
	pp.scale.OnChanged = func(v float64) {
		pp.apply(layer.Patch{Scale: &v})
	}
	pp.rotation.OnChanged = func(deg float64) {
		rad := deg * math.Pi / 180
		pp.apply(layer.Patch{Rotation: &rad})
	}

	pp.container = container.NewVBox(
		widget.NewLabel("Lens correction"),
		container.NewBorder(nil, nil, nil, pp.coefficientValue, pp.coefficient),
		widget.NewLabel("Opacity"),
		container.NewBorder(nil, nil, nil, pp.opacityValue, pp.opacity),
		widget.NewLabel("Scale"),
		container.NewBorder(nil, nil, nil, pp.scaleValue, pp.scale),
		widget.NewLabel("Rotation"),
		container.NewBorder(nil, nil, nil, pp.rotationValue, pp.rotation),
	)

	s.On(session.EventSelectionChanged, func(any) { pp.Sync() })
	s.On(session.EventLayerUpdated, func(any) { pp.Sync() })
	pp.Sync()
	return pp
}

// Container returns the panel container.
func (pp *ParamsPanel) Container() fyne.CanvasObject {
	return pp.container
}

func (pp *ParamsPanel) apply(p layer.Patch) {
	if pp.syncing {
		return
	}
	if id := pp.session.Selection(); id != 0 {
		pp.session.UpdateLayer(id, p)
	}
}

// Sync reflects the selected layer's values into the sliders.
func (pp *ParamsPanel) Sync() {
	l, ok := pp.session.SelectedLayer()
	if !ok {
		return
	}

	pp.syncing = true
	pp.coefficient.SetValue(l.Coefficient)
	pp.opacity.SetValue(l.Opacity)
	pp.scale.SetValue(l.Scale)
	pp.rotation.SetValue(l.Rotation * 180 / math.Pi)
	pp.syncing = false

	pp.coefficientValue.SetText(formatCoefficient(l.Coefficient))
	pp.opacityValue.SetText(formatPercent(l.Opacity))
	pp.scaleValue.SetText(formatPercent(l.Scale))
	pp.rotationValue.SetText(formatDegrees(l.Rotation))
}
