package session

import (
	"lens-composer/pkg/geometry"
)

// Mode is the interaction state.
type Mode int

const (
	ModeIdle Mode = iota
	ModeDraggingLayer
	ModePanningView
)

func (m Mode) String() string {
	switch m {
	case ModeDraggingLayer:
		return "dragging-layer"
	case ModePanningView:
		return "panning-view"
	default:
		return "idle"
	}
}

// Mode returns the current interaction state.
func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// screenToWorld maps a screen point through the inverse view transform.
// Callers hold s.mu.
func (s *Session) screenToWorld(screen geometry.Point2D) geometry.Point2D {
	return screen.Sub(s.view.Pan).Scale(1 / s.view.Zoom)
}

// PointerDown starts a drag. With panModifier set the gesture always pans
// the view. Otherwise the topmost layer under the pointer is picked up and
// becomes the selection; a miss clears the selection and pans instead.
func (s *Session) PointerDown(screen geometry.Point2D, panModifier bool) {
	var selectionChanged bool

	s.mu.Lock()
	s.dragAnchor = screen
	if panModifier {
		s.mode = ModePanningView
		s.viewStartPan = s.view.Pan
		s.mu.Unlock()
		return
	}

	if l, ok := s.stack.HitTest(s.screenToWorld(screen)); ok {
		s.mode = ModeDraggingLayer
		s.dragLayer = l.ID
		s.layerStartPos = l.Position
		selectionChanged = s.selection != l.ID
		s.selection = l.ID
	} else {
		s.mode = ModePanningView
		s.viewStartPan = s.view.Pan
		selectionChanged = s.selection != 0
		s.selection = 0
	}
	s.mu.Unlock()

	if selectionChanged {
		s.bus.emit(EventSelectionChanged, nil)
	}
}

// PointerMove advances the active drag. Screen movement translates a
// dragged layer in world space, scaled down by the zoom; panning applies
// the raw screen delta.
func (s *Session) PointerMove(screen geometry.Point2D) {
	var event EventType
	var data any
	var emit bool

	s.mu.Lock()
	delta := screen.Sub(s.dragAnchor)
	switch s.mode {
	case ModeDraggingLayer:
		if l, ok := s.stack.Get(s.dragLayer); ok {
			l.Position = s.layerStartPos.Add(delta.Scale(1 / s.view.Zoom))
			event, data, emit = EventLayerUpdated, s.dragLayer, true
		}
	case ModePanningView:
		s.view.Pan = s.viewStartPan.Add(delta)
		event, emit = EventViewChanged, true
	}
	s.mu.Unlock()

	if emit {
		s.bus.emit(event, data)
	}
}

// PointerUp ends the drag and returns to idle.
func (s *Session) PointerUp() {
	s.mu.Lock()
	s.mode = ModeIdle
	s.dragLayer = 0
	s.mu.Unlock()
}
