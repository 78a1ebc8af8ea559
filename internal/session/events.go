package session

// EventType identifies a state-change notification.
type EventType int

const (
	EventLayerAdded EventType = iota
	EventLayerRemoved
	EventLayerUpdated
	EventLayersReordered
	EventSelectionChanged
	EventViewChanged
	EventLoadFailed
)

// Listener receives event notifications. Data depends on the event: layer
// events carry the layer id, EventLoadFailed carries the error, view and
// selection events carry nil.
type Listener func(data any)

type eventBus struct {
	listeners map[EventType][]Listener
}

func newEventBus() *eventBus {
	return &eventBus{listeners: make(map[EventType][]Listener)}
}

func (b *eventBus) on(event EventType, l Listener) {
	b.listeners[event] = append(b.listeners[event], l)
}

func (b *eventBus) emit(event EventType, data any) {
	for _, l := range b.listeners[event] {
		l(data)
	}
}
