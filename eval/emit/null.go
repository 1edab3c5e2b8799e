package emit

// NullEmitter implements Emitter by discarding all events.
//
// Use it when evaluation observability is not wanted; it is safe for
// concurrent use and has zero overhead.
type NullEmitter struct{}

// NewNullEmitter creates an emitter that discards every event.
func NewNullEmitter() *NullEmitter {
	return &NullEmitter{}
}

// Emit discards the event.
func (n *NullEmitter) Emit(event Event) {}
