// Package emit provides the workflow event model and pluggable emitters.
package emit

// Emitter receives events from workflow execution.
//
// Implementations must be safe for concurrent use and must not panic.
// Emit may block (the Stream emitter does, to apply backpressure to the
// producer) but should never drop events silently while open.
type Emitter interface {
	Emit(event Event)
}

// Multi fans each event out to several emitters in order.
//
// Example:
//
//	emitter := emit.Multi(stream, emit.NewLogEmitter(f, true), otelEmitter)
func Multi(emitters ...Emitter) Emitter {
	flat := make(multi, 0, len(emitters))
	for _, e := range emitters {
		if e != nil {
			flat = append(flat, e)
		}
	}
	return flat
}

type multi []Emitter

func (m multi) Emit(event Event) {
	for _, e := range m {
		e.Emit(event)
	}
}
