package events

// Emitter publishes notifications for one subject/component pair.
type Emitter struct {
	bus       *Bus
	subject   string
	component string
}

// Component returns an emitter for another component of the same subject.
func (e *Emitter) Component(name string) *Emitter {
	return &Emitter{bus: e.bus, subject: e.subject, component: name}
}

func (e *Emitter) Subject() string { return e.subject }

func (e *Emitter) Notify(kind Kind, data any) {
	e.bus.Publish(e.notification(kind, data))
}

// Fail publishes a Failed notification carrying err.
func (e *Emitter) Fail(err error, data any) {
	n := e.notification(Failed, data)
	n.Err = err
	e.bus.Publish(n)
}

// Raise builds an *Error attributed to this emitter. It is not published.
func (e *Emitter) Raise(msg string, cause error, data any) *Error {
	return &Error{Message: msg, Details: e.notification(Failed, data), cause: cause}
}

func (e *Emitter) notification(kind Kind, data any) Notification {
	return Notification{Subject: e.subject, Component: e.component, Event: kind, Data: data}
}
