// Package events carries typed notifications between the service components.
//
// Every component publishes onto a Bus through an Emitter bound to its
// subject (the owning app or model) and component (the part of it that
// speaks). Errors raised by components carry the same shape in *Error, so
// Summarize renders a returned error and a published notification alike.
package events

import (
	"errors"
)

// Kind is the closed set of lifecycle and failure events.
type Kind string

const (
	Starting       Kind = "starting"
	Started        Kind = "started"
	Listening      Kind = "listening"
	NotListening   Kind = "not listening"
	Closing        Kind = "closing"
	Closed         Kind = "closed"
	Stopping       Kind = "stopping"
	Stopped        Kind = "stopped"
	Connecting     Kind = "connecting"
	Connected      Kind = "connected"
	NotConnected   Kind = "not connected"
	Disconnecting  Kind = "disconnecting"
	Disconnected   Kind = "disconnected"
	SignalReceived Kind = "received"
	WillExit       Kind = "will exit"
	Failed         Kind = "failed"
)

// Notification is an immutable event record.
type Notification struct {
	Subject   string
	Component string
	Event     Kind
	Data      any
	// Err is set on Failed notifications.
	Err error
}

// Error is an error raised by a component. Details holds the notification
// that describes where it came from.
type Error struct {
	Message string
	Details Notification
	cause   error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.cause }

// Summary is the flat view of a notification or an error.
type Summary struct {
	Subject   string
	Component string
	Event     string
	Data      any
}

// Summarize flattens a Notification or an error into a Summary. For errors
// raised through an Emitter the event is the error message and the
// component is the one that raised it.
func Summarize(v any) Summary {
	switch x := v.(type) {
	case Notification:
		var e *Error
		if x.Err != nil && errors.As(x.Err, &e) {
			return Summary{Subject: x.Subject, Component: e.Details.Component, Event: e.Message, Data: e.Details.Data}
		}
		if x.Err != nil {
			return Summary{Subject: x.Subject, Component: x.Component, Event: x.Err.Error(), Data: x.Data}
		}
		return Summary{Subject: x.Subject, Component: x.Component, Event: string(x.Event), Data: x.Data}
	case error:
		var e *Error
		if errors.As(x, &e) {
			return Summary{Subject: e.Details.Subject, Component: e.Details.Component, Event: e.Message, Data: e.Details.Data}
		}
		return Summary{Event: x.Error()}
	default:
		return Summary{}
	}
}
