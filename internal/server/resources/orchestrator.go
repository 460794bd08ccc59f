// Package resources connects the service's store resources as one unit.
//
// An Orchestrator connects every resource concurrently. If any of them
// fails, the ones that did connect are closed again, so callers only ever
// see "all connected" or "all disconnected".
package resources

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/gophauth/internal/server/events"
	"github.com/dmitrijs2005/gophauth/internal/server/lifecycle"
)

// Resource is a named connection owned by an Orchestrator.
type Resource interface {
	Name() string
	Connect(ctx context.Context) error
	Close(ctx context.Context) error
}

type State string

const (
	Disconnected State = "disconnected"
	Connecting   State = "connecting"
	Connected    State = "connected"
)

// ErrDisconnectedWhileConnecting is returned by Connect when Disconnect ran
// before the connects settled.
var ErrDisconnectedWhileConnecting = errors.New("disconnected while connecting")

type Orchestrator struct {
	em        *events.Emitter
	resources []Resource

	mu        sync.Mutex
	state     State
	teardown  *lifecycle.Lifecycle
	closing   bool
	connected map[string]Resource
}

// NewOrchestrator builds an orchestrator publishing through em. Resource
// notifications use the resource name as component.
func NewOrchestrator(em *events.Emitter, rs ...Resource) *Orchestrator {
	return &Orchestrator{em: em, resources: rs, state: Disconnected}
}

// settled is the outcome of one resource's connect.
type settled struct {
	done chan struct{}
	err  error
}

// Connect connects all resources. It is a no-op unless the orchestrator is
// disconnected. On partial failure it closes what connected and returns the
// joined connect errors.
func (o *Orchestrator) Connect(ctx context.Context) error {
	o.mu.Lock()
	if o.state != Disconnected {
		o.mu.Unlock()
		return nil
	}

	td := lifecycle.New(lifecycle.Options{Emitter: o.em})
	results := make([]*settled, len(o.resources))
	for i, r := range o.resources {
		res := &settled{done: make(chan struct{})}
		results[i] = res
		td.Register(o.closer(r, res))
	}

	o.state = Connecting
	o.teardown = td
	o.connected = make(map[string]Resource, len(o.resources))
	o.mu.Unlock()

	o.em.Notify(events.Connecting, nil)

	var wg sync.WaitGroup
	for i, r := range o.resources {
		wg.Add(1)
		go func(r Resource, res *settled) {
			defer wg.Done()
			defer close(res.done)
			res.err = o.connectOne(ctx, r)
		}(r, results[i])
	}
	wg.Wait()

	var errs []error
	for _, res := range results {
		if res.err != nil {
			errs = append(errs, res.err)
		}
	}

	if len(errs) > 0 {
		for _, err := range errs {
			o.em.Fail(err, nil)
		}
		_ = o.Disconnect(ctx)
		return errors.Join(errs...)
	}

	o.mu.Lock()
	if o.teardown != td || o.closing {
		o.mu.Unlock()
		return ErrDisconnectedWhileConnecting
	}
	o.state = Connected
	o.mu.Unlock()

	o.em.Notify(events.Connected, nil)
	return nil
}

func (o *Orchestrator) connectOne(ctx context.Context, r Resource) error {
	rem := o.em.Component(r.Name())
	rem.Notify(events.Connecting, nil)

	if err := r.Connect(ctx); err != nil {
		return rem.Raise("failed to connect", err, err.Error())
	}

	o.mu.Lock()
	if o.connected != nil {
		o.connected[r.Name()] = r
	}
	o.mu.Unlock()

	rem.Notify(events.Connected, nil)
	return nil
}

// closer is the teardown paired with one resource. It waits for the connect
// to settle before deciding whether there is anything to close.
func (o *Orchestrator) closer(r Resource, res *settled) lifecycle.Action {
	rem := o.em.Component(r.Name())
	return func(ctx context.Context, _ string) error {
		<-res.done
		if res.err != nil {
			rem.Notify(events.NotConnected, nil)
			return nil
		}
		rem.Notify(events.Disconnecting, nil)
		if err := r.Close(ctx); err != nil {
			return rem.Raise(fmt.Sprintf("close %s: %v", r.Name(), err), err, nil)
		}
		rem.Notify(events.Disconnected, nil)
		return nil
	}
}

// Disconnect closes every resource exactly once, waiting for in-flight
// connects first. Concurrent callers all wait for the same teardown. Close
// failures are published, not returned.
func (o *Orchestrator) Disconnect(ctx context.Context) error {
	o.mu.Lock()
	if o.state == Disconnected {
		o.mu.Unlock()
		return nil
	}
	td := o.teardown
	o.closing = true
	o.mu.Unlock()

	o.em.Notify(events.Disconnecting, nil)
	td.Run(ctx, "disconnect", nil)

	o.mu.Lock()
	last := o.teardown == td
	if last {
		o.teardown = nil
		o.closing = false
		o.connected = nil
		o.state = Disconnected
	}
	o.mu.Unlock()

	if last {
		o.em.Notify(events.Disconnected, nil)
	}
	return nil
}

// Resource returns the connected resource registered under name.
func (o *Orchestrator) Resource(name string) (Resource, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	r, ok := o.connected[name]
	return r, ok
}

func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}
