// Package lifecycle runs registered teardown actions at most once, either on
// request or when the process receives a termination signal.
package lifecycle

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/server/events"
)

// Action is a teardown step. It receives the name of whatever triggered the
// run (a signal name or a caller-chosen label such as "stop").
type Action func(ctx context.Context, signal string) error

// Options configures a Lifecycle. Zero values are replaced by defaults in New.
type Options struct {
	// Rerunnable keeps signal handlers and actions after a run, so every
	// signal or Run call executes the actions again.
	Rerunnable bool
	// Signals handled by Listen. Defaults to SIGINT, SIGQUIT and SIGTERM.
	Signals []os.Signal
	// Exit terminates the process. Defaults to os.Exit.
	Exit func(code int)
	// SignalTimeout bounds a signal-triggered run. Zero means no limit.
	SignalTimeout time.Duration
	// Emitter receives the run notifications. Optional.
	Emitter *events.Emitter
	// OnSignal, when set, handles a received signal in place of Run. It is
	// expected to end up in Run itself, typically through the owner's stop
	// path. The process exits with code 0 once it returns.
	OnSignal func(ctx context.Context, signal string)
}

// DefaultSignals are the termination signals handled when Options.Signals is empty.
var DefaultSignals = []os.Signal{syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM}

type Lifecycle struct {
	opts Options

	mu      sync.Mutex
	actions []Action
	pending *run

	sigCh chan os.Signal
	quit  chan struct{}
}

type run struct {
	done chan struct{}
}

func New(opts Options) *Lifecycle {
	if len(opts.Signals) == 0 {
		opts.Signals = DefaultSignals
	}
	if opts.Exit == nil {
		opts.Exit = os.Exit
	}
	if opts.Emitter == nil {
		opts.Emitter = (*events.Bus)(nil).Emitter("", "lifecycle")
	}
	return &Lifecycle{opts: opts}
}

// Register appends teardown actions. Actions registered after a single-run
// lifecycle has run are never executed.
func (l *Lifecycle) Register(actions ...Action) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.opts.Rerunnable && l.pending != nil {
		return
	}
	l.actions = append(l.actions, actions...)
}

// Run executes every registered action concurrently and waits for all of
// them. Failures are published, not returned. If exitCode is non-nil the
// process exits with it afterwards.
//
// In single-run mode the first call does the work and every other call,
// concurrent or later, waits for that same run to finish.
func (l *Lifecycle) Run(ctx context.Context, signal string, exitCode *int) {
	l.mu.Lock()
	if !l.opts.Rerunnable && l.pending != nil {
		p := l.pending
		l.mu.Unlock()
		<-p.done
		return
	}
	r := &run{done: make(chan struct{})}
	actions := make([]Action, len(l.actions))
	copy(actions, l.actions)
	if !l.opts.Rerunnable {
		l.pending = r
		l.actions = nil
	}
	l.mu.Unlock()

	if !l.opts.Rerunnable {
		l.Close()
	}

	defer close(r.done)
	l.execute(ctx, signal, actions, exitCode)
}

// Done reports whether a single-run lifecycle has completed its run.
func (l *Lifecycle) Done() bool {
	l.mu.Lock()
	p := l.pending
	l.mu.Unlock()
	if p == nil {
		return false
	}
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

func (l *Lifecycle) execute(ctx context.Context, signal string, actions []Action, exitCode *int) {
	em := l.opts.Emitter
	em.Notify(events.SignalReceived, signal)

	var wg sync.WaitGroup
	for _, a := range actions {
		wg.Add(1)
		go func(a Action) {
			defer wg.Done()
			if err := a(ctx, signal); err != nil {
				em.Fail(err, signal)
			}
		}(a)
	}
	wg.Wait()

	if exitCode != nil {
		em.Notify(events.WillExit, *exitCode)
		l.opts.Exit(*exitCode)
	}
}

// Listen attaches the OS signal handlers. A received signal runs the
// actions, or Options.OnSignal, and exits with code 0.
func (l *Lifecycle) Listen() {
	l.mu.Lock()
	if l.sigCh != nil || (!l.opts.Rerunnable && l.pending != nil) {
		l.mu.Unlock()
		return
	}
	sigCh := make(chan os.Signal, 1)
	quit := make(chan struct{})
	l.sigCh, l.quit = sigCh, quit
	l.mu.Unlock()

	signal.Notify(sigCh, l.opts.Signals...)

	go func() {
		for {
			select {
			case <-quit:
				return
			case sig := <-sigCh:
				if l.opts.Rerunnable {
					go l.runSignal(sig)
					continue
				}
				l.runSignal(sig)
				return
			}
		}
	}()
}

func (l *Lifecycle) runSignal(sig os.Signal) {
	ctx := context.Background()
	if l.opts.SignalTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.opts.SignalTimeout)
		defer cancel()
	}
	code := 0
	if l.opts.OnSignal == nil {
		l.Run(ctx, sig.String(), &code)
		return
	}
	l.opts.OnSignal(ctx, sig.String())
	l.opts.Emitter.Notify(events.WillExit, code)
	l.opts.Exit(code)
}

// Close detaches the signal handlers. It is safe to call more than once.
func (l *Lifecycle) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sigCh == nil {
		return
	}
	signal.Stop(l.sigCh)
	close(l.quit)
	l.sigCh, l.quit = nil, nil
}
