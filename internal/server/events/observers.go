package events

import (
	"context"

	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
)

// LogObserver writes each summarized notification to the logger. Failed
// notifications are logged at error level.
func LogObserver(l logging.Logger) Observer {
	return func(n Notification) {
		s := Summarize(n)
		args := []any{"subject", s.Subject, "component", s.Component, "event", s.Event}
		if s.Data != nil {
			args = append(args, "data", s.Data)
		}
		if n.Event == Failed || n.Err != nil {
			l.Error(context.Background(), "notification", args...)
			return
		}
		l.Info(context.Background(), "notification", args...)
	}
}

// MetricsObserver counts notifications by subject, component and kind.
func MetricsObserver(reg prometheus.Registerer) (Observer, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gophauth_notifications_total",
		Help: "Notifications published on the event bus",
	}, []string{"subject", "component", "event"})

	if err := reg.Register(counter); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, err
		}
		counter = are.ExistingCollector.(*prometheus.CounterVec)
	}

	return func(n Notification) {
		counter.WithLabelValues(n.Subject, n.Component, string(n.Event)).Inc()
	}, nil
}
