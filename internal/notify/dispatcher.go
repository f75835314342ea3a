package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DefaultTimeout bounds a single sink delivery when none is configured.
const DefaultTimeout = 5 * time.Second

// Sink delivers events to one channel.
type Sink interface {
	Name() string
	Send(ctx context.Context, ev Event) error
}

// Result is the outcome of delivering one event to one sink.
type Result struct {
	Sink     string
	Err      error
	Duration time.Duration
}

// OK reports whether delivery succeeded.
func (r Result) OK() bool { return r.Err == nil }

// Report collects per-sink results for one dispatch, in sink order.
type Report struct {
	EventID string
	Results []Result
}

// Failed returns the results that did not succeed.
func (r Report) Failed() []Result {
	var out []Result
	for _, res := range r.Results {
		if !res.OK() {
			out = append(out, res)
		}
	}
	return out
}

// Lookup returns the result for the named sink.
func (r Report) Lookup(name string) (Result, bool) {
	for _, res := range r.Results {
		if res.Sink == name {
			return res, true
		}
	}
	return Result{}, false
}

// Dispatcher fans events out to an ordered list of sinks.
type Dispatcher struct {
	sinks   []Sink
	timeout time.Duration
	logger  *slog.Logger
}

// NewDispatcher returns a dispatcher that always starts with a console sink
// writing to logger, followed by sinks in the given order. Nil sinks are ignored.
func NewDispatcher(logger *slog.Logger, timeout time.Duration, sinks ...Sink) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	all := []Sink{NewConsoleSink(logger)}
	for _, s := range sinks {
		if s != nil {
			all = append(all, s)
		}
	}
	return &Dispatcher{sinks: all, timeout: timeout, logger: logger}
}

// Sinks returns the names of the active sinks in delivery order.
func (d *Dispatcher) Sinks() []string {
	names := make([]string, len(d.sinks))
	for i, s := range d.sinks {
		names[i] = s.Name()
	}
	return names
}

// Dispatch delivers ev to every sink in order. Failures are logged and
// recorded in the report; they never stop later sinks from being tried.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) Report {
	report := Report{EventID: ev.ID, Results: make([]Result, 0, len(d.sinks))}
	for _, s := range d.sinks {
		start := time.Now()
		err := d.deliver(ctx, s, ev.clone())
		res := Result{Sink: s.Name(), Err: err, Duration: time.Since(start)}
		if err != nil {
			d.logger.Warn("notification sink failed",
				"sink", res.Sink,
				"event_id", ev.ID,
				"error", err,
				"duration", res.Duration)
		}
		report.Results = append(report.Results, res)
	}
	return report
}

// deliver runs one sink under the dispatch timeout. The sink runs on its own
// goroutine so a sink that ignores ctx still cannot hold up the caller.
func (d *Dispatcher) deliver(ctx context.Context, s Sink, ev Event) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("sink panicked: %v", r)
			}
		}()
		done <- s.Send(ctx, ev)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("%s delivery abandoned: %w", s.Name(), ctx.Err())
	}
}
