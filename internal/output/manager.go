package output

import (
	"errors"
	"fmt"
)

// Sink is a destination for analysis reports.
type Sink interface {
	Write(r Report) error
	Close() error
}

// ErrClosed is returned by Manager methods after Close.
var ErrClosed = errors.New("output manager closed")

// Manager fans a report out to every registered sink. Every sink sees every
// call even when an earlier sink fails; the failures are joined.
type Manager struct {
	sinks  []Sink
	closed bool
}

func NewManager() *Manager {
	return &Manager{}
}

func (m *Manager) AddSink(s Sink) error {
	switch {
	case m == nil:
		return errors.New("output manager is nil")
	case s == nil:
		return errors.New("sink must not be nil")
	case m.closed:
		return ErrClosed
	}
	m.sinks = append(m.sinks, s)
	return nil
}

func (m *Manager) Write(r Report) error {
	return m.each("write", func(s Sink) error { return s.Write(r) })
}

// Close closes every sink once; later calls return ErrClosed.
func (m *Manager) Close() error {
	err := m.each("close", Sink.Close)
	if m != nil {
		m.closed = true
	}
	return err
}

func (m *Manager) each(op string, fn func(Sink) error) error {
	if m == nil {
		return errors.New("output manager is nil")
	}
	if m.closed {
		return ErrClosed
	}
	var errs []error
	for _, s := range m.sinks {
		if err := fn(s); err != nil {
			errs = append(errs, fmt.Errorf("%s %T: %w", op, s, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s sinks: %w", op, errors.Join(errs...))
	}
	return nil
}
