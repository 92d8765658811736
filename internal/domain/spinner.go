package domain

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"
)

// Wheel holds a set of options and the state of the spin in flight, if any.
// At most one spin runs at a time; requests during a spin are rejected.
type Wheel struct {
	id       string
	source   DrawSource
	duration time.Duration

	mu      sync.Mutex
	options []Option
	state   SpinState
	current *Spin
}

// NewWheel creates an idle wheel. Options are copied.
func NewWheel(id string, options []Option, source DrawSource, duration time.Duration) *Wheel {
	return &Wheel{
		id:       id,
		source:   source,
		duration: duration,
		options:  slices.Clone(options),
	}
}

func (w *Wheel) ID() string { return w.id }

// Options returns a copy of the current options.
func (w *Wheel) Options() []Option {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.options)
}

// State returns a snapshot of the spin state.
func (w *Wheel) State() SpinState {
	w.mu.Lock()
	defer w.mu.Unlock()
	st := w.state
	if st.Winner != nil {
		winner := *st.Winner
		st.Winner = &winner
	}
	return st
}

// SetOptions replaces the options. Fewer than MinOptions is allowed while
// editing; spinning then fails until enough options exist.
func (w *Wheel) SetOptions(options []Option) error {
	if len(options) > MaxOptions {
		return ErrTooManyOptions
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state.IsSpinning {
		return ErrAlreadySpinning
	}
	w.options = slices.Clone(options)
	w.state.Winner = nil
	return nil
}

// Spin starts a spin. The target rotation is committed immediately; the
// winner is set once the spin duration elapses. Cancelling ctx before that
// aborts the spin: the wheel goes back to idle without a winner.
func (w *Wheel) Spin(ctx context.Context) (*Spin, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state.IsSpinning {
		return nil, ErrAlreadySpinning
	}
	out, err := ComputeSpin(w.state.CumulativeRotation, len(w.options), w.source.Draw())
	if err != nil {
		return nil, err
	}

	s := &Spin{
		SpinOutcome: out,
		Duration:    w.duration,
		winner:      w.options[out.WinningIndex],
		done:        make(chan struct{}),
	}
	w.state = SpinState{CumulativeRotation: out.TargetRotation, IsSpinning: true}
	w.current = s

	go w.await(ctx, s)
	return s, nil
}

func (w *Wheel) await(ctx context.Context, s *Spin) {
	t := time.NewTimer(s.Duration)
	defer t.Stop()
	select {
	case <-t.C:
		w.settle(s, nil)
	case <-ctx.Done():
		w.settle(s, ctx.Err())
	}
}

func (w *Wheel) settle(s *Spin, cause error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.current != s {
		return
	}
	w.current = nil
	w.state.IsSpinning = false
	if cause != nil {
		s.err = fmt.Errorf("spin aborted: %w", cause)
	} else {
		winner := s.winner
		w.state.Winner = &winner
	}
	close(s.done)
}

// Spin is a spin in flight.
type Spin struct {
	SpinOutcome
	Duration time.Duration

	winner Option
	err    error
	done   chan struct{}
}

// Done is closed when the spin settles or is aborted.
func (s *Spin) Done() <-chan struct{} { return s.done }

// Wait blocks until the spin settles and returns the winner.
func (s *Spin) Wait(ctx context.Context) (Option, error) {
	select {
	case <-s.done:
		if s.err != nil {
			return Option{}, s.err
		}
		return s.winner, nil
	case <-ctx.Done():
		return Option{}, ctx.Err()
	}
}
