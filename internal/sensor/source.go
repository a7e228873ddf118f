package sensor

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// ErrUnavailable is returned when a sensor cannot be started.
var ErrUnavailable = errors.New("sensor unavailable")

// Source is a push-based sampler. Samples are delivered to subscribers only
// while the source is started.
type Source[T any] interface {
	Start() error
	Stop() error
	Subscribe(id uuid.UUID, fn func(T))
	Unsubscribe(id uuid.UUID)
}

// OnStart registers a hook run when a Feed is started. A hook error makes
// the feed unavailable.
func OnStart(fn func() error) func(*feedHooks) {
	return func(h *feedHooks) {
		h.start = fn
	}
}

// OnStop registers a hook run when a Feed is stopped.
func OnStop(fn func() error) func(*feedHooks) {
	return func(h *feedHooks) {
		h.stop = fn
	}
}

type feedHooks struct {
	start func() error
	stop  func() error
}

// Feed is a Source driven by a producer calling Push.
type Feed[T any] struct {
	Hub[T]

	name    string
	hooks   feedHooks
	running atomic.Bool
	mu      sync.Mutex
	failure error
}

func NewFeed[T any](name string, options ...func(*feedHooks)) *Feed[T] {
	f := Feed[T]{name: name}
	for _, option := range options {
		option(&f.hooks)
	}
	return &f
}

func (f *Feed[T]) Name() string {
	return f.name
}

// Fail marks the feed unavailable, every later Start returns err.
func (f *Feed[T]) Fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.failure = err
}

func (f *Feed[T]) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failure != nil {
		return fmt.Errorf("%w: %s: %w", ErrUnavailable, f.name, f.failure)
	}
	if f.running.Load() {
		return nil
	}
	if f.hooks.start != nil {
		if err := f.hooks.start(); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrUnavailable, f.name, err)
		}
	}

	f.running.Store(true)
	return nil
}

func (f *Feed[T]) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.running.Swap(false) {
		return nil
	}
	if f.hooks.stop != nil {
		if err := f.hooks.stop(); err != nil {
			return fmt.Errorf("stopping %s: %w", f.name, err)
		}
	}
	return nil
}

func (f *Feed[T]) IsRunning() bool {
	return f.running.Load()
}

// Push delivers v to subscribers. It reports false when the feed is stopped
// and the sample was dropped.
func (f *Feed[T]) Push(v T) bool {
	if !f.running.Load() {
		return false
	}
	f.Publish(v)
	return true
}

// Shared reference-counts a producer used by several feeds, so the producer
// runs while at least one feed is started.
type Shared struct {
	mu    sync.Mutex
	refs  int
	open  func() error
	close func() error
}

func NewShared(open, close func() error) *Shared {
	return &Shared{open: open, close: close}
}

func (s *Shared) Acquire() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.refs == 0 {
		if err := s.open(); err != nil {
			return err
		}
	}
	s.refs++
	return nil
}

func (s *Shared) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.refs == 0 {
		return nil
	}
	s.refs--
	if s.refs == 0 {
		return s.close()
	}
	return nil
}
