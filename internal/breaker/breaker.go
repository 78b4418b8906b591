package breaker

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrOpen is returned (wrapped with the breaker name) when a call is rejected
// without invoking the operation.
var ErrOpen = errors.New("circuit breaker is open")

const (
	DefaultFailureThreshold = 5
	DefaultCoolDown         = 60 * time.Second
)

type Settings struct {
	Name             string
	FailureThreshold int           // failures before Closed -> Open (default 5)
	CoolDown         time.Duration // Open -> HalfOpen delay (default 60s)

	// OnStateChange runs with the breaker lock held; it must not call back into the breaker.
	OnStateChange func(name string, from, to State)
}

// Breaker isolates calls to one external dependency.
//
// Closed: calls pass; failures are counted and a success clears the count.
// Reaching the threshold opens the breaker and arms a cool-down timer.
// Open: calls are rejected with ErrOpen until the cool-down since the last
// failure has elapsed; the first call after that moves to HalfOpen and is attempted.
// HalfOpen: a single trial call is attempted while others are rejected; its
// success closes the breaker, its failure re-opens it.
type Breaker struct {
	mu          sync.Mutex
	name        string
	threshold   int
	coolDown    time.Duration
	onChange    func(name string, from, to State)
	st          State
	failures    int
	lastFailure time.Time
	timer       *time.Timer
	generation  uint64
	trialing     bool

	now func() time.Time
}

func New(s Settings) *Breaker {
	if s.FailureThreshold <= 0 {
		s.FailureThreshold = DefaultFailureThreshold
	}
	if s.CoolDown <= 0 {
		s.CoolDown = DefaultCoolDown
	}
	return &Breaker{
		name:      s.Name,
		threshold: s.FailureThreshold,
		coolDown:  s.CoolDown,
		onChange:  s.OnStateChange,
		now:       time.Now,
	}
}

func (b *Breaker) Name() string { return b.name }

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.st
}

func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// Execute runs op unless the breaker rejects the call. The returned error is
// either a wrapped ErrOpen (op not invoked) or op's own error.
func (b *Breaker) Execute(op func() error) error {
	trial, err := b.admit()
	if err != nil {
		return err
	}
	err = op()
	b.record(err == nil, trial)
	return err
}

// Do is Execute for operations that produce a value.
func Do[T any](b *Breaker, op func() (T, error)) (T, error) {
	var out T
	err := b.Execute(func() error {
		v, err := op()
		out = v
		return err
	})
	return out, err
}

// admit reports whether the admitted call is the HalfOpen trial call.
func (b *Breaker) admit() (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.st {
	case Closed:
		return false, nil
	case Open:
		if b.now().Sub(b.lastFailure) < b.coolDown {
			return false, fmt.Errorf("%w: %s", ErrOpen, b.name)
		}
		b.setState(HalfOpen)
	}
	if b.trialing {
		return false, fmt.Errorf("%w: %s: trial call in flight", ErrOpen, b.name)
	}
	b.trialing = true
	return true, nil
}

func (b *Breaker) record(success, trial bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if trial {
		b.trialing = false
	} else if b.st == HalfOpen {
		// a call admitted before the breaker opened; only the trial call decides
		if !success {
			b.failures++
			b.lastFailure = b.now()
		}
		return
	}

	if success {
		if b.st == HalfOpen {
			b.reset()
			return
		}
		if b.st == Closed {
			b.failures = 0
		}
		return
	}

	b.failures++
	b.lastFailure = b.now()

	switch b.st {
	case HalfOpen:
		b.trip()
	case Closed:
		if b.failures >= b.threshold {
			b.trip()
		}
	}
}

// trip moves to Open and arms the cool-down timer; caller holds mu.
func (b *Breaker) trip() {
	b.trialing = false
	b.setState(Open)
	b.stopTimer()
	b.generation++
	gen := b.generation
	b.timer = time.AfterFunc(b.coolDown, func() { b.coolDownElapsed(gen) })
}

func (b *Breaker) coolDownElapsed(gen uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if gen != b.generation || b.st != Open {
		return
	}
	b.setState(HalfOpen)
}

// reset closes the breaker; caller holds mu.
func (b *Breaker) reset() {
	b.stopTimer()
	b.generation++
	b.failures = 0
	b.trialing = false
	b.setState(Closed)
}

func (b *Breaker) stopTimer() {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}

func (b *Breaker) setState(to State) {
	from := b.st
	if from == to {
		return
	}
	b.st = to
	if b.onChange != nil {
		b.onChange(b.name, from, to)
	}
}
