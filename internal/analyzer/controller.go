package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"ghanalyzer/internal/config"
	"ghanalyzer/internal/data/models"
)

var (
	ErrEmptyUsername   = config.ErrEmptyUsername
	ErrInvalidUsername = config.ErrInvalidUsername
)

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseSuccess
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLoading:
		return "loading"
	case PhaseSuccess:
		return "success"
	case PhaseFailed:
		return "failed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// State is a snapshot of the controller. Profile, Repos and Tally are only
// set in PhaseSuccess; Message and Err only in PhaseFailed.
type State struct {
	Phase      Phase                 `json:"phase"`
	Username   string                `json:"username,omitempty"`
	Profile    *models.UserProfile   `json:"profile,omitempty"`
	Repos      []models.Repository   `json:"repos,omitempty"`
	Tally      *models.LanguageTally `json:"languages,omitempty"`
	Message    string                `json:"message,omitempty"`
	StartedAt  time.Time             `json:"started_at,omitzero"`
	FinishedAt time.Time             `json:"finished_at,omitzero"`

	Err error `json:"-"`
}

// Runner runs one analysis. *Aggregator implements it.
type Runner interface {
	Run(ctx context.Context, username string) (*Result, error)
}

// Controller owns the single analysis state shared by a presentation layer.
//
// At most one run is live: starting a new run cancels the previous one, and a
// superseded run never touches the state.
type Controller struct {
	runner  Runner
	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time

	// transition serializes state changes together with their notification,
	// so observers see transitions in order. onChange must not call Start or
	// Cancel synchronously.
	transition sync.Mutex
	onChange   func(State)

	mu     sync.Mutex
	state  State
	gen    uint64
	cancel context.CancelFunc
}

type ControllerOption func(*Controller)

// WithOnChange registers an observer called after every transition.
func WithOnChange(fn func(State)) ControllerOption {
	return func(c *Controller) {
		c.onChange = fn
	}
}

// WithRunTimeout bounds every run. Zero means no limit beyond the caller's ctx.
func WithRunTimeout(d time.Duration) ControllerOption {
	return func(c *Controller) {
		c.timeout = d
	}
}

func WithControllerLogger(logger *slog.Logger) ControllerOption {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func NewController(runner Runner, opts ...ControllerOption) (*Controller, error) {
	if runner == nil {
		return nil, errors.New("runner is nil")
	}
	c := &Controller{
		runner: runner,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// State returns a copy of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Start begins analysing username and returns a channel that yields the
// terminal state of this run and is then closed. If the run is superseded by
// another Start or by Cancel the channel is closed without a value.
//
// A blank username returns ErrEmptyUsername and leaves the state untouched.
// A username that is not a valid login fails the run as not found without
// contacting the API.
func (c *Controller) Start(ctx context.Context, username string) (<-chan State, error) {
	if ctx == nil {
		return nil, errors.New("ctx is nil")
	}
	login, normErr := config.NormalizeUsername(username)
	if errors.Is(normErr, ErrEmptyUsername) {
		return nil, ErrEmptyUsername
	}
	if normErr != nil {
		login = strings.TrimSpace(username)
	}

	c.transition.Lock()
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.gen++
	gen := c.gen

	var runCtx context.Context
	var cancel context.CancelFunc
	if c.timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, c.timeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	c.cancel = cancel
	c.state = State{Phase: PhaseLoading, Username: login, StartedAt: c.now()}
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(snap)
	c.transition.Unlock()

	c.logger.Debug("analysis started", "user", login, "run", gen)

	out := make(chan State, 1)
	go func() {
		defer close(out)
		defer cancel()

		var res *Result
		err := normErr
		if err == nil {
			res, err = c.runner.Run(runCtx, login)
		}
		if st, ok := c.finish(gen, login, res, err); ok {
			out <- st
		}
	}()
	return out, nil
}

// Analyze runs synchronously and returns the terminal state. When the run
// cannot start or is superseded, the current state is returned.
func (c *Controller) Analyze(ctx context.Context, username string) State {
	ch, err := c.Start(ctx, username)
	if err != nil {
		return c.State()
	}
	st, ok := <-ch
	if !ok {
		return c.State()
	}
	return st
}

// Cancel aborts the in-flight run, if any, and returns to PhaseIdle.
func (c *Controller) Cancel() {
	c.transition.Lock()
	defer c.transition.Unlock()

	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.gen++
	changed := c.state.Phase != PhaseIdle
	c.state = State{Phase: PhaseIdle}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	if changed {
		c.notify(snap)
	}
}

func (c *Controller) finish(gen uint64, login string, res *Result, err error) (State, bool) {
	c.transition.Lock()
	defer c.transition.Unlock()

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		c.logger.Debug("discarding superseded run", "user", login, "run", gen)
		return State{}, false
	}
	c.cancel = nil

	st := State{Username: login, StartedAt: c.state.StartedAt, FinishedAt: c.now()}
	if err != nil {
		st.Phase = PhaseFailed
		st.Message = UserMessage(err)
		st.Err = err
	} else {
		st.Phase = PhaseSuccess
		st.Profile = res.Profile
		st.Repos = res.Repos
		st.Tally = res.Tally
	}
	c.state = st
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(snap)
	return snap, true
}

func (c *Controller) snapshotLocked() State {
	st := c.state
	if st.Repos != nil {
		st.Repos = append([]models.Repository(nil), st.Repos...)
	}
	return st
}

func (c *Controller) notify(st State) {
	if c.onChange != nil {
		c.onChange(st)
	}
}
