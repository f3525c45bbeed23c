package analyzer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ghanalyzer/internal/data/models"
	gh "ghanalyzer/internal/github"
	"ghanalyzer/internal/github/githubtest"
)

// fakeRunner returns canned results; gated users block until released.
type fakeRunner struct {
	mu        sync.Mutex
	gates     map[string]chan struct{}
	ignoreCtx map[string]bool
	errs      map[string]error
	calls     []string
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		gates:     make(map[string]chan struct{}),
		ignoreCtx: make(map[string]bool),
		errs:      make(map[string]error),
	}
}

func (f *fakeRunner) gate(user string, ignoreCtx bool) func() {
	ch := make(chan struct{})
	f.mu.Lock()
	f.gates[user] = ch
	f.ignoreCtx[user] = ignoreCtx
	f.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

func (f *fakeRunner) Run(ctx context.Context, username string) (*Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, username)
	gate := f.gates[username]
	ignore := f.ignoreCtx[username]
	err := f.errs[username]
	f.mu.Unlock()

	if gate != nil {
		if ignore {
			<-gate
		} else {
			select {
			case <-gate:
			case <-ctx.Done():
				return nil, &RunError{Stage: StageProfile, Username: username, Err: ctx.Err()}
			}
		}
	}
	if err != nil {
		return nil, err
	}
	tally := models.NewLanguageTally()
	tally.Add("Go", 10)
	return &Result{
		Profile: &models.UserProfile{Login: username},
		Repos:   []models.Repository{{ID: 1, Name: username + "-repo"}},
		Tally:   tally,
	}, nil
}

func (f *fakeRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type recorder struct {
	mu     sync.Mutex
	states []State
}

func (r *recorder) record(st State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, st)
}

func (r *recorder) phases() []Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Phase, 0, len(r.states))
	for _, st := range r.states {
		out = append(out, st.Phase)
	}
	return out
}

func newTestController(t *testing.T, runner Runner, opts ...ControllerOption) *Controller {
	t.Helper()
	c, err := NewController(runner, opts...)
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	return c
}

func receive(t *testing.T, ch <-chan State) (State, bool) {
	t.Helper()
	select {
	case st, ok := <-ch:
		return st, ok
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for run")
		return State{}, false
	}
}

func TestController_InitialStateIsIdle(t *testing.T) {
	c := newTestController(t, newFakeRunner())
	if st := c.State(); st.Phase != PhaseIdle || st.Username != "" {
		t.Fatalf("unexpected initial state: %+v", st)
	}
}

func TestController_StartSuccess(t *testing.T) {
	rec := &recorder{}
	c := newTestController(t, newFakeRunner(), WithOnChange(rec.record))

	ch, err := c.Start(context.Background(), "  https://github.com/octocat ")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	st, ok := receive(t, ch)
	if !ok {
		t.Fatalf("channel closed without a state")
	}
	if st.Phase != PhaseSuccess || st.Username != "octocat" {
		t.Fatalf("unexpected state: %+v", st)
	}
	if st.Profile == nil || st.Tally.Bytes("Go") != 10 || len(st.Repos) != 1 {
		t.Fatalf("payload missing: %+v", st)
	}
	if st.Message != "" || st.Err != nil {
		t.Fatalf("success must not carry an error: %+v", st)
	}
	if _, ok := receive(t, ch); ok {
		t.Fatalf("channel must close after the terminal state")
	}

	if got := c.State(); got.Phase != PhaseSuccess || got.Username != "octocat" {
		t.Fatalf("State() = %+v", got)
	}
	phases := rec.phases()
	if len(phases) != 2 || phases[0] != PhaseLoading || phases[1] != PhaseSuccess {
		t.Fatalf("transitions = %v", phases)
	}
}

func TestController_EmptyUsernameIsRejected(t *testing.T) {
	rec := &recorder{}
	runner := newFakeRunner()
	c := newTestController(t, runner, WithOnChange(rec.record))

	for _, raw := range []string{"", "   ", "\t\n"} {
		if _, err := c.Start(context.Background(), raw); !errors.Is(err, ErrEmptyUsername) {
			t.Fatalf("Start(%q) err = %v, want ErrEmptyUsername", raw, err)
		}
	}
	if st := c.State(); st.Phase != PhaseIdle {
		t.Fatalf("state changed: %+v", st)
	}
	if len(rec.phases()) != 0 || runner.callCount() != 0 {
		t.Fatalf("empty username must not transition or run")
	}
}

func TestController_InvalidUsernameFailsAsNotFound(t *testing.T) {
	runner := newFakeRunner()
	c := newTestController(t, runner)

	ch, err := c.Start(context.Background(), "octo cat")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	st, _ := receive(t, ch)
	if st.Phase != PhaseFailed || st.Message != MsgNotFound {
		t.Fatalf("unexpected state: %+v", st)
	}
	if runner.callCount() != 0 {
		t.Fatalf("invalid login must not reach the API")
	}
}

func TestController_FailureMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "not found",
			err:  &RunError{Stage: StageProfile, Err: &gh.APIError{Kind: gh.KindNotFound, Op: "get user", StatusCode: 404, Err: errors.New("404")}},
			want: MsgNotFound,
		},
		{
			name: "remote",
			err:  &RunError{Stage: StageLanguages, Err: &gh.APIError{Kind: gh.KindRemote, Op: "get languages", StatusCode: 500, Err: errors.New("500")}},
			want: MsgGeneric,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := newFakeRunner()
			runner.errs["octocat"] = tt.err
			c := newTestController(t, runner)

			st := c.Analyze(context.Background(), "octocat")
			if st.Phase != PhaseFailed || st.Message != tt.want {
				t.Fatalf("unexpected state: %+v", st)
			}
			if st.Profile != nil || st.Repos != nil || st.Tally != nil {
				t.Fatalf("failed state must not carry payload: %+v", st)
			}
			if !errors.Is(st.Err, tt.err) {
				t.Fatalf("Err = %v, want %v", st.Err, tt.err)
			}
		})
	}
}

func TestController_LoadingClearsPreviousPayload(t *testing.T) {
	runner := newFakeRunner()
	c := newTestController(t, runner)

	if st := c.Analyze(context.Background(), "alice"); st.Phase != PhaseSuccess {
		t.Fatalf("first run: %+v", st)
	}

	release := runner.gate("bob", false)
	defer release()
	if _, err := c.Start(context.Background(), "bob"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	st := c.State()
	if st.Phase != PhaseLoading || st.Username != "bob" {
		t.Fatalf("expected loading bob, got %+v", st)
	}
	if st.Profile != nil || st.Repos != nil || st.Tally != nil || st.Message != "" {
		t.Fatalf("loading must clear payload: %+v", st)
	}
}

func TestController_NewRunReplacesInFlightRun(t *testing.T) {
	runner := newFakeRunner()
	rec := &recorder{}
	c := newTestController(t, runner, WithOnChange(rec.record))

	// alice ignores cancellation, so her completion arrives after bob's.
	releaseAlice := runner.gate("alice", true)
	chA, err := c.Start(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Start alice: %v", err)
	}
	chB, err := c.Start(context.Background(), "bob")
	if err != nil {
		t.Fatalf("Start bob: %v", err)
	}

	stB, ok := receive(t, chB)
	if !ok || stB.Phase != PhaseSuccess || stB.Username != "bob" {
		t.Fatalf("bob: ok=%v state=%+v", ok, stB)
	}

	releaseAlice()
	if st, ok := receive(t, chA); ok {
		t.Fatalf("superseded run delivered %+v", st)
	}

	if st := c.State(); st.Username != "bob" || st.Phase != PhaseSuccess {
		t.Fatalf("final state = %+v, want bob success", st)
	}
	for _, st := range rec.states {
		if st.Username == "alice" && st.Phase != PhaseLoading {
			t.Fatalf("alice's completion leaked to observers: %+v", st)
		}
	}
}

func TestController_NewRunCancelsPreviousContext(t *testing.T) {
	runner := newFakeRunner()
	c := newTestController(t, runner)

	releaseAlice := runner.gate("alice", false)
	defer releaseAlice()
	chA, _ := c.Start(context.Background(), "alice")
	chB, _ := c.Start(context.Background(), "bob")

	if _, ok := receive(t, chA); ok {
		t.Fatalf("canceled run must not deliver a state")
	}
	if st, _ := receive(t, chB); st.Username != "bob" {
		t.Fatalf("unexpected state: %+v", st)
	}
}

func TestController_Cancel(t *testing.T) {
	runner := newFakeRunner()
	rec := &recorder{}
	c := newTestController(t, runner, WithOnChange(rec.record))

	release := runner.gate("octocat", false)
	defer release()
	ch, err := c.Start(context.Background(), "octocat")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	c.Cancel()

	if st, ok := receive(t, ch); ok {
		t.Fatalf("canceled run delivered %+v", st)
	}
	if st := c.State(); st.Phase != PhaseIdle || st.Username != "" {
		t.Fatalf("state after cancel = %+v", st)
	}
	phases := rec.phases()
	if len(phases) != 2 || phases[1] != PhaseIdle {
		t.Fatalf("transitions = %v", phases)
	}

	// Cancel while idle is a no-op.
	c.Cancel()
	if len(rec.phases()) != 2 {
		t.Fatalf("idle cancel notified observers: %v", rec.phases())
	}
}

func TestController_RunTimeout(t *testing.T) {
	runner := newFakeRunner()
	release := runner.gate("slow", false)
	defer release()
	c := newTestController(t, runner, WithRunTimeout(20*time.Millisecond))

	st := c.Analyze(context.Background(), "slow")
	if st.Phase != PhaseFailed || st.Message != MsgGeneric {
		t.Fatalf("unexpected state: %+v", st)
	}
	if !errors.Is(st.Err, context.DeadlineExceeded) {
		t.Fatalf("Err = %v, want deadline exceeded", st.Err)
	}
}

func TestController_AnalyzeAgainstFakeAPI(t *testing.T) {
	srv := githubtest.NewServer(t)
	srv.AddUser(octocat())
	c := newTestController(t, newTestAggregator(t, srv))

	st := c.Analyze(context.Background(), "@octocat")
	if st.Phase != PhaseSuccess {
		t.Fatalf("unexpected state: %+v", st)
	}
	if st.Profile.Name != "The Octocat" || len(st.Repos) != 3 || st.Tally.Bytes("Go") != 350 {
		t.Fatalf("unexpected payload: %+v", st)
	}

	st = c.Analyze(context.Background(), "ghost")
	if st.Phase != PhaseFailed || st.Message != MsgNotFound {
		t.Fatalf("unexpected state for unknown user: %+v", st)
	}
}

func TestPhase_MarshalText(t *testing.T) {
	for p, want := range map[Phase]string{PhaseIdle: "idle", PhaseLoading: "loading", PhaseSuccess: "success", PhaseFailed: "failed"} {
		b, err := p.MarshalText()
		if err != nil || string(b) != want {
			t.Fatalf("MarshalText(%d) = %q, %v", p, b, err)
		}
	}
}
