package core

import (
	"context"
	"falken/pkg/diag"
	"falken/pkg/domain"
	"sync"
	"testing"
	"time"
)

type stubClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStubClock() *stubClock {
	return &stubClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *stubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

type logCall struct {
	level string
	msg   string
	kv    []any
}

type captureLogger struct {
	mu    sync.Mutex
	calls []logCall
}

func (c *captureLogger) record(level, msg string, kv []any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, logCall{level: level, msg: msg, kv: kv})
}

func (c *captureLogger) Debug(msg string, kv ...any) { c.record("debug", msg, kv) }
func (c *captureLogger) Info(msg string, kv ...any)  { c.record("info", msg, kv) }
func (c *captureLogger) Warn(msg string, kv ...any)  { c.record("warn", msg, kv) }
func (c *captureLogger) Error(msg string, kv ...any) { c.record("error", msg, kv) }

func (c *captureLogger) has(level, msg string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, call := range c.calls {
		if call.level == level && call.msg == msg {
			return true
		}
	}
	return false
}

type metricsCall struct {
	op       string
	success  bool
	duration time.Duration
}

type stepCall struct {
	brain string
	unset int
}

type captureMetricsRecorder struct {
	calls []metricsCall
	steps []stepCall
}

func (c *captureMetricsRecorder) Observe(_ context.Context, op string, success bool, duration time.Duration) {
	c.calls = append(c.calls, metricsCall{op: op, success: success, duration: duration})
}

func (c *captureMetricsRecorder) ObserveStep(_ context.Context, brain string, unset int) {
	c.steps = append(c.steps, stepCall{brain: brain, unset: unset})
}

func (c *captureMetricsRecorder) has(op string, success bool) bool {
	for _, call := range c.calls {
		if call.op == op && call.success == success {
			return true
		}
	}
	return false
}

type spanRecord struct {
	op  string
	err error
}

type captureTracer struct {
	started []string
	ended   []spanRecord
}

func (c *captureTracer) Start(ctx context.Context, op string) (context.Context, TraceSpan) {
	c.started = append(c.started, op)
	return ctx, &captureSpan{tracer: c, op: op}
}

type captureSpan struct {
	tracer *captureTracer
	op     string
}

func (s *captureSpan) End(err error) {
	s.tracer.ended = append(s.tracer.ended, spanRecord{op: s.op, err: err})
}

func (c *captureTracer) has(op string, success bool) bool {
	for _, record := range c.ended {
		if record.op == op && (record.err == nil) == success {
			return true
		}
	}
	return false
}

type capturePublisher struct {
	mu     sync.Mutex
	events []StepEvent
}

func (c *capturePublisher) Publish(_ context.Context, ev StepEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func testDiag() *diag.Logger { return diag.Discard(diag.WithAbortOnFatal(false)) }

func runnerSchema() domain.BrainSchema {
	return domain.BrainSchema{
		Name: "runner",
		Observations: domain.ObservationSchema{
			Player: &domain.EntitySchema{Fields: []domain.FieldSpec{
				domain.NumberField("health", 0, 100),
			}},
			Globals: []domain.EntitySchema{
				{Name: "goal", Fields: []domain.FieldSpec{domain.BoolField("open")}},
			},
		},
		Actions: []domain.FieldSpec{
			domain.NumberField("throttle", -1, 1),
			domain.CategoricalField("tool", "hammer", "saw"),
		},
	}
}

// fillObservations writes every observation attribute of the runner brain.
func fillObservations(t *testing.T, b *domain.BrainSpec, health float32) {
	t.Helper()
	p := b.Player()
	goal, ok := b.Observations.Entity("goal")
	if !ok {
		t.Fatalf("goal entity missing")
	}
	for i, err := range []error{
		p.Position().Set(domain.Position{X: 1, Y: 0, Z: 2}),
		p.Rotation().Set(domain.IdentityRotation()),
		p.MustAttribute("health").SetNumber(health),
		goal.Position().Set(domain.Position{X: 5}),
		goal.Rotation().Set(domain.IdentityRotation()),
		goal.MustAttribute("open").SetBool(true),
	} {
		if err != nil {
			t.Fatalf("fill observation %d: %v", i, err)
		}
	}
}

func fillActions(t *testing.T, b *domain.BrainSpec, throttle float32, tool int) {
	t.Helper()
	if err := b.Actions.MustAttribute("throttle").SetNumber(throttle); err != nil {
		t.Fatalf("set throttle: %v", err)
	}
	if err := b.Actions.MustAttribute("tool").SetCategory(tool); err != nil {
		t.Fatalf("set tool: %v", err)
	}
}

func newTestService(t *testing.T, opts ...ServiceOption) *Service {
	t.Helper()
	base := []ServiceOption{WithClock(newStubClock()), WithDiagnostics(testDiag())}
	return NewInMemoryService(append(base, opts...)...)
}

func newTestEpisode(t *testing.T, svc *Service, mode SessionMode) (*Brain, *Session, *Episode) {
	t.Helper()
	ctx := context.Background()
	brain, err := svc.CreateBrain(ctx, runnerSchema())
	if err != nil {
		t.Fatalf("create brain: %v", err)
	}
	session, err := svc.StartSession(ctx, brain, mode)
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	ep, err := session.StartEpisode(ctx)
	if err != nil {
		t.Fatalf("start episode: %v", err)
	}
	return brain, session, ep
}
