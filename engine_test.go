package postAuth

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/postAuth/internal/audit"
	"github.com/MrEthical07/postAuth/store"
	"go.uber.org/zap/zaptest"
)

const (
	testPassword = "Correct-Horse-9!"
	testPhone    = "+15551234567"
)

var smsCodePattern = regexp.MustCompile(`\d{6}`)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type sentSMS struct {
	phoneNumber string
	message     string
}

type recordingGateway struct {
	sent chan sentSMS
}

func newRecordingGateway() *recordingGateway {
	return &recordingGateway{sent: make(chan sentSMS, 64)}
}

func (g *recordingGateway) Send(_ context.Context, phoneNumber, message string) error {
	g.sent <- sentSMS{phoneNumber: phoneNumber, message: message}
	return nil
}

func (g *recordingGateway) next(t *testing.T) sentSMS {
	t.Helper()
	select {
	case msg := <-g.sent:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for sms")
		return sentSMS{}
	}
}

func (g *recordingGateway) nextCode(t *testing.T) string {
	t.Helper()
	msg := g.next(t)
	code := smsCodePattern.FindString(msg.message)
	if code == "" {
		t.Fatalf("no code in sms %q", msg.message)
	}
	return code
}

func (g *recordingGateway) expectNone(t *testing.T) {
	t.Helper()
	select {
	case msg := <-g.sent:
		t.Fatalf("unexpected sms to %s: %q", msg.phoneNumber, msg.message)
	case <-time.After(50 * time.Millisecond):
	}
}

type testEnv struct {
	engine  *Engine
	store   store.Store
	gateway *recordingGateway
	clock   *fakeClock
	audit   *audit.ChannelSink
	config  Config
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Session.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.Password.Pepper = []byte("pepper-pepper-16")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.SMS.Workers = 1
	return cfg
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWith(t, testConfig(), store.NewMemoryStore())
}

func newTestEnvWith(t *testing.T, cfg Config, s store.Store) *testEnv {
	t.Helper()
	return newTestEnvBuilt(t, cfg, s, nil)
}

// newTestEnvBuilt lets a test add collaborators before Build.
func newTestEnvBuilt(t *testing.T, cfg Config, s store.Store, extra func(*Builder)) *testEnv {
	t.Helper()

	if err := s.Migrate(context.Background(), store.DefaultSchema()); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}

	env := &testEnv{
		store:   s,
		gateway: newRecordingGateway(),
		clock:   newFakeClock(),
		audit:   NewChannelSink(512),
		config:  cfg,
	}
	b := New().
		WithConfig(cfg).
		WithStore(s).
		WithSMSGateway(env.gateway).
		WithLogger(zaptest.NewLogger(t)).
		WithAuditSink(env.audit).
		WithClock(env.clock.Now)
	if extra != nil {
		extra(b)
	}
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	env.engine = engine
	t.Cleanup(engine.Close)
	return env
}

func registerInput(username string) RegisterInput {
	return RegisterInput{
		Username:    username,
		Email:       username + "@example.com",
		Password:    testPassword,
		PhoneNumber: testPhone,
	}
}

func (env *testEnv) register(t *testing.T, username string) []string {
	t.Helper()
	res, err := env.engine.Register(context.Background(), registerInput(username))
	if err != nil {
		t.Fatalf("Register(%s) failed: %v", username, err)
	}
	return res.RecoveryCodes
}

func (env *testEnv) seedAdmin(t *testing.T, username string) {
	t.Helper()
	if _, err := env.engine.SeedAccount(context.Background(), registerInput(username), RoleAdmin); err != nil {
		t.Fatalf("SeedAccount(%s) failed: %v", username, err)
	}
}

// login runs phase one and returns the texted code.
func (env *testEnv) login(t *testing.T, username string) string {
	t.Helper()
	if err := env.engine.Login(context.Background(), username, testPassword); err != nil {
		t.Fatalf("Login(%s) failed: %v", username, err)
	}
	return env.gateway.nextCode(t)
}

// session runs both phases and returns the session token.
func (env *testEnv) session(t *testing.T, username string) string {
	t.Helper()
	code := env.login(t, username)
	res, err := env.engine.Verify(context.Background(), username, code)
	if err != nil {
		t.Fatalf("Verify(%s) failed: %v", username, err)
	}
	return res.SessionToken
}

func (env *testEnv) account(t *testing.T, username string) *store.Account {
	t.Helper()
	a, err := env.store.Get(context.Background(), username)
	if err != nil {
		t.Fatalf("Get(%s) failed: %v", username, err)
	}
	return a
}

// auditEvents drains buffered engine audit events.
func (env *testEnv) auditEvents(t *testing.T) []AuditEvent {
	t.Helper()
	env.engine.audit.Close()
	var out []AuditEvent
	for {
		select {
		case ev := <-env.audit.Events():
			out = append(out, ev)
		default:
			return out
		}
	}
}

func wrongCode(code string) string {
	if code == "000000" {
		return "111111"
	}
	return "000000"
}
