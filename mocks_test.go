package accounts_test

import (
	"context"
	"sync"

	accounts "github.com/goliatone/go-accounts"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockAccountTracker implements accounts.AccountTracker for provider tests
type MockAccountTracker struct {
	mock.Mock
}

func (m *MockAccountTracker) GetByIdentifier(ctx context.Context, identifier string) (*accounts.Account, error) {
	args := m.Called(ctx, identifier)
	if acc, ok := args.Get(0).(*accounts.Account); ok {
		return acc, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAccountTracker) TrackAttemptedLogin(ctx context.Context, account *accounts.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *MockAccountTracker) TrackSuccessfulLogin(ctx context.Context, account *accounts.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

// MockStatusStore backs state machine tests
type MockStatusStore struct {
	mock.Mock
}

func (m *MockStatusStore) UpdateStatus(ctx context.Context, id uuid.UUID, status accounts.AccountStatus) (*accounts.Account, error) {
	args := m.Called(ctx, id, status)
	if acc, ok := args.Get(0).(*accounts.Account); ok {
		return acc, args.Error(1)
	}
	return nil, args.Error(1)
}

// testIdentity is a plain identity fixture
type testIdentity struct {
	id     string
	email  string
	role   string
	status accounts.AccountStatus
}

func (t testIdentity) ID() string                     { return t.id }
func (t testIdentity) Email() string                  { return t.email }
func (t testIdentity) Role() string                   { return t.role }
func (t testIdentity) Status() accounts.AccountStatus { return t.status }

// testConfig implements accounts.Config with fixed values
type testConfig struct {
	signingKey       string
	tokenExpiration  int
	extendedDuration int
}

func (c testConfig) GetSigningKey() string {
	if c.signingKey == "" {
		return "test-signing-key"
	}
	return c.signingKey
}

func (c testConfig) GetSigningMethod() string { return "HS256" }
func (c testConfig) GetContextKey() string    { return "session" }

func (c testConfig) GetTokenExpiration() int {
	if c.tokenExpiration == 0 {
		return 1
	}
	return c.tokenExpiration
}

func (c testConfig) GetExtendedTokenDuration() int {
	if c.extendedDuration == 0 {
		return 24
	}
	return c.extendedDuration
}

func (c testConfig) GetTokenLookup() string         { return "cookie:session" }
func (c testConfig) GetAuthScheme() string          { return "Bearer" }
func (c testConfig) GetIssuer() string              { return "test-issuer" }
func (c testConfig) GetAudience() []string          { return []string{"test-audience"} }
func (c testConfig) GetRejectedRouteKey() string    { return "rejected_route" }
func (c testConfig) GetRejectedRouteDefault() string { return "/" }

// recordingSink captures every activity event, safe for concurrent use
type recordingSink struct {
	mu     sync.Mutex
	events []accounts.ActivityEvent
}

func (s *recordingSink) Record(ctx context.Context, event accounts.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) Events() []accounts.ActivityEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]accounts.ActivityEvent, len(s.events))
	copy(out, s.events)
	return out
}

func (s *recordingSink) ByType(eventType accounts.ActivityEventType) []accounts.ActivityEvent {
	out := []accounts.ActivityEvent{}
	for _, e := range s.Events() {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

// recordingNotifier signals deliveries over channels so tests can wait on
// the fire-and-forget dispatch
type recordingNotifier struct {
	activations chan string
	resets      chan string
	fail        error
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{
		activations: make(chan string, 8),
		resets:      make(chan string, 8),
	}
}

func (n *recordingNotifier) SendActivationEmail(ctx context.Context, account *accounts.Account, code string) error {
	if n.fail != nil {
		n.activations <- code
		return n.fail
	}
	n.activations <- code
	return nil
}

func (n *recordingNotifier) SendResetEmail(ctx context.Context, account *accounts.Account, code string) error {
	if n.fail != nil {
		n.resets <- code
		return n.fail
	}
	n.resets <- code
	return nil
}
