package auth

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sadopc/timesheet/internal/apperr"
	"github.com/sadopc/timesheet/internal/identity"
	"github.com/sadopc/timesheet/internal/model"
	"github.com/sadopc/timesheet/internal/store"
)

// fakeProvider hands out sessions for any token it was told about.
type fakeProvider struct {
	mu       sync.Mutex
	current  *model.Session
	tokens   map[string]string
	sent     []string
	signOuts int
	events   chan identity.Event
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{tokens: map[string]string{}, events: make(chan identity.Event, 8)}
}

func (p *fakeProvider) CurrentSession(context.Context) (*model.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current, nil
}

func (p *fakeProvider) SendLink(_ context.Context, email string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, email)
	return nil
}

func (p *fakeProvider) Verify(_ context.Context, token string) (*model.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	email, ok := p.tokens[token]
	if !ok {
		return nil, identity.ErrInvalidToken
	}
	p.current = &model.Session{ID: "sess-" + token, Email: email}
	return p.current, nil
}

func (p *fakeProvider) SignOut(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signOuts++
	p.current = nil
	return nil
}

func (p *fakeProvider) Subscribe() (<-chan identity.Event, func()) {
	var once sync.Once
	return p.events, func() { once.Do(func() { close(p.events) }) }
}

func (p *fakeProvider) sentCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sent)
}

func (p *fakeProvider) signOutCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.signOuts
}

func newTestSession(t *testing.T) (*Session, *fakeProvider, *store.Store) {
	t.Helper()
	st, err := store.NewMemory()
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	p := newFakeProvider()
	s := NewSession(p, st, slog.New(slog.DiscardHandler))
	return s, p, st
}

func allow(t *testing.T, st *store.Store, email string, role model.Role) {
	t.Helper()
	_, err := st.AllowEmail(context.Background(), email, role, "test")
	require.NoError(t, err)
}

func countUsers(t *testing.T, st *store.Store) int {
	t.Helper()
	users, err := st.ListUsers(context.Background())
	require.NoError(t, err)
	return len(users)
}

// ============================================================
// Capabilities
// ============================================================

func TestCapabilities(t *testing.T) {
	tests := []struct {
		role model.Role
		want []Capability
	}{
		{model.RoleUser, []Capability{TimeTracking, Projects}},
		{model.RoleSupervisor, []Capability{TimeTracking, Projects, Analytics}},
		{model.RoleManager, []Capability{TimeTracking, Projects, Analytics, Management}},
		{model.Role("admin"), []Capability{TimeTracking, Projects}},
	}
	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			assert.Equal(t, tt.want, Capabilities(tt.role))
		})
	}
}

func TestHas(t *testing.T) {
	assert.True(t, Has(model.RoleUser, Projects))
	assert.False(t, Has(model.RoleUser, Analytics))
	assert.True(t, Has(model.RoleSupervisor, Analytics))
	assert.False(t, Has(model.RoleSupervisor, Management))
	assert.True(t, Has(model.RoleManager, Management))
}

// ============================================================
// Sign-in
// ============================================================

func TestSignInUnlistedEmailIsNotAuthorized(t *testing.T) {
	s, p, st := newTestSession(t)

	err := s.SignIn(context.Background(), "stranger@example.com")
	require.ErrorIs(t, err, apperr.ErrNotAuthorized)
	assert.ErrorIs(t, s.Err(), apperr.ErrNotAuthorized)
	assert.Zero(t, p.sentCount(), "no link may be sent")
	assert.Zero(t, countUsers(t, st), "no user may be created")

	_, ok := s.Current()
	assert.False(t, ok)
	assert.Nil(t, s.Capabilities())
}

func TestSignInInvalidEmail(t *testing.T) {
	s, p, _ := newTestSession(t)
	err := s.SignIn(context.Background(), "not-an-email")
	var vf *apperr.ValidationFailed
	require.True(t, errors.As(err, &vf))
	assert.Equal(t, []string{"email"}, vf.Fields)
	assert.Zero(t, p.sentCount())
}

func TestSignInSendsLinkForListedEmail(t *testing.T) {
	s, p, st := newTestSession(t)
	allow(t, st, "ada@example.com", model.RoleUser)

	require.NoError(t, s.SignIn(context.Background(), "  Ada@Example.com "))
	assert.Equal(t, []string{"ada@example.com"}, p.sent)
	assert.Zero(t, countUsers(t, st), "user is created on verify, not on request")
}

func TestVerifyBindsUserWithAllowListedRole(t *testing.T) {
	s, p, st := newTestSession(t)
	allow(t, st, "ada@example.com", model.RoleManager)
	p.tokens["tok"] = "ada@example.com"

	require.NoError(t, s.Verify(context.Background(), "tok"))

	u, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, "ada@example.com", u.Email)
	assert.Equal(t, model.RoleManager, u.Role)
	assert.Equal(t, "ada", u.DisplayName)
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, []Capability{TimeTracking, Projects, Analytics, Management}, s.Capabilities())
	assert.NoError(t, s.Err())
	assert.Equal(t, 1, countUsers(t, st))
	assert.Equal(t, "ada@example.com (manager)", s.String())
}

func TestVerifyKeepsExistingProfile(t *testing.T) {
	s, p, st := newTestSession(t)
	allow(t, st, "ada@example.com", model.RoleSupervisor)
	existing, err := st.UpsertUser(context.Background(), model.User{
		Email: "ada@example.com", DisplayName: "Ada Lovelace", Role: model.RoleUser,
	})
	require.NoError(t, err)
	p.tokens["tok"] = "ada@example.com"

	require.NoError(t, s.Verify(context.Background(), "tok"))
	u, _ := s.Current()
	assert.Equal(t, existing.ID, u.ID)
	assert.Equal(t, "Ada Lovelace", u.DisplayName)
	assert.Equal(t, model.RoleSupervisor, u.Role, "role follows the allow-list")
	assert.Equal(t, 1, countUsers(t, st))
}

func TestVerifyUnlistedSessionIsSignedOut(t *testing.T) {
	s, p, st := newTestSession(t)
	p.tokens["tok"] = "stranger@example.com"

	err := s.Verify(context.Background(), "tok")
	require.ErrorIs(t, err, apperr.ErrNotAuthorized)
	assert.Equal(t, 1, p.signOutCount())
	assert.Zero(t, countUsers(t, st))
}

func TestVerifyBadToken(t *testing.T) {
	s, _, _ := newTestSession(t)

	err := s.Verify(context.Background(), "nope")
	var wf *apperr.WriteFailed
	require.True(t, errors.As(err, &wf))
	assert.ErrorIs(t, err, identity.ErrInvalidToken)

	var vf *apperr.ValidationFailed
	require.True(t, errors.As(s.Verify(context.Background(), "  "), &vf))
}

// ============================================================
// Lifecycle
// ============================================================

func TestStartRestoresExistingSession(t *testing.T) {
	s, p, st := newTestSession(t)
	allow(t, st, "ada@example.com", model.RoleSupervisor)
	p.current = &model.Session{ID: "s1", Email: "ada@example.com"}

	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(s.Close)

	u, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, model.RoleSupervisor, u.Role)
}

func TestStartWithRevokedAllowListSignsOut(t *testing.T) {
	s, p, _ := newTestSession(t)
	p.current = &model.Session{ID: "s1", Email: "former@example.com"}

	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(s.Close)

	_, ok := s.Current()
	assert.False(t, ok)
	assert.ErrorIs(t, s.Err(), apperr.ErrNotAuthorized)
	assert.Equal(t, 1, p.signOutCount())
}

func TestEventsDriveBinding(t *testing.T) {
	s, p, st := newTestSession(t)
	allow(t, st, "ada@example.com", model.RoleUser)

	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(s.Close)
	_, ok := s.Current()
	require.False(t, ok)

	p.events <- identity.Event{Kind: identity.SignedIn, Session: &model.Session{ID: "s1", Email: "ada@example.com"}}
	require.Eventually(t, func() bool {
		_, ok := s.Current()
		return ok
	}, time.Second, 5*time.Millisecond)

	select {
	case <-s.Changes():
	case <-time.After(time.Second):
		t.Fatal("expected a change notification")
	}

	p.events <- identity.Event{Kind: identity.SignedOut}
	require.Eventually(t, func() bool {
		_, ok := s.Current()
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestCloseStopsEventLoop(t *testing.T) {
	s, _, _ := newTestSession(t)
	require.NoError(t, s.Start(context.Background()))
	s.Close()
	s.Close()
}

func TestSignOutClearsUser(t *testing.T) {
	s, p, st := newTestSession(t)
	allow(t, st, "ada@example.com", model.RoleUser)
	p.tokens["tok"] = "ada@example.com"
	require.NoError(t, s.Verify(context.Background(), "tok"))

	require.NoError(t, s.SignOut(context.Background()))
	_, ok := s.Current()
	assert.False(t, ok)
	assert.Equal(t, "signed out", s.String())
	assert.Equal(t, 1, countUsers(t, st), "sign-out keeps the user row")
}

func TestUpdateProfile(t *testing.T) {
	s, p, st := newTestSession(t)

	_, err := s.UpdateProfile(context.Background(), "Ada")
	require.ErrorIs(t, err, apperr.ErrNotAuthorized)

	allow(t, st, "ada@example.com", model.RoleUser)
	p.tokens["tok"] = "ada@example.com"
	require.NoError(t, s.Verify(context.Background(), "tok"))

	_, err = s.UpdateProfile(context.Background(), "   ")
	var vf *apperr.ValidationFailed
	require.True(t, errors.As(err, &vf))

	u, err := s.UpdateProfile(context.Background(), "Ada Lovelace")
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", u.DisplayName)

	stored, err := st.GetUserByEmail(context.Background(), "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", stored.DisplayName)
}
