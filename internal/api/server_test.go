package api

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sadopc/timesheet/internal/gateway"
	"github.com/sadopc/timesheet/internal/identity"
	"github.com/sadopc/timesheet/internal/model"
	"github.com/sadopc/timesheet/internal/store"
)

const testKey = "anon-key"

// captureMailer keeps the last link per address.
type captureMailer struct {
	mu    sync.Mutex
	links map[string]string
}

func (m *captureMailer) SendLink(_ context.Context, email, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.links == nil {
		m.links = map[string]string{}
	}
	m.links[email] = link
	return nil
}

func (m *captureMailer) token(t *testing.T, email string) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	u, err := url.Parse(m.links[email])
	require.NoError(t, err)
	tok := u.Query().Get("token")
	require.NotEmpty(t, tok, "no link sent to %s", email)
	return tok
}

type testServer struct {
	st     *store.Store
	mailer *captureMailer
	h      http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	st, err := store.NewMemory()
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	logger := slog.New(slog.DiscardHandler)
	mailer := &captureMailer{}
	issuer := identity.NewIssuer(st, mailer, "http://localhost/auth/v1/verify", logger)
	return &testServer{st: st, mailer: mailer, h: New(st, issuer, testKey, logger).Router()}
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("apikey", testKey)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.h.ServeHTTP(rec, req)
	return rec
}

// allow puts email on the allow-list with role.
func (ts *testServer) allow(t *testing.T, email string, role model.Role) {
	t.Helper()
	_, err := ts.st.AllowEmail(context.Background(), email, role, "seed")
	require.NoError(t, err)
}

// signIn allow-lists email, runs the link flow and returns the session token.
func (ts *testServer) signIn(t *testing.T, email string, role model.Role) string {
	t.Helper()
	ts.allow(t, email, role)
	rec := ts.do(t, http.MethodPost, "/auth/v1/otp", "", map[string]string{"email": email})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodPost, "/auth/v1/verify", "", map[string]string{"token": ts.mailer.token(t, email)})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var sess model.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))
	return sess.ID
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// ============================================================
// Middleware
// ============================================================

func TestHealthzNeedsNoKey(t *testing.T) {
	ts := newTestServer(t)
	rec := httptest.NewRecorder()
	ts.h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPIKeyRequired(t *testing.T) {
	ts := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/rest/v1/projects", nil)
	req.Header.Set("apikey", "wrong")
	rec := httptest.NewRecorder()
	ts.h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSessionRequired(t *testing.T) {
	ts := newTestServer(t)
	assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodGet, "/rest/v1/projects", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodGet, "/rest/v1/projects", "bogus", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodGet, "/rest/v1/authorized_emails", "", nil).Code)
}

// ============================================================
// Auth
// ============================================================

func TestLinkFlow(t *testing.T) {
	ts := newTestServer(t)
	token := ts.signIn(t, "Ada@Example.com", model.RoleUser)

	rec := ts.do(t, http.MethodGet, "/auth/v1/session", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	sess := decodeBody[model.Session](t, rec)
	assert.Equal(t, "ada@example.com", sess.Email)

	assert.Equal(t, http.StatusNoContent, ts.do(t, http.MethodPost, "/auth/v1/logout", token, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodGet, "/auth/v1/session", token, nil).Code)
}

func TestVerifyTokenIsSingleUse(t *testing.T) {
	ts := newTestServer(t)
	ts.allow(t, "ada@example.com", model.RoleUser)
	ts.do(t, http.MethodPost, "/auth/v1/otp", "", map[string]string{"email": "ada@example.com"})
	tok := ts.mailer.token(t, "ada@example.com")

	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/auth/v1/verify", "", map[string]string{"token": tok}).Code)
	assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodPost, "/auth/v1/verify", "", map[string]string{"token": tok}).Code)
}

func TestSendLinkRejectsBadEmail(t *testing.T) {
	ts := newTestServer(t)
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodPost, "/auth/v1/otp", "", map[string]string{"email": "nope"}).Code)
}

func TestSendLinkRefusesUnlistedEmail(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodPost, "/auth/v1/otp", "", map[string]string{"email": "mallory@example.com"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, ts.mailer.links["mallory@example.com"])

	_, err := ts.st.GetUserByEmail(context.Background(), "mallory@example.com")
	assert.ErrorIs(t, err, gateway.ErrNotFound)
}

// ============================================================
// Users and allow-list
// ============================================================

func TestAuthorizedEmailLookupWithoutSession(t *testing.T) {
	ts := newTestServer(t)
	_, err := ts.st.AllowEmail(context.Background(), "ada@example.com", model.RoleSupervisor, "seed")
	require.NoError(t, err)

	rec := ts.do(t, http.MethodGet, "/rest/v1/authorized_emails?email=ada@example.com", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[[]model.AuthorizedEmail](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, model.RoleSupervisor, list[0].Role)

	rec = ts.do(t, http.MethodGet, "/rest/v1/authorized_emails?email=bob@example.com", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody[[]model.AuthorizedEmail](t, rec))
}

func TestUpsertUserOnlyOwnRow(t *testing.T) {
	ts := newTestServer(t)
	token := ts.signIn(t, "ada@example.com", model.RoleUser)

	rec := ts.do(t, http.MethodPut, "/rest/v1/users", token, model.User{Email: "bob@example.com"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, http.MethodPut, "/rest/v1/users", token, model.User{Email: "ada@example.com", DisplayName: "Ada", Role: model.RoleUser})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	u := decodeBody[model.User](t, rec)
	assert.Equal(t, "Ada", u.DisplayName)

	rec = ts.do(t, http.MethodGet, "/rest/v1/users?email=ada@example.com", token, nil)
	assert.Len(t, decodeBody[[]model.User](t, rec), 1)
	rec = ts.do(t, http.MethodGet, "/rest/v1/users", token, nil)
	assert.Len(t, decodeBody[[]model.User](t, rec), 1)
}

func TestUpsertUserTakesRoleFromAllowList(t *testing.T) {
	ts := newTestServer(t)
	token := ts.signIn(t, "ada@example.com", model.RoleUser)

	for _, role := range []model.Role{model.RoleManager, "root", ""} {
		rec := ts.do(t, http.MethodPut, "/rest/v1/users", token, model.User{Email: "ada@example.com", Role: role})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, model.RoleUser, decodeBody[model.User](t, rec).Role, "body role %q", role)
	}

	// A role change on the allow-list is picked up on the next upsert.
	ts.allow(t, "ada@example.com", model.RoleSupervisor)
	rec := ts.do(t, http.MethodPut, "/rest/v1/users", token, model.User{Email: "ada@example.com"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.RoleSupervisor, decodeBody[model.User](t, rec).Role)
}

func TestUpsertUserNeedsAllowListEntry(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	sess, err := ts.st.CreateSession(ctx, "mallory@example.com", time.Hour)
	require.NoError(t, err)

	rec := ts.do(t, http.MethodPut, "/rest/v1/users", sess.ID, model.User{Email: "mallory@example.com", Role: model.RoleManager})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	_, err = ts.st.GetUserByEmail(ctx, "mallory@example.com")
	assert.ErrorIs(t, err, gateway.ErrNotFound)
}

// ============================================================
// Records
// ============================================================

func TestProjectValidationAndNotFound(t *testing.T) {
	ts := newTestServer(t)
	token := ts.signIn(t, "ada@example.com", model.RoleUser)

	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodPost, "/rest/v1/projects", token, model.Project{Name: "x"}).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/rest/v1/projects/missing", token, nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodDelete, "/rest/v1/projects/missing", token, nil).Code)

	rec := ts.do(t, http.MethodPost, "/rest/v1/projects", token, model.Project{Name: "Apollo", Client: "NASA"})
	require.Equal(t, http.StatusCreated, rec.Code)
	p := decodeBody[model.Project](t, rec)

	rec = ts.do(t, http.MethodPatch, "/rest/v1/projects/"+p.ID, token, model.Project{Name: "Apollo", Client: "ESA", StartDate: p.StartDate})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ESA", decodeBody[model.Project](t, rec).Client)
}

func TestEntryRoutes(t *testing.T) {
	ts := newTestServer(t)
	token := ts.signIn(t, "ada@example.com", model.RoleUser)
	ctx := context.Background()
	u, err := ts.st.UpsertUser(ctx, model.User{Email: "ada@example.com"})
	require.NoError(t, err)
	p, err := ts.st.InsertProject(ctx, model.Project{Name: "Apollo", Client: "NASA"})
	require.NoError(t, err)

	bad := model.TimeEntry{UserID: u.ID, ProjectID: p.ID, Date: "2024-06-10", StartTime: "9", EndTime: "10:00"}
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodPost, "/rest/v1/time_entries", token, bad).Code)

	orphan := model.TimeEntry{UserID: u.ID, ProjectID: "missing", Date: "2024-06-10", StartTime: "09:00", EndTime: "10:00"}
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodPost, "/rest/v1/time_entries", token, orphan).Code)

	good := model.TimeEntry{UserID: u.ID, ProjectID: p.ID, Date: "2024-06-10", StartTime: "09:00", EndTime: "10:30"}
	rec := ts.do(t, http.MethodPost, "/rest/v1/time_entries", token, good)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	e := decodeBody[model.TimeEntry](t, rec)
	assert.InDelta(t, 1.5, e.Hours, 1e-9)

	rec = ts.do(t, http.MethodGet, "/rest/v1/time_entries?user_id="+u.ID+"&from=2024-06-10&to=2024-06-16", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[[]model.TimeEntry](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, "Apollo", list[0].ProjectName())

	rec = ts.do(t, http.MethodGet, "/rest/v1/time_entries?user_id="+u.ID+"&from=2024-06-17", token, nil)
	assert.Equal(t, "[]\n", rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/rest/v1/time_entries?from=2024-06-10&to=2024-06-16", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]model.TimeEntry](t, rec), 1)

	assert.Equal(t, http.StatusNoContent, ts.do(t, http.MethodDelete, "/rest/v1/time_entries/"+e.ID, token, nil).Code)
}
