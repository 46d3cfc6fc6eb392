package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"voxdesk.io/internal/authz"
	"voxdesk.io/internal/security"
	"voxdesk.io/internal/session"
)

type fakeAccess struct {
	assignments []authz.RoleAssignment
	ownerID     string
	hasGrant    bool
}

func (f *fakeAccess) ActiveAssignments(ctx context.Context, userID, tenantID, businessID string) ([]authz.RoleAssignment, error) {
	return f.assignments, nil
}

func (f *fakeAccess) BusinessOwnerID(ctx context.Context, tenantID, businessID string) (string, error) {
	if f.ownerID == "" {
		return "", authz.ErrNoAccess
	}
	return f.ownerID, nil
}

func (f *fakeAccess) HasAccessGrant(ctx context.Context, userID, tenantID, businessID string) (bool, error) {
	return f.hasGrant, nil
}

type fakeUsers struct {
	account authz.UserAccount
	found   bool
}

func (f *fakeUsers) FindUserByEmail(ctx context.Context, email string) (authz.UserAccount, error) {
	if !f.found {
		return authz.UserAccount{}, authz.ErrNoAccess
	}
	return f.account, nil
}

type fakeSessionStore struct {
	sessions map[string]*session.Session
}

func (f *fakeSessionStore) Insert(ctx context.Context, s *session.Session) error {
	cp := *s
	f.sessions[s.ID] = &cp
	return nil
}

func (f *fakeSessionStore) Get(ctx context.Context, sessionID, userID string) (*session.Session, error) {
	s, ok := f.sessions[sessionID]
	if !ok || s.UserID != userID {
		return nil, session.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSessionStore) Touch(ctx context.Context, sessionID, userID string, lastActivity, expiresAt time.Time) error {
	s, ok := f.sessions[sessionID]
	if !ok || s.UserID != userID || !s.Active {
		return session.ErrNotFound
	}
	s.LastActivity = lastActivity
	s.ExpiresAt = expiresAt
	return nil
}

func (f *fakeSessionStore) Invalidate(ctx context.Context, sessionID, userID, reason string) error {
	s, ok := f.sessions[sessionID]
	if !ok || s.UserID != userID || !s.Active {
		return session.ErrNotFound
	}
	s.Active = false
	s.EndReason = reason
	return nil
}

func (f *fakeSessionStore) InvalidateAll(ctx context.Context, userID, reason string) (int, error) {
	n := 0
	for _, s := range f.sessions {
		if s.UserID == userID && s.Active {
			s.Active = false
			s.EndReason = reason
			n++
		}
	}
	return n, nil
}

func (f *fakeSessionStore) ListActive(ctx context.Context, userID string) ([]*session.Session, error) {
	var out []*session.Session
	for _, s := range f.sessions {
		if s.UserID == userID && s.Active {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeSessionStore) InvalidateExpired(ctx context.Context, now time.Time, reason string) (int, error) {
	return 0, nil
}

// fakeEvents is both the event store and the history store, with no history.
type fakeEvents struct {
	events []*security.SecurityEvent
}

func (f *fakeEvents) AppendEvent(ctx context.Context, event *security.SecurityEvent) error {
	f.events = append(f.events, event)
	return nil
}

func (f *fakeEvents) OpenIncident(ctx context.Context, incident *security.Incident) error { return nil }

func (f *fakeEvents) RaiseAlert(ctx context.Context, alert *security.ThresholdAlert) error {
	return nil
}

func (f *fakeEvents) CountRecentByType(ctx context.Context, tenantID string, t security.EventType, since time.Time) (int, error) {
	return 0, nil
}

func (f *fakeEvents) CountByIPAndType(ctx context.Context, ip string, t security.EventType, since time.Time) (int, error) {
	return 0, nil
}

func (f *fakeEvents) CountDistinctTypesByIP(ctx context.Context, ip string, since time.Time) (int, error) {
	return 0, nil
}

func (f *fakeEvents) CountByIP(ctx context.Context, ip string, since time.Time) (int, error) {
	return 0, nil
}

func (f *fakeEvents) CountDistinctIPsByUser(ctx context.Context, userID string, since time.Time) (int, error) {
	return 0, nil
}

func (f *fakeEvents) CountByUserAndTypes(ctx context.Context, userID string, types []security.EventType, since time.Time) (int, error) {
	return 0, nil
}

func (f *fakeEvents) ListEventTimesByUser(ctx context.Context, userID string, since time.Time) ([]time.Time, error) {
	return nil, nil
}

func (f *fakeEvents) byType(t security.EventType) []*security.SecurityEvent {
	var out []*security.SecurityEvent
	for _, e := range f.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type testEnv struct {
	handler  http.Handler
	access   *fakeAccess
	users    *fakeUsers
	sessions *fakeSessionStore
	events   *fakeEvents
	manager  *session.Manager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	t.Setenv("VOXDESK_AUTH_SECRET", "test-secret-test-secret-test-1234")
	authz.ResetSecretForTests()
	t.Cleanup(authz.ResetSecretForTests)

	access := &fakeAccess{hasGrant: true}
	users := &fakeUsers{}
	events := &fakeEvents{}
	sessStore := &fakeSessionStore{sessions: make(map[string]*session.Session)}

	monitor := security.NewMonitor(events, security.NewAnalyzer(events))
	sink := security.NewSink(monitor)
	manager := session.NewManager(sessStore, monitor)

	api := New(ReadyProbe{}, "test", Deps{
		Gate:     authz.NewGate(access, sink),
		Resolver: authz.NewResolver(access, sink),
		Sessions: manager,
		Monitor:  monitor,
		Users:    users,
	})
	return &testEnv{
		handler:  api.Handler(),
		access:   access,
		users:    users,
		sessions: sessStore,
		events:   events,
		manager:  manager,
	}
}

func (e *testEnv) token(t *testing.T, tenantID, businessID, sessionID string) string {
	t.Helper()
	token, _, err := authz.IssueToken("user-1", "ana@example.com", tenantID, businessID, sessionID, time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	return token
}

func (e *testEnv) do(method, path, token string, headers map[string]string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(method, path, nil)
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		r.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, r)
	return w
}

func TestPublicEndpointsNeedNoToken(t *testing.T) {
	env := newTestEnv(t)
	for _, path := range []string{"/healthz", "/readyz", "/v1/info"} {
		if w := env.do("GET", path, "", nil); w.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, w.Code)
		}
	}
}

func TestProtectedEndpointWithoutToken(t *testing.T) {
	env := newTestEnv(t)
	w := env.do("GET", "/v1/me/permissions", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	// Rejecting a missing token leaves no trace in the event log.
	if len(env.events.events) != 0 {
		t.Errorf("events = %d, want none for anonymous traffic", len(env.events.events))
	}
}

func TestMyPermissionsWithValidToken(t *testing.T) {
	env := newTestEnv(t)
	env.access.assignments = []authz.RoleAssignment{{Role: authz.RoleEmployee}}

	w := env.do("GET", "/v1/me/permissions", env.token(t, "tenant-1", "biz-1", ""), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var body struct {
		UserID      string   `json:"user_id"`
		Roles       []string `json:"roles"`
		Permissions []string `json:"permissions"`
		IsOwner     bool     `json:"is_owner"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.UserID != "user-1" || len(body.Roles) != 1 || body.Roles[0] != "employee" {
		t.Errorf("body = %+v", body)
	}
	found := false
	for _, p := range body.Permissions {
		if p == "customers:create" {
			found = true
		}
	}
	if !found {
		t.Errorf("permissions = %v, want employee set", body.Permissions)
	}
}

func TestTokenWithoutBusinessContext(t *testing.T) {
	env := newTestEnv(t)
	w := env.do("GET", "/v1/me/permissions", env.token(t, "", "", ""), nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403 for missing business context", w.Code)
	}
}

func TestNoAccessGrantDenied(t *testing.T) {
	env := newTestEnv(t)
	env.access.hasGrant = false

	w := env.do("GET", "/v1/me/permissions", env.token(t, "tenant-1", "biz-1", ""), nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
	if got := env.events.byType(security.EventCrossTenantAccess); len(got) != 1 {
		t.Errorf("cross-tenant events = %d, want 1", len(got))
	}
}

func TestPermissionDenialNamesMissing(t *testing.T) {
	env := newTestEnv(t)
	env.access.assignments = []authz.RoleAssignment{{Role: authz.RoleEmployee}}

	w := env.do("DELETE", "/v1/customers/123", env.token(t, "tenant-1", "biz-1", ""), nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
	if !strings.Contains(w.Body.String(), "customers:delete") {
		t.Errorf("body = %s, want the missing permission named", w.Body.String())
	}
	if got := env.events.byType(security.EventPermissionViolation); len(got) != 1 {
		t.Fatalf("violation events = %d, want 1", len(got))
	}
	detail := env.events.byType(security.EventPermissionViolation)[0].Detail
	if detail["path"] != "/v1/customers/123" {
		t.Errorf("violation detail = %v, want request path recorded", detail)
	}
}

func TestHeaderTenantMismatchLoggedNotDecisive(t *testing.T) {
	env := newTestEnv(t)
	w := env.do("GET", "/v1/me/permissions", env.token(t, "tenant-1", "biz-1", ""),
		map[string]string{"X-Tenant-ID": "tenant-other"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, header must not override the claim", w.Code)
	}
	got := env.events.byType(security.EventCrossTenantAccess)
	if len(got) != 1 {
		t.Fatalf("cross-tenant events = %d, want 1", len(got))
	}
	if got[0].Detail["claimed_tenant_id"] != "tenant-other" {
		t.Errorf("detail = %v", got[0].Detail)
	}
}

func TestLoginIssuesTokenAndSession(t *testing.T) {
	env := newTestEnv(t)
	hash, err := HashPassword("hunter2hunter2")
	if err != nil {
		t.Fatal(err)
	}
	env.users.found = true
	env.users.account = authz.UserAccount{
		ID: "user-1", Email: "ana@example.com", PasswordHash: hash,
		TenantID: "tenant-1", BusinessID: "biz-1", Status: "active",
	}

	r := httptest.NewRequest("POST", "/v1/auth/login",
		strings.NewReader(`{"email":"Ana@Example.com","password":"hunter2hunter2"}`))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var body loginResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Token == "" || body.SessionID == "" {
		t.Fatalf("body = %+v", body)
	}
	if s := env.sessions.sessions[body.SessionID]; s == nil || !s.Active {
		t.Error("login must open an active session")
	}
	if got := env.events.byType(security.EventAuthSuccess); len(got) != 1 {
		t.Errorf("auth_success events = %d, want 1", len(got))
	}

	// The issued token must authenticate a follow-up request.
	w2 := env.do("GET", "/v1/sessions", body.Token, nil)
	if w2.Code != http.StatusOK {
		t.Fatalf("follow-up status = %d, body %s", w2.Code, w2.Body.String())
	}
}

func TestLoginWrongPasswordIsGenericAndLogged(t *testing.T) {
	env := newTestEnv(t)
	hash, err := HashPassword("hunter2hunter2")
	if err != nil {
		t.Fatal(err)
	}
	env.users.found = true
	env.users.account = authz.UserAccount{
		ID: "user-1", Email: "ana@example.com", PasswordHash: hash, Status: "active",
	}

	r := httptest.NewRequest("POST", "/v1/auth/login",
		strings.NewReader(`{"email":"ana@example.com","password":"wrong"}`))
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if !strings.Contains(w.Body.String(), "invalid email or password") {
		t.Errorf("body = %s, want the generic message", w.Body.String())
	}
	if got := env.events.byType(security.EventAuthFailure); len(got) != 1 {
		t.Errorf("auth_failure events = %d, want 1", len(got))
	}
}

func TestLoginUnknownEmailSameMessage(t *testing.T) {
	env := newTestEnv(t)
	r := httptest.NewRequest("POST", "/v1/auth/login",
		strings.NewReader(`{"email":"ghost@example.com","password":"whatever"}`))
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if !strings.Contains(w.Body.String(), "invalid email or password") {
		t.Errorf("body = %s, unknown email must read like wrong password", w.Body.String())
	}
}

func TestExpiredSessionRejectsRequest(t *testing.T) {
	env := newTestEnv(t)
	env.sessions.sessions["sess-1"] = &session.Session{
		ID: "sess-1", UserID: "user-1", Active: true,
		ExpiresAt: time.Now().UTC().Add(-time.Minute),
	}

	w := env.do("GET", "/v1/me/permissions", env.token(t, "tenant-1", "biz-1", "sess-1"), nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 for expired session", w.Code)
	}
	if env.sessions.sessions["sess-1"].Active {
		t.Error("expired session must be invalidated on use")
	}
}

func TestIPChangeSetsStepUpHeader(t *testing.T) {
	env := newTestEnv(t)
	env.sessions.sessions["sess-1"] = &session.Session{
		ID: "sess-1", UserID: "user-1", Active: true,
		IP:        "203.0.113.9",
		ExpiresAt: time.Now().UTC().Add(time.Hour),
	}

	w := env.do("GET", "/v1/me/permissions", env.token(t, "tenant-1", "biz-1", "sess-1"),
		map[string]string{"X-Forwarded-For": "198.51.100.7"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, IP change alone must not reject", w.Code)
	}
	if w.Header().Get("X-Step-Up-Required") != "true" {
		t.Error("step-up header missing after IP change")
	}
	if got := env.events.byType(security.EventSessionHijackAttempt); len(got) != 1 {
		t.Errorf("hijack events = %d, want 1", len(got))
	}
}

func TestSessionListAndLogout(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now().UTC()
	env.sessions.sessions["sess-1"] = &session.Session{
		ID: "sess-1", UserID: "user-1", Active: true,
		CreatedAt: now, LastActivity: now, ExpiresAt: now.Add(time.Hour),
	}
	env.sessions.sessions["sess-2"] = &session.Session{
		ID: "sess-2", UserID: "user-1", Active: true,
		CreatedAt: now, LastActivity: now, ExpiresAt: now.Add(time.Hour),
	}
	token := env.token(t, "tenant-1", "biz-1", "sess-1")

	w := env.do("GET", "/v1/sessions", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var listBody struct {
		Sessions []sessionView `json:"sessions"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &listBody); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(listBody.Sessions) != 2 {
		t.Fatalf("sessions = %d, want 2", len(listBody.Sessions))
	}
	current := 0
	for _, s := range listBody.Sessions {
		if s.Current {
			current++
		}
	}
	if current != 1 {
		t.Errorf("current sessions flagged = %d, want exactly 1", current)
	}

	// End the other session by id.
	w = env.do("DELETE", "/v1/sessions/sess-2", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete status = %d", w.Code)
	}
	s := env.sessions.sessions["sess-2"]
	if s.Active || s.EndReason != session.EndReasonLogout {
		t.Errorf("session after logout = %+v", s)
	}
}

func TestLogoutAll(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now().UTC()
	for _, id := range []string{"sess-1", "sess-2", "sess-3"} {
		env.sessions.sessions[id] = &session.Session{
			ID: id, UserID: "user-1", Active: true,
			CreatedAt: now, LastActivity: now, ExpiresAt: now.Add(time.Hour),
		}
	}

	w := env.do("DELETE", "/v1/sessions", env.token(t, "tenant-1", "biz-1", "sess-1"), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	for id, s := range env.sessions.sessions {
		if s.Active {
			t.Errorf("session %s still active after logout-all", id)
		}
		if s.EndReason != session.EndReasonLogoutAll {
			t.Errorf("session %s end reason = %q", id, s.EndReason)
		}
	}
}

func TestSecurityHeadersPresent(t *testing.T) {
	env := newTestEnv(t)
	w := env.do("GET", "/healthz", "", nil)
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("nosniff header missing")
	}
	if w.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("frame options header missing")
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("request id header missing")
	}
}

func TestRequestIDEchoed(t *testing.T) {
	env := newTestEnv(t)
	w := env.do("GET", "/healthz", "", map[string]string{"X-Request-ID": "req-42"})
	if got := w.Header().Get("X-Request-ID"); got != "req-42" {
		t.Errorf("request id = %q, want echo of the inbound id", got)
	}
}

func TestUnknownRouteIs404(t *testing.T) {
	env := newTestEnv(t)
	w := env.do("GET", "/v1/nope", env.token(t, "tenant-1", "biz-1", ""), nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}
