package access

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aura-webinar/workshop-access/config"
	"github.com/aura-webinar/workshop-access/internal/enrollment"
	"github.com/aura-webinar/workshop-access/internal/middleware"
	"github.com/aura-webinar/workshop-access/internal/models"
	"github.com/aura-webinar/workshop-access/internal/workshops"
)

func init() { gin.SetMode(gin.TestMode) }

var start = time.Date(2026, 3, 1, 15, 0, 0, 0, time.UTC)

type fakeWorkshops map[uuid.UUID]*models.Workshop

func (f fakeWorkshops) GetByID(_ context.Context, id uuid.UUID) (*models.Workshop, error) {
	w, ok := f[id]
	if !ok {
		return nil, workshops.ErrNotFound
	}
	return w, nil
}

type pair struct{ w, u uuid.UUID }

type fakeStore struct {
	mu        sync.Mutex
	attendees map[pair]bool
	failures  []error // returned by IsEnrolled in order before consulting attendees
	calls     int
}

func newFakeStore() *fakeStore { return &fakeStore{attendees: map[pair]bool{}} }

func (s *fakeStore) Enroll(_ context.Context, w, u uuid.UUID, _ models.EnrollmentSource) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attendees[pair{w, u}] {
		return false, nil
	}
	s.attendees[pair{w, u}] = true
	return true, nil
}

func (s *fakeStore) Unenroll(_ context.Context, w, u uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ok := s.attendees[pair{w, u}]
	delete(s.attendees, pair{w, u})
	return ok, nil
}

func (s *fakeStore) IsEnrolled(_ context.Context, w, u uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= len(s.failures) && s.failures[s.calls-1] != nil {
		return false, s.failures[s.calls-1]
	}
	return s.attendees[pair{w, u}], nil
}

func (s *fakeStore) ListAttendees(context.Context, uuid.UUID) ([]models.Attendee, error) {
	return []models.Attendee{}, nil
}

type fakeIssuer struct {
	calls int
	block bool
}

func (f *fakeIssuer) Issue(ctx context.Context, w *models.Workshop, ident models.Identity, requested models.MeetingRole) (*models.JoinCredential, *models.Denial) {
	f.calls++
	if f.block {
		<-ctx.Done()
	}
	role := models.RoleParticipant
	if ident.IsAdmin && requested != models.RoleParticipant {
		role = models.RoleHost
	}
	return &models.JoinCredential{
		Provider:   w.Provider,
		WorkshopID: w.ID,
		UserID:     ident.UserID,
		RoomID:     w.RoomID,
		Role:       role,
		IssuedAt:   start,
		ExpiresAt:  start.Add(5 * time.Minute),
	}, nil
}

type fakeAudit struct {
	mu      sync.Mutex
	entries []models.JoinAuditEntry
	err     error
}

func (a *fakeAudit) PublishJoinAudit(_ context.Context, e models.JoinAuditEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, e)
	return a.err
}

type fixture struct {
	orch   *Orchestrator
	ws     fakeWorkshops
	store  *fakeStore
	issuer *fakeIssuer
	audit  *fakeAudit
	w      *models.Workshop
}

func newFixture(now time.Time) *fixture {
	w := &models.Workshop{
		ID:              uuid.New(),
		StartsAt:        start,
		DurationMinutes: 60,
		Status:          models.WorkshopScheduled,
		Provider:        models.ProviderSDK,
		RoomID:          "84512369870",
		CreatedBy:       uuid.New(),
	}
	f := &fixture{
		ws:     fakeWorkshops{w.ID: w},
		store:  newFakeStore(),
		issuer: &fakeIssuer{},
		audit:  &fakeAudit{},
		w:      w,
	}
	f.orch = NewOrchestrator(f.ws, f.store, f.issuer, f.audit, config.SessionConfig{
		JoinLead:        10 * time.Minute,
		DefaultDuration: time.Hour,
		JoinTimeout:     time.Second,
		RetryBackoff:    time.Millisecond,
	}, nil)
	f.orch.now = func() time.Time { return now }
	return f
}

func TestEnrolledUserJoinsInsideWindow(t *testing.T) {
	// starts 15:00, lead 10m, enrolled participant asks at 14:55
	f := newFixture(time.Date(2026, 3, 1, 14, 55, 0, 0, time.UTC))
	u := models.Identity{UserID: uuid.New()}
	f.store.attendees[pair{f.w.ID, u.UserID}] = true

	cred, denial := f.orch.RequestJoin(context.Background(), f.w.ID, u, "")
	if denial != nil {
		t.Fatalf("unexpected denial: %v", denial)
	}
	if cred.Role != models.RoleParticipant || cred.RoomID != f.w.RoomID || cred.UserID != u.UserID {
		t.Fatalf("credential = %+v", cred)
	}
	if len(f.audit.entries) != 1 || f.audit.entries[0].Outcome != models.JoinGranted {
		t.Fatalf("audit = %+v", f.audit.entries)
	}
}

func TestNotYetOpenRegardlessOfEnrollment(t *testing.T) {
	f := newFixture(start.Add(-11 * time.Minute))
	enrolled := models.Identity{UserID: uuid.New()}
	f.store.attendees[pair{f.w.ID, enrolled.UserID}] = true

	for _, ident := range []models.Identity{enrolled, {UserID: uuid.New()}, {UserID: uuid.New(), IsAdmin: true}} {
		_, denial := f.orch.RequestJoin(context.Background(), f.w.ID, ident, "")
		if denial == nil || denial.Reason != models.DenyNotYetOpen {
			t.Fatalf("denial = %v, want not_yet_open", denial)
		}
		if denial.OpensAt == nil || !denial.OpensAt.Equal(start.Add(-10*time.Minute)) {
			t.Fatalf("opens_at = %v", denial.OpensAt)
		}
	}
	if f.store.calls != 0 || f.issuer.calls != 0 {
		t.Fatalf("store calls = %d, issuer calls = %d; phase must be checked first", f.store.calls, f.issuer.calls)
	}
}

func TestEndedForEnrolledUser(t *testing.T) {
	f := newFixture(start.Add(time.Hour))
	u := models.Identity{UserID: uuid.New()}
	f.store.attendees[pair{f.w.ID, u.UserID}] = true

	_, denial := f.orch.RequestJoin(context.Background(), f.w.ID, u, "")
	if denial == nil || denial.Reason != models.DenyEnded {
		t.Fatalf("denial = %v, want ended", denial)
	}
}

func TestCancelledWorkshop(t *testing.T) {
	f := newFixture(start)
	f.w.Status = models.WorkshopCancelled

	_, denial := f.orch.RequestJoin(context.Background(), f.w.ID, models.Identity{UserID: uuid.New(), IsAdmin: true}, "")
	if denial == nil || denial.Reason != models.DenyCancelled {
		t.Fatalf("denial = %v, want cancelled", denial)
	}
}

func TestUnknownWorkshop(t *testing.T) {
	f := newFixture(start)
	_, denial := f.orch.RequestJoin(context.Background(), uuid.New(), models.Identity{UserID: uuid.New()}, "")
	if denial == nil || denial.Reason != models.DenyWorkshopNotFound {
		t.Fatalf("denial = %v, want workshop_not_found", denial)
	}
}

func TestNotEnrolled(t *testing.T) {
	f := newFixture(start)
	_, denial := f.orch.RequestJoin(context.Background(), f.w.ID, models.Identity{UserID: uuid.New()}, models.RoleHost)
	if denial == nil || denial.Reason != models.DenyNotEnrolled {
		t.Fatalf("denial = %v, want not_enrolled", denial)
	}
	if f.issuer.calls != 0 {
		t.Fatal("issuer must not be called for a non-attendee")
	}
	if f.audit.entries[0].Outcome != models.JoinDenied || f.audit.entries[0].Reason != models.DenyNotEnrolled {
		t.Fatalf("audit = %+v", f.audit.entries[0])
	}
}

func TestAdminBypassesEnrollment(t *testing.T) {
	f := newFixture(start)
	cred, denial := f.orch.RequestJoin(context.Background(), f.w.ID, models.Identity{UserID: uuid.New(), IsAdmin: true}, "")
	if denial != nil {
		t.Fatalf("unexpected denial: %v", denial)
	}
	if cred.Role != models.RoleHost {
		t.Fatalf("role = %q, want host", cred.Role)
	}
	if f.store.calls != 0 {
		t.Fatalf("store calls = %d, want 0", f.store.calls)
	}
}

func TestStoreTransientErrorRetriedOnce(t *testing.T) {
	f := newFixture(start)
	u := models.Identity{UserID: uuid.New()}
	f.store.attendees[pair{f.w.ID, u.UserID}] = true
	f.store.failures = []error{fmt.Errorf("is enrolled: %w", enrollment.ErrStoreUnavailable)}

	if _, denial := f.orch.RequestJoin(context.Background(), f.w.ID, u, ""); denial != nil {
		t.Fatalf("unexpected denial: %v", denial)
	}
	if f.store.calls != 2 {
		t.Fatalf("store calls = %d, want 2", f.store.calls)
	}
}

func TestStoreUnavailableTwice(t *testing.T) {
	f := newFixture(start)
	unavailable := fmt.Errorf("is enrolled: %w", enrollment.ErrStoreUnavailable)
	f.store.failures = []error{unavailable, unavailable}

	_, denial := f.orch.RequestJoin(context.Background(), f.w.ID, models.Identity{UserID: uuid.New()}, "")
	if denial == nil || denial.Reason != models.DenyTemporarilyUnavailable {
		t.Fatalf("denial = %v, want temporarily_unavailable", denial)
	}
}

func TestStoreIntegrityErrorNotRetried(t *testing.T) {
	f := newFixture(start)
	f.store.failures = []error{fmt.Errorf("is enrolled: %w", enrollment.ErrStoreIntegrity)}

	_, denial := f.orch.RequestJoin(context.Background(), f.w.ID, models.Identity{UserID: uuid.New()}, "")
	if denial == nil || denial.Reason != models.DenyInternal {
		t.Fatalf("denial = %v, want internal_error", denial)
	}
	if f.store.calls != 1 {
		t.Fatalf("store calls = %d, want 1", f.store.calls)
	}
}

func TestCredentialAfterDeadlineDiscarded(t *testing.T) {
	f := newFixture(start)
	f.orch.timeout = 20 * time.Millisecond
	f.issuer.block = true

	cred, denial := f.orch.RequestJoin(context.Background(), f.w.ID, models.Identity{UserID: uuid.New(), IsAdmin: true}, "")
	if cred != nil {
		t.Fatal("credential produced after the deadline must be discarded")
	}
	if denial == nil || denial.Reason != models.DenyTimeout {
		t.Fatalf("denial = %v, want timeout", denial)
	}
}

func TestAuditFailureDoesNotChangeDecision(t *testing.T) {
	f := newFixture(start)
	f.audit.err = fmt.Errorf("redis down")
	if _, denial := f.orch.RequestJoin(context.Background(), f.w.ID, models.Identity{UserID: uuid.New(), IsAdmin: true}, ""); denial != nil {
		t.Fatalf("unexpected denial: %v", denial)
	}
}

func TestStatusFor(t *testing.T) {
	tests := map[models.DenialReason]int{
		models.DenyWorkshopNotFound:       http.StatusNotFound,
		models.DenyNotEnrolled:            http.StatusForbidden,
		models.DenyNotYetOpen:             http.StatusConflict,
		models.DenyEnded:                  http.StatusConflict,
		models.DenyCancelled:              http.StatusConflict,
		models.DenyProviderUnavailable:    http.StatusServiceUnavailable,
		models.DenyTemporarilyUnavailable: http.StatusServiceUnavailable,
		models.DenyTimeout:                http.StatusGatewayTimeout,
		models.DenyProviderMisconfigured:  http.StatusInternalServerError,
		models.DenyInternal:               http.StatusInternalServerError,
	}
	for reason, want := range tests {
		if got := StatusFor(reason); got != want {
			t.Errorf("StatusFor(%s) = %d, want %d", reason, got, want)
		}
	}
}

func newTestRouter(f *fixture, ident models.Identity) *gin.Engine {
	h := NewHandler(f.orch, nil)
	r := gin.New()
	setIdent := func(c *gin.Context) { c.Set(middleware.ContextIdentity, ident) }
	r.POST("/workshops/:id/join", setIdent, h.Join)
	r.GET("/workshops/:id/clock", setIdent, h.Clock)
	return r
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func TestJoinHandlerMapsDenial(t *testing.T) {
	f := newFixture(start.Add(-time.Hour))
	r := newTestRouter(f, models.Identity{UserID: uuid.New()})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/workshops/"+f.w.ID.String()+"/join", nil))
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	var body envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	var d models.Denial
	if err := json.Unmarshal(body.Data, &d); err != nil {
		t.Fatal(err)
	}
	if body.Success || d.Reason != models.DenyNotYetOpen || d.OpensAt == nil {
		t.Fatalf("body = %+v, denial = %+v", body, d)
	}
}

func TestJoinHandlerGrants(t *testing.T) {
	f := newFixture(start)
	u := models.Identity{UserID: uuid.New()}
	f.store.attendees[pair{f.w.ID, u.UserID}] = true
	r := newTestRouter(f, u)

	req := httptest.NewRequest(http.MethodPost, "/workshops/"+f.w.ID.String()+"/join", strings.NewReader(`{"role":"participant"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestJoinHandlerRejectsUnknownRole(t *testing.T) {
	f := newFixture(start)
	r := newTestRouter(f, models.Identity{UserID: uuid.New()})

	req := httptest.NewRequest(http.MethodPost, "/workshops/"+f.w.ID.String()+"/join", strings.NewReader(`{"role":"owner"}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestClockHandler(t *testing.T) {
	f := newFixture(start.Add(-5 * time.Minute))
	r := newTestRouter(f, models.Identity{UserID: uuid.New()})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/workshops/"+f.w.ID.String()+"/clock", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	var snap struct {
		Phase      string `json:"phase"`
		Sign       string `json:"sign"`
		DurationMS int64  `json:"duration_ms"`
	}
	if err := json.Unmarshal(body.Data, &snap); err != nil {
		t.Fatal(err)
	}
	if snap.Phase != "open" || snap.Sign != "remaining" || snap.DurationMS != (5*time.Minute).Milliseconds() {
		t.Fatalf("snapshot = %+v", snap)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/workshops/"+uuid.NewString()+"/clock", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
