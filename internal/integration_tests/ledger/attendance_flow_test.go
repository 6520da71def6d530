package ledger

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rollbook/internal/event"
	jwttoken "rollbook/internal/jwt_token"
	"rollbook/internal/ledger/handler"
	ledgerModel "rollbook/internal/ledger/models"
	"rollbook/internal/ledger/service"
	"rollbook/internal/ledger/store"
	"rollbook/pkg/testutil"
)

// addresses used throughout the flow
const (
	adminAddr   = "0xADMIN"
	aliceAddr   = "0xAL1CE"
	teacherAddr = "0xTEACH"
)

type fixture struct {
	router *chi.Mux
	jwt    *jwttoken.JWTService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	publisher := event.NewPublisher(event.NewMemoryStore(), event.WithLogger(logger))
	svc := service.New(store.NewMemory(),
		service.WithLogger(logger),
		service.WithEventPublisher(publisher),
	)

	jwtService := jwttoken.NewJWTService("integration-signing-key", "rollbook", "rollbook")
	h := handler.New(svc, logger, nil, jwttoken.NewJWTServiceAdapter(jwtService))

	r := chi.NewRouter()
	h.Register(r)
	return &fixture{router: r, jwt: jwtService}
}

func (f *fixture) do(t *testing.T, method, path string, body any, caller string) *httptest.ResponseRecorder {
	t.Helper()

	req := testutil.NewJSONRequest(t, method, path, body)
	token, err := f.jwt.GenerateAccessToken(caller, time.Hour)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)

	return testutil.DoRequest(f.router, req)
}

func TestAttendanceFlow(t *testing.T) {
	f := newFixture(t)

	// Bootstrap the ledger with its admin.
	resp := f.do(t, http.MethodPost, "/ledger/initialize", nil, adminAddr)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	resp = f.do(t, http.MethodPost, "/ledger/initialize", nil, adminAddr)
	testutil.AssertStatusAndError(t, resp, http.StatusConflict, "already_initialized")

	// Self-registration.
	resp = f.do(t, http.MethodPost, "/accounts",
		ledgerModel.RegisterAccountRequest{Name: "Alice", Role: "student"}, aliceAddr)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	resp = f.do(t, http.MethodPost, "/accounts",
		ledgerModel.RegisterAccountRequest{Name: "Mr. Chalk", Role: "teacher"}, teacherAddr)
	require.Equal(t, http.StatusCreated, resp.Code)

	resp = f.do(t, http.MethodPost, "/accounts",
		ledgerModel.RegisterAccountRequest{Name: "Alice Again", Role: "student"}, aliceAddr)
	testutil.AssertStatusAndError(t, resp, http.StatusConflict, "already_registered")

	// A teacher marks Alice present.
	resp = f.do(t, http.MethodPost, "/attendance",
		ledgerModel.MarkAttendanceRequest{Subject: aliceAddr, Date: "2024-01-10", Present: true}, teacherAddr)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	record := testutil.DecodeResponse[ledgerModel.AttendanceRecord](t, resp)
	assert.Equal(t, aliceAddr, record.Subject)
	assert.Equal(t, teacherAddr, record.MarkedBy)
	assert.True(t, record.Present)

	// Marking twice for the same day is rejected.
	resp = f.do(t, http.MethodPost, "/attendance",
		ledgerModel.MarkAttendanceRequest{Subject: aliceAddr, Date: "2024-01-10", Present: false}, teacherAddr)
	testutil.AssertStatusAndError(t, resp, http.StatusConflict, "already_marked")

	// A student cannot mark another account.
	resp = f.do(t, http.MethodPost, "/attendance",
		ledgerModel.MarkAttendanceRequest{Subject: teacherAddr, Date: "2024-01-10", Present: true}, aliceAddr)
	testutil.AssertStatusAndError(t, resp, http.StatusForbidden, "not_authorized")

	// Alice checks out.
	resp = f.do(t, http.MethodPost, "/attendance/2024-01-10/checkout", nil, aliceAddr)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	record = testutil.DecodeResponse[ledgerModel.AttendanceRecord](t, resp)
	assert.False(t, record.CheckOutTime.IsZero())

	// Views.
	resp = f.do(t, http.MethodGet, "/attendance/2024-01-10/"+aliceAddr, nil, aliceAddr)
	require.Equal(t, http.StatusOK, resp.Code)

	resp = f.do(t, http.MethodGet, "/attendance/2024-01-11/"+aliceAddr, nil, aliceAddr)
	testutil.AssertStatusAndError(t, resp, http.StatusNotFound, "record_not_found")

	resp = f.do(t, http.MethodGet, "/ledger/admin", nil, aliceAddr)
	require.Equal(t, http.StatusOK, resp.Code)
	adminResp := testutil.DecodeResponse[map[string]string](t, resp)
	assert.Equal(t, adminAddr, adminResp["admin"])

	// The daily report is admin only.
	resp = f.do(t, http.MethodGet, "/reports/attendance/2024-01-10", nil, teacherAddr)
	testutil.AssertStatusAndError(t, resp, http.StatusForbidden, "not_authorized")

	resp = f.do(t, http.MethodGet, "/reports/attendance/2024-01-10", nil, adminAddr)
	require.Equal(t, http.StatusOK, resp.Code)
	report := testutil.DecodeResponse[map[string]any](t, resp)
	assert.Len(t, report["records"], 1)

	// So is the event log: one registration event per account plus one
	// attendance event, checkout emits nothing.
	resp = f.do(t, http.MethodGet, "/ledger/events", nil, adminAddr)
	require.Equal(t, http.StatusOK, resp.Code)
	eventsResp := testutil.DecodeResponse[map[string][]event.Event](t, resp)
	require.Len(t, eventsResp["events"], 3)
	assert.Equal(t, event.TypeUserRegistered, eventsResp["events"][0].Type)
	assert.Equal(t, event.TypeAttendanceMarked, eventsResp["events"][2].Type)
}

func TestRejectsUnauthenticatedRequests(t *testing.T) {
	f := newFixture(t)

	req := testutil.NewJSONRequest(t, http.MethodGet, "/ledger/admin", nil)
	rr := testutil.DoRequest(f.router, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req = testutil.NewJSONRequest(t, http.MethodGet, "/ledger/admin", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rr = testutil.DoRequest(f.router, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
