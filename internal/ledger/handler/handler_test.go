package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"rollbook/internal/ledger/handler/mocks"
	ledgerModel "rollbook/internal/ledger/models"
	"rollbook/internal/platform/middleware"
	dErrors "rollbook/pkg/domain-errors"
	"rollbook/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/ledger-mocks.go -package=mocks Service
type LedgerHandlerSuite struct {
	suite.Suite
	ctx context.Context
}

func (s *LedgerHandlerSuite) SetupSuite() {
	s.ctx = context.Background()
}

func TestLedgerHandlerSuite(t *testing.T) {
	suite.Run(t, new(LedgerHandlerSuite))
}

func newTestHandler(t *testing.T) (*Handler, *mocks.MockService) {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	mockService := mocks.NewMockService(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return New(mockService, logger, nil, nil), mockService
}

func (s *LedgerHandlerSuite) TestHandleRegister() {
	handler, mockService := newTestHandler(s.T())
	registeredAt := time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC)
	mockService.EXPECT().Register(
		gomock.Any(),
		"0xAL1CE",
		"Alice",
		ledgerModel.RoleStudent,
	).Return(ledgerModel.Account{
		Address:      "0xAL1CE",
		Name:         "Alice",
		Role:         ledgerModel.RoleStudent,
		RegisteredAt: registeredAt,
	}, nil)

	body, err := json.Marshal(ledgerModel.RegisterAccountRequest{Name: "Alice", Role: "student"})
	require.NoError(s.T(), err)

	req := testutil.AsCaller(httptest.NewRequest(http.MethodPost, "/accounts", bytes.NewReader(body)), "0xAL1CE")
	w := httptest.NewRecorder()
	handler.handleRegister(w, req)

	assert.Equal(s.T(), http.StatusCreated, w.Code, w.Body.String())
	var resp map[string]any
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(s.T(), "0xAL1CE", resp["address"])
	assert.Equal(s.T(), "student", resp["role"])
}

func (s *LedgerHandlerSuite) TestHandleRegister_UnknownRole() {
	handler, _ := newTestHandler(s.T())

	body := []byte(`{"name":"Alice","role":"principal"}`)
	req := testutil.AsCaller(httptest.NewRequest(http.MethodPost, "/accounts", bytes.NewReader(body)), "0xAL1CE")
	w := httptest.NewRecorder()
	handler.handleRegister(w, req)

	assert.Equal(s.T(), http.StatusBadRequest, w.Code)
	var resp map[string]string
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(s.T(), "invalid_role", resp["error"])
}

func (s *LedgerHandlerSuite) TestHandleRegister_MalformedBody() {
	handler, _ := newTestHandler(s.T())

	req := testutil.AsCaller(httptest.NewRequest(http.MethodPost, "/accounts", bytes.NewReader([]byte("{"))), "0xAL1CE")
	w := httptest.NewRecorder()
	handler.handleRegister(w, req)

	assert.Equal(s.T(), http.StatusBadRequest, w.Code)
}

func (s *LedgerHandlerSuite) TestHandleRegister_MissingCaller() {
	handler, _ := newTestHandler(s.T())

	body := []byte(`{"name":"Alice","role":"student"}`)
	req := httptest.NewRequest(http.MethodPost, "/accounts", bytes.NewReader(body))
	w := httptest.NewRecorder()
	handler.handleRegister(w, req)

	assert.Equal(s.T(), http.StatusInternalServerError, w.Code)
}

func (s *LedgerHandlerSuite) TestHandleMarkAttendance() {
	handler, mockService := newTestHandler(s.T())
	checkIn := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	mockService.EXPECT().MarkAttendance(
		gomock.Any(),
		"0xTEACH",
		"0xAL1CE",
		"2024-01-10",
		true,
	).Return(ledgerModel.AttendanceRecord{
		Subject:     "0xAL1CE",
		Date:        "2024-01-10",
		CheckInTime: checkIn,
		Present:     true,
		MarkedBy:    "0xTEACH",
	}, nil)

	body, err := json.Marshal(ledgerModel.MarkAttendanceRequest{Subject: "0xAL1CE", Date: "2024-01-10", Present: true})
	require.NoError(s.T(), err)

	req := testutil.AsCaller(httptest.NewRequest(http.MethodPost, "/attendance", bytes.NewReader(body)), "0xTEACH")
	w := httptest.NewRecorder()
	handler.handleMarkAttendance(w, req)

	assert.Equal(s.T(), http.StatusCreated, w.Code, w.Body.String())
	var resp map[string]any
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(s.T(), "0xAL1CE", resp["subject"])
	assert.Equal(s.T(), "0xTEACH", resp["marked_by"])
	_, checkedOut := resp["check_out_time"]
	assert.False(s.T(), checkedOut)
}

func (s *LedgerHandlerSuite) TestHandleMarkAttendance_DomainRejection() {
	handler, mockService := newTestHandler(s.T())
	mockService.EXPECT().MarkAttendance(gomock.Any(), "0xAL1CE", "0xB0B", "2024-01-10", true).
		Return(ledgerModel.AttendanceRecord{}, dErrors.New(dErrors.CodeNotAuthorized, "caller may not mark for subject"))

	body, err := json.Marshal(ledgerModel.MarkAttendanceRequest{Subject: "0xB0B", Date: "2024-01-10", Present: true})
	require.NoError(s.T(), err)

	req := testutil.AsCaller(httptest.NewRequest(http.MethodPost, "/attendance", bytes.NewReader(body)), "0xAL1CE")
	w := httptest.NewRecorder()
	handler.handleMarkAttendance(w, req)

	assert.Equal(s.T(), http.StatusForbidden, w.Code)
	var resp map[string]string
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(s.T(), "not_authorized", resp["error"])
}

func (s *LedgerHandlerSuite) TestRoutedEndpoints() {
	handler, mockService := newTestHandler(s.T())
	handler.jwtValidator = validatorStub{address: "0xADMIN"}
	r := chi.NewRouter()
	handler.Register(r)

	s.Run("checkout uses the date path param", func() {
		mockService.EXPECT().MarkCheckout(gomock.Any(), "0xADMIN", "2024-01-10").
			Return(ledgerModel.AttendanceRecord{Subject: "0xADMIN", Date: "2024-01-10"}, nil)

		req := httptest.NewRequest(http.MethodPost, "/attendance/2024-01-10/checkout", nil)
		req.Header.Set("Authorization", "Bearer token")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(s.T(), http.StatusOK, w.Code, w.Body.String())
	})

	s.Run("record lookup not found maps to 404", func() {
		mockService.EXPECT().GetAttendance(gomock.Any(), "0xAL1CE", "2024-01-10").
			Return(ledgerModel.AttendanceRecord{}, dErrors.New(dErrors.CodeRecordNotFound, "no record for 0xAL1CE on 2024-01-10"))

		req := httptest.NewRequest(http.MethodGet, "/attendance/2024-01-10/0xAL1CE", nil)
		req.Header.Set("Authorization", "Bearer token")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(s.T(), http.StatusNotFound, w.Code)
	})

	s.Run("registered check returns a flag", func() {
		mockService.EXPECT().IsRegistered(gomock.Any(), "0xAL1CE").Return(true)

		req := httptest.NewRequest(http.MethodGet, "/accounts/0xAL1CE/registered", nil)
		req.Header.Set("Authorization", "Bearer token")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(s.T(), http.StatusOK, w.Code)
		var resp map[string]bool
		require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(s.T(), resp["registered"])
	})

	s.Run("missing bearer token is rejected", func() {
		req := httptest.NewRequest(http.MethodGet, "/ledger/admin", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(s.T(), http.StatusUnauthorized, w.Code)
	})
}

type validatorStub struct {
	address string
}

func (v validatorStub) ValidateToken(string) (*middleware.Claims, error) {
	return &middleware.Claims{Address: v.address}, nil
}
