package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"rollbook/internal/event"
	ledgerModel "rollbook/internal/ledger/models"
	"rollbook/internal/platform/metrics"
	"rollbook/internal/platform/middleware"
	"rollbook/internal/transport/http/shared"
	dErrors "rollbook/pkg/domain-errors"
	"rollbook/pkg/requestcontext"
)

// Service defines the interface for ledger operations.
type Service interface {
	Initialize(ctx context.Context, caller string) (ledgerModel.Account, error)
	Register(ctx context.Context, caller, name string, role ledgerModel.Role) (ledgerModel.Account, error)
	MarkAttendance(ctx context.Context, caller, subject, date string, present bool) (ledgerModel.AttendanceRecord, error)
	MarkCheckout(ctx context.Context, caller, date string) (ledgerModel.AttendanceRecord, error)
	GetAccount(ctx context.Context, address string) (ledgerModel.Account, error)
	GetAttendance(ctx context.Context, address, date string) (ledgerModel.AttendanceRecord, error)
	GetDailyAttendance(ctx context.Context, date string) ([]ledgerModel.AttendanceRecord, error)
	IsRegistered(ctx context.Context, address string) bool
	GetAdmin(ctx context.Context) string
	GetAllAttendanceByDate(ctx context.Context, date, caller string) ([]ledgerModel.AttendanceRecord, error)
	ListEvents(ctx context.Context, caller string) ([]event.Event, error)
}

// Handler handles ledger endpoints.
type Handler struct {
	logger       *slog.Logger
	ledger       Service
	metrics      *metrics.Metrics
	jwtValidator middleware.TokenValidator
}

// New creates a new ledger Handler.
func New(
	ledger Service,
	logger *slog.Logger,
	metrics *metrics.Metrics,
	jwtValidator middleware.TokenValidator) *Handler {
	return &Handler{
		logger:       logger,
		ledger:       ledger,
		metrics:      metrics,
		jwtValidator: jwtValidator,
	}
}

// Register registers the ledger routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	ledgerRouter := chi.NewRouter()
	ledgerRouter.Use(middleware.Recovery(h.logger))
	ledgerRouter.Use(middleware.RequestID)
	ledgerRouter.Use(middleware.RequestTime)
	ledgerRouter.Use(middleware.Tracing)
	ledgerRouter.Use(middleware.Logger(h.logger))
	ledgerRouter.Use(middleware.Timeout(30 * time.Second))
	ledgerRouter.Use(middleware.ContentTypeJSON)
	ledgerRouter.Use(middleware.Latency(h.metrics))
	ledgerRouter.Use(middleware.RequireAuth(h.jwtValidator, h.logger))

	ledgerRouter.Post("/ledger/initialize", h.handleInitialize)
	ledgerRouter.Get("/ledger/admin", h.handleGetAdmin)
	ledgerRouter.Get("/ledger/events", h.handleListEvents)

	ledgerRouter.Post("/accounts", h.handleRegister)
	ledgerRouter.Get("/accounts/{address}", h.handleGetAccount)
	ledgerRouter.Get("/accounts/{address}/registered", h.handleIsRegistered)

	ledgerRouter.Post("/attendance", h.handleMarkAttendance)
	ledgerRouter.Post("/attendance/{date}/checkout", h.handleMarkCheckout)
	ledgerRouter.Get("/attendance/{date}", h.handleDailyAttendance)
	ledgerRouter.Get("/attendance/{date}/{address}", h.handleGetAttendance)

	ledgerRouter.Get("/reports/attendance/{date}", h.handleAttendanceReport)

	r.Mount("/", ledgerRouter)
}

func (h *Handler) handleInitialize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.caller(ctx, w)
	if !ok {
		return
	}

	admin, err := h.ledger.Initialize(ctx, caller)
	if err != nil {
		h.writeServiceError(ctx, w, "initialize failed", err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, admin)
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.caller(ctx, w)
	if !ok {
		return
	}

	var req ledgerModel.RegisterAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid register request",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	role, ok := ledgerModel.ParseRole(req.Role)
	if !ok {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidRole, "unknown role: "+req.Role))
		return
	}

	account, err := h.ledger.Register(ctx, caller, req.Name, role)
	if err != nil {
		h.writeServiceError(ctx, w, "register failed", err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, account)
}

func (h *Handler) handleMarkAttendance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.caller(ctx, w)
	if !ok {
		return
	}

	var req ledgerModel.MarkAttendanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid mark attendance request",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	record, err := h.ledger.MarkAttendance(ctx, caller, req.Subject, req.Date, req.Present)
	if err != nil {
		h.writeServiceError(ctx, w, "mark attendance failed", err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, record)
}

func (h *Handler) handleMarkCheckout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.caller(ctx, w)
	if !ok {
		return
	}

	record, err := h.ledger.MarkCheckout(ctx, caller, chi.URLParam(r, "date"))
	if err != nil {
		h.writeServiceError(ctx, w, "mark checkout failed", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, record)
}

func (h *Handler) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	account, err := h.ledger.GetAccount(ctx, chi.URLParam(r, "address"))
	if err != nil {
		h.writeServiceError(ctx, w, "get account failed", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, account)
}

func (h *Handler) handleIsRegistered(w http.ResponseWriter, r *http.Request) {
	registered := h.ledger.IsRegistered(r.Context(), chi.URLParam(r, "address"))
	shared.WriteJSON(w, http.StatusOK, map[string]bool{"registered": registered})
}

func (h *Handler) handleGetAttendance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	record, err := h.ledger.GetAttendance(ctx, chi.URLParam(r, "address"), chi.URLParam(r, "date"))
	if err != nil {
		h.writeServiceError(ctx, w, "get attendance failed", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, record)
}

func (h *Handler) handleDailyAttendance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	date := chi.URLParam(r, "date")
	records, err := h.ledger.GetDailyAttendance(ctx, date)
	if err != nil {
		h.writeServiceError(ctx, w, "daily attendance failed", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"date": date, "records": records})
}

func (h *Handler) handleGetAdmin(w http.ResponseWriter, r *http.Request) {
	admin := h.ledger.GetAdmin(r.Context())
	shared.WriteJSON(w, http.StatusOK, map[string]string{"admin": admin})
}

func (h *Handler) handleAttendanceReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.caller(ctx, w)
	if !ok {
		return
	}

	date := chi.URLParam(r, "date")
	records, err := h.ledger.GetAllAttendanceByDate(ctx, date, caller)
	if err != nil {
		h.writeServiceError(ctx, w, "attendance report failed", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"date": date, "records": records})
}

func (h *Handler) handleListEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.caller(ctx, w)
	if !ok {
		return
	}

	events, err := h.ledger.ListEvents(ctx, caller)
	if err != nil {
		h.writeServiceError(ctx, w, "list events failed", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"events": events})
}

// caller pulls the authenticated address out of the context. RequireAuth puts
// it there; a miss means the route was mounted without the middleware.
func (h *Handler) caller(ctx context.Context, w http.ResponseWriter) (string, bool) {
	caller := requestcontext.CallerAddress(ctx)
	if caller == "" {
		h.logger.ErrorContext(ctx, "caller address missing from context despite auth middleware",
			"request_id", requestcontext.RequestID(ctx),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return "", false
	}
	return caller, true
}

func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	if dErrors.GetCode(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg,
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, msg))
		return
	}
	h.logger.WarnContext(ctx, msg,
		"request_id", requestcontext.RequestID(ctx),
		"error", err.Error(),
	)
	shared.WriteError(w, err)
}
