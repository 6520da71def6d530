package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"rollbook/internal/event"
	ledgermetrics "rollbook/internal/ledger/metrics"
	"rollbook/internal/ledger/models"
	"rollbook/pkg/attrs"
	dErrors "rollbook/pkg/domain-errors"
	"rollbook/pkg/platform/sentinel"
	"rollbook/pkg/requestcontext"
)

// adminName is the display name given to the bootstrap admin account, since
// Initialize takes no name argument.
const adminName = "Administrator"

// LedgerStore is the persistence contract for the ledger aggregate. Both the
// in-memory and the Postgres implementations guarantee that each mutating
// call is atomic: validation and mutation happen inside one critical section
// or transaction, so a rejected call leaves no trace.
type LedgerStore interface {
	Initialize(ctx context.Context, admin models.Account) error
	Admin(ctx context.Context) (string, error)
	CreateAccount(ctx context.Context, account models.Account) error
	FindAccount(ctx context.Context, address string) (models.Account, error)
	CreateRecord(ctx context.Context, record models.AttendanceRecord) error
	SetCheckout(ctx context.Context, address, date string, at time.Time) (models.AttendanceRecord, error)
	FindRecord(ctx context.Context, address, date string) (models.AttendanceRecord, error)
	ListByDate(ctx context.Context, date string) ([]models.AttendanceRecord, error)
}

// EventPublisher appends domain events to the append-only stream.
type EventPublisher interface {
	Emit(ctx context.Context, e event.Event) error
	List(ctx context.Context) ([]event.Event, error)
}

// Service orchestrates the attendance ledger: who is registered, who was
// present on which date, and who is allowed to record that fact. Every
// operation takes the authenticated caller address explicitly; the service
// never derives identity itself.
type Service struct {
	store   LedgerStore
	events  EventPublisher
	logger  *slog.Logger
	metrics *ledgermetrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithEventPublisher(publisher EventPublisher) Option {
	return func(s *Service) { s.events = publisher }
}

func WithMetrics(m *ledgermetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New constructs a Service.
func New(store LedgerStore, opts ...Option) *Service {
	s := &Service{store: store}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialize bootstraps the ledger: designates caller as the immutable admin
// and registers it as the one Admin account. Succeeds at most once per
// ledger. Registration events start with Register; the bootstrap account is
// created silently, matching the observed contract.
func (s *Service) Initialize(ctx context.Context, caller string) (models.Account, error) {
	now := requestcontext.Now(ctx)
	admin, err := models.NewAccount(caller, adminName, models.RoleAdmin, now)
	if err != nil {
		return models.Account{}, err
	}

	if err := s.store.Initialize(ctx, admin); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyInitialized) {
			return models.Account{}, s.reject(dErrors.New(dErrors.CodeAlreadyInitialized, "ledger is already initialized"))
		}
		return models.Account{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to initialize ledger")
	}

	s.logAudit(ctx, "ledger_initialized", "address", caller)
	return admin, nil
}

// Register creates an account for the caller. Only Student and Teacher roles
// may self-register; the Admin account exists solely through Initialize.
// Not idempotent: a second call for the same caller fails AlreadyRegistered.
func (s *Service) Register(ctx context.Context, caller, name string, role models.Role) (models.Account, error) {
	if !role.SelfRegisterable() {
		return models.Account{}, s.reject(dErrors.New(dErrors.CodeInvalidRole, "role must be student or teacher"))
	}

	now := requestcontext.Now(ctx)
	account, err := models.NewAccount(caller, strings.TrimSpace(name), role, now)
	if err != nil {
		return models.Account{}, err
	}

	if err := s.store.CreateAccount(ctx, account); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyExists) {
			return models.Account{}, s.reject(dErrors.New(dErrors.CodeAlreadyRegistered, "address is already registered"))
		}
		return models.Account{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to register account")
	}

	if err := s.emit(ctx, event.Event{
		Type:      event.TypeUserRegistered,
		Timestamp: now,
		Address:   account.Address,
		Name:      account.Name,
		Role:      account.Role.String(),
	}); err != nil {
		return models.Account{}, err
	}

	s.logAudit(ctx, "user_registered",
		"address", account.Address,
		"role", account.Role.String(),
	)
	if s.metrics != nil {
		s.metrics.IncrementAccountsRegistered()
	}
	return account, nil
}

// MarkAttendance records presence for subject on date. Permitted when the
// caller marks themself, or when the caller is a registered Admin or
// Teacher. At most one record may exist per (subject, date); a duplicate
// fails AlreadyMarked and leaves the original untouched.
func (s *Service) MarkAttendance(ctx context.Context, caller, subject, date string, present bool) (models.AttendanceRecord, error) {
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.ObserveMarkAttendance(start)
		}
	}()

	if !s.canMarkFor(ctx, caller, subject) {
		return models.AttendanceRecord{}, s.reject(dErrors.New(dErrors.CodeNotAuthorized, "caller may not mark attendance for this account"))
	}
	if _, err := s.store.FindAccount(ctx, subject); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.AttendanceRecord{}, s.reject(dErrors.New(dErrors.CodeUserNotFound, "subject is not registered"))
		}
		return models.AttendanceRecord{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up subject")
	}

	now := requestcontext.Now(ctx)
	record, err := models.NewAttendanceRecord(subject, date, present, caller, now)
	if err != nil {
		return models.AttendanceRecord{}, err
	}

	if err := s.store.CreateRecord(ctx, record); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrAlreadyExists):
			return models.AttendanceRecord{}, s.reject(dErrors.New(dErrors.CodeAlreadyMarked, "attendance already marked for this date"))
		case errors.Is(err, sentinel.ErrNotFound):
			return models.AttendanceRecord{}, s.reject(dErrors.New(dErrors.CodeUserNotFound, "subject is not registered"))
		default:
			return models.AttendanceRecord{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record attendance")
		}
	}

	if err := s.emit(ctx, event.Event{
		Type:        event.TypeAttendanceMarked,
		Timestamp:   now,
		Address:     record.Subject,
		Date:        record.Date,
		CheckInTime: record.CheckInTime,
		Present:     record.Present,
		MarkedBy:    record.MarkedBy,
	}); err != nil {
		return models.AttendanceRecord{}, err
	}

	s.logAudit(ctx, "attendance_marked",
		"address", record.Subject,
		"date", record.Date,
		"marked_by", record.MarkedBy,
	)
	if s.metrics != nil {
		s.metrics.IncrementAttendanceMarked()
	}
	return record, nil
}

// MarkCheckout stamps the check-out time on the caller's own record for
// date. Checkout is self-only; there is deliberately no on-behalf-of
// variant, even though MarkAttendance has one. No event is emitted.
func (s *Service) MarkCheckout(ctx context.Context, caller, date string) (models.AttendanceRecord, error) {
	if caller == "" || date == "" {
		return models.AttendanceRecord{}, s.reject(dErrors.New(dErrors.CodeBadRequest, "caller and date are required"))
	}

	now := requestcontext.Now(ctx)
	record, err := s.store.SetCheckout(ctx, caller, date, now)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.AttendanceRecord{}, s.reject(dErrors.New(dErrors.CodeRecordNotFound, "no attendance record for this date"))
		}
		return models.AttendanceRecord{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record checkout")
	}

	s.logAudit(ctx, "attendance_checkout",
		"address", caller,
		"date", date,
	)
	if s.metrics != nil {
		s.metrics.IncrementCheckouts()
	}
	return record, nil
}

// GetAccount returns the account registered at address.
func (s *Service) GetAccount(ctx context.Context, address string) (models.Account, error) {
	account, err := s.store.FindAccount(ctx, address)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.Account{}, dErrors.New(dErrors.CodeUserNotFound, "address is not registered")
		}
		return models.Account{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load account")
	}
	return account, nil
}

// GetAttendance returns the single record for (address, date). Unlike the
// daily listing, an absent record is an error rather than an empty result.
func (s *Service) GetAttendance(ctx context.Context, address, date string) (models.AttendanceRecord, error) {
	record, err := s.store.FindRecord(ctx, address, date)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.AttendanceRecord{}, dErrors.New(dErrors.CodeRecordNotFound, "no attendance record for this account and date")
		}
		return models.AttendanceRecord{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load attendance record")
	}
	return record, nil
}

// GetDailyAttendance returns all records for date in insertion order. A date
// with no records yields an empty slice, never an error.
func (s *Service) GetDailyAttendance(ctx context.Context, date string) ([]models.AttendanceRecord, error) {
	records, err := s.store.ListByDate(ctx, date)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list attendance")
	}
	return records, nil
}

// IsRegistered reports whether address has an account. Total: never errors.
func (s *Service) IsRegistered(ctx context.Context, address string) bool {
	_, err := s.store.FindAccount(ctx, address)
	return err == nil
}

// GetAdmin returns the admin address designated at initialization, or the
// empty string for an uninitialized ledger. Total: never errors.
func (s *Service) GetAdmin(ctx context.Context) string {
	admin, err := s.store.Admin(ctx)
	if err != nil {
		return ""
	}
	return admin
}

// GetAllAttendanceByDate is the admin-only variant of GetDailyAttendance.
func (s *Service) GetAllAttendanceByDate(ctx context.Context, date, caller string) ([]models.AttendanceRecord, error) {
	admin := s.GetAdmin(ctx)
	if admin == "" || caller != admin {
		return nil, s.reject(dErrors.New(dErrors.CodeNotAuthorized, "daily report is admin only"))
	}
	return s.GetDailyAttendance(ctx, date)
}

// ListEvents exposes the append-only event log to the admin for audit.
func (s *Service) ListEvents(ctx context.Context, caller string) ([]event.Event, error) {
	admin := s.GetAdmin(ctx)
	if admin == "" || caller != admin {
		return nil, s.reject(dErrors.New(dErrors.CodeNotAuthorized, "event log is admin only"))
	}
	if s.events == nil {
		return []event.Event{}, nil
	}
	events, err := s.events.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list events")
	}
	return events, nil
}

// canMarkFor applies the OR-composed authorization rule for MarkAttendance:
// self-marking, or a registered Admin or Teacher marking on behalf.
func (s *Service) canMarkFor(ctx context.Context, caller, subject string) bool {
	if caller == "" {
		return false
	}
	if caller == subject {
		return true
	}
	return s.isAdmin(ctx, caller) || s.isTeacher(ctx, caller)
}

// isAdmin is a total predicate: false for unregistered addresses and for any
// role other than Admin.
func (s *Service) isAdmin(ctx context.Context, address string) bool {
	account, err := s.store.FindAccount(ctx, address)
	return err == nil && account.Role == models.RoleAdmin
}

// isTeacher is a total predicate: false for unregistered addresses and for
// any role other than Teacher.
func (s *Service) isTeacher(ctx context.Context, address string) bool {
	account, err := s.store.FindAccount(ctx, address)
	return err == nil && account.Role == models.RoleTeacher
}

func (s *Service) emit(ctx context.Context, e event.Event) error {
	if s.events == nil {
		return nil
	}
	if err := s.events.Emit(ctx, e); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to append event")
	}
	return nil
}

func (s *Service) reject(err error) error {
	if s.metrics != nil {
		s.metrics.IncrementRejected(string(dErrors.GetCode(err)))
	}
	return err
}

func (s *Service) logAudit(ctx context.Context, eventName string, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	actor := attrs.ExtractString(attributes, "address")
	args := append(attributes, "event", eventName, "log_type", "audit", "actor", actor)
	if s.logger != nil {
		s.logger.InfoContext(ctx, eventName, args...)
	}
}
