package store

import (
	"context"
	"sync"
	"time"

	"rollbook/internal/ledger/models"
	"rollbook/pkg/platform/sentinel"
)

// Memory holds the whole ledger in process memory behind a single mutex.
// Each mutating call validates and commits inside one critical section, so
// calls serialize and never expose a partially applied write.
//
// Attendance is dual-indexed: byDateThenAccount answers the O(1)
// (account, date) lookups used for duplicate prevention and checkout, and
// byDate keeps insertion-ordered per-date slices for daily reports. Both
// indices hold the same *models.AttendanceRecord, so a record is stored once
// and the indices cannot diverge.
type Memory struct {
	mu sync.RWMutex

	admin         string
	initializedAt time.Time

	accounts          map[string]models.Account
	byDateThenAccount map[string]map[string]*models.AttendanceRecord
	byDate            map[string][]*models.AttendanceRecord
}

// NewMemory constructs an empty, uninitialized ledger store.
func NewMemory() *Memory {
	return &Memory{
		accounts:          make(map[string]models.Account),
		byDateThenAccount: make(map[string]map[string]*models.AttendanceRecord),
		byDate:            make(map[string][]*models.AttendanceRecord),
	}
}

// Initialize designates the admin address and records the bootstrap account.
// Setting the admin and creating its account commit under one lock so no
// reader can observe an initialized ledger without its admin account.
func (s *Memory) Initialize(_ context.Context, admin models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.admin != "" {
		return sentinel.ErrAlreadyInitialized
	}
	s.admin = admin.Address
	s.initializedAt = admin.RegisteredAt
	s.accounts[admin.Address] = admin
	return nil
}

// Admin returns the designated admin address, or the empty string when the
// ledger has not been initialized.
func (s *Memory) Admin(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.admin, nil
}

// CreateAccount inserts a new account, rejecting duplicates by address.
func (s *Memory) CreateAccount(_ context.Context, account models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[account.Address]; ok {
		return sentinel.ErrAlreadyExists
	}
	s.accounts[account.Address] = account
	return nil
}

// FindAccount looks up an account by address.
func (s *Memory) FindAccount(_ context.Context, address string) (models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if account, ok := s.accounts[address]; ok {
		return account, nil
	}
	return models.Account{}, sentinel.ErrNotFound
}

// CreateRecord commits a new attendance record to both indices as one step.
// Fails with ErrAlreadyExists if a record for (subject, date) is present and
// with ErrNotFound if the subject has no account.
func (s *Memory) CreateRecord(_ context.Context, record models.AttendanceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[record.Subject]; !ok {
		return sentinel.ErrNotFound
	}
	perAccount, ok := s.byDateThenAccount[record.Date]
	if !ok {
		perAccount = make(map[string]*models.AttendanceRecord)
		s.byDateThenAccount[record.Date] = perAccount
	}
	if _, ok := perAccount[record.Subject]; ok {
		return sentinel.ErrAlreadyExists
	}
	// One allocation, referenced by both indices.
	stored := record
	perAccount[record.Subject] = &stored
	s.byDate[record.Date] = append(s.byDate[record.Date], &stored)
	return nil
}

// SetCheckout stamps the check-out time on the record for (address, date).
// Both indices see the update because they share the record.
func (s *Memory) SetCheckout(_ context.Context, address, date string, at time.Time) (models.AttendanceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.byDateThenAccount[date][address]
	if !ok {
		return models.AttendanceRecord{}, sentinel.ErrNotFound
	}
	record.CheckOutTime = at
	return *record, nil
}

// FindRecord returns the attendance record for (address, date).
func (s *Memory) FindRecord(_ context.Context, address, date string) (models.AttendanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if record, ok := s.byDateThenAccount[date][address]; ok {
		return *record, nil
	}
	return models.AttendanceRecord{}, sentinel.ErrNotFound
}

// ListByDate returns all records for a date in insertion order. A date with
// no records yields an empty slice, not an error.
func (s *Memory) ListByDate(_ context.Context, date string) ([]models.AttendanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored := s.byDate[date]
	records := make([]models.AttendanceRecord, 0, len(stored))
	for _, r := range stored {
		records = append(records, *r)
	}
	return records, nil
}
