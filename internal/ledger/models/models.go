package models

import (
	"time"

	dErrors "rollbook/pkg/domain-errors"
)

// Account is a registered identity in the ledger.
//
// Invariants:
//   - Address is non-empty and unique across the ledger
//   - Name is non-empty and at most 128 characters
//   - Role and Name are immutable after registration
//   - RegisteredAt is immutable after construction
type Account struct {
	Address      string    `json:"address"`
	Name         string    `json:"name"`
	Role         Role      `json:"role"`
	RegisteredAt time.Time `json:"registered_at"`
}

// NewAccount constructs an Account, validating its invariants.
func NewAccount(address, name string, role Role, now time.Time) (Account, error) {
	if address == "" {
		return Account{}, dErrors.New(dErrors.CodeBadRequest, "account address cannot be empty")
	}
	if name == "" {
		return Account{}, dErrors.New(dErrors.CodeBadRequest, "account name cannot be empty")
	}
	if len(name) > 128 {
		return Account{}, dErrors.New(dErrors.CodeBadRequest, "account name must be 128 characters or less")
	}
	return Account{
		Address:      address,
		Name:         name,
		Role:         role,
		RegisteredAt: now,
	}, nil
}

// AttendanceRecord is one (account, date) presence entry. At most one record
// exists per pair; checkout mutates the existing record rather than creating
// a new one.
//
// Lifecycle: {absent} -> MarkAttendance -> {checked in} -> MarkCheckout ->
// {checked out}. There is no transition back and no path that skips check-in.
type AttendanceRecord struct {
	Subject      string    `json:"subject"`
	Date         string    `json:"date"`
	CheckInTime  time.Time `json:"check_in_time"`
	CheckOutTime time.Time `json:"check_out_time,omitzero"`
	Present      bool      `json:"present"`
	MarkedBy     string    `json:"marked_by"`
}

// CheckedOut reports whether the record reached its terminal state.
func (r AttendanceRecord) CheckedOut() bool {
	return !r.CheckOutTime.IsZero()
}

// NewAttendanceRecord constructs a fresh check-in record. The check-out time
// stays unset until MarkCheckout.
func NewAttendanceRecord(subject, date string, present bool, markedBy string, now time.Time) (AttendanceRecord, error) {
	if subject == "" {
		return AttendanceRecord{}, dErrors.New(dErrors.CodeBadRequest, "subject address cannot be empty")
	}
	if date == "" {
		return AttendanceRecord{}, dErrors.New(dErrors.CodeBadRequest, "date cannot be empty")
	}
	return AttendanceRecord{
		Subject:     subject,
		Date:        date,
		CheckInTime: now,
		Present:     present,
		MarkedBy:    markedBy,
	}, nil
}
