package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"rollbook/internal/ledger/models"
	"rollbook/pkg/platform/sentinel"
)

// Postgres error codes translated to sentinels.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// Schema holds the DDL for the ledger tables. ledger_meta is constrained to a
// single row so initialization can happen at most once; the attendance
// primary key enforces the one-record-per-(subject, date) invariant at the
// storage level, and the seq column preserves insertion order for daily
// listings.
const Schema = `
CREATE TABLE IF NOT EXISTS ledger_meta (
	singleton      BOOLEAN PRIMARY KEY DEFAULT TRUE CHECK (singleton),
	admin_address  TEXT NOT NULL,
	initialized_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS accounts (
	address       TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	role          TEXT NOT NULL,
	registered_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS attendance_records (
	subject        TEXT NOT NULL REFERENCES accounts (address),
	date           TEXT NOT NULL,
	check_in_time  TIMESTAMPTZ NOT NULL,
	check_out_time TIMESTAMPTZ,
	present        BOOLEAN NOT NULL,
	marked_by      TEXT NOT NULL,
	seq            BIGSERIAL,
	PRIMARY KEY (subject, date)
);

CREATE INDEX IF NOT EXISTS attendance_records_date_idx ON attendance_records (date, seq);
`

// PostgresStore persists the ledger in PostgreSQL behind the same contract as
// Memory. Uniqueness and the single-admin rule live in the schema, so
// concurrent writers race safely and the loser gets the same sentinel a
// serialized caller would.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed ledger store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the ledger tables if they do not exist yet.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("ensure ledger schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Initialize(ctx context.Context, admin models.Account) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin initialize: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO ledger_meta (admin_address, initialized_at)
		VALUES ($1, $2)
		ON CONFLICT (singleton) DO NOTHING
	`, admin.Address, admin.RegisteredAt)
	if err != nil {
		return fmt.Errorf("insert ledger meta: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("initialize rows affected: %w", err)
	} else if n == 0 {
		return sentinel.ErrAlreadyInitialized
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO accounts (address, name, role, registered_at)
		VALUES ($1, $2, $3, $4)
	`, admin.Address, admin.Name, string(admin.Role), admin.RegisteredAt); err != nil {
		return translatePgErr(err, "insert admin account")
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit initialize: %w", err)
	}
	return nil
}

func (s *PostgresStore) Admin(ctx context.Context) (string, error) {
	var admin string
	err := s.db.QueryRowContext(ctx, `SELECT admin_address FROM ledger_meta`).Scan(&admin)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query admin: %w", err)
	}
	return admin, nil
}

func (s *PostgresStore) CreateAccount(ctx context.Context, account models.Account) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (address, name, role, registered_at)
		VALUES ($1, $2, $3, $4)
	`, account.Address, account.Name, string(account.Role), account.RegisteredAt)
	if err != nil {
		return translatePgErr(err, "insert account")
	}
	return nil
}

func (s *PostgresStore) FindAccount(ctx context.Context, address string) (models.Account, error) {
	var (
		account models.Account
		role    string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT address, name, role, registered_at FROM accounts WHERE address = $1
	`, address).Scan(&account.Address, &account.Name, &role, &account.RegisteredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Account{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.Account{}, fmt.Errorf("find account: %w", err)
	}
	account.Role = models.Role(role)
	return account, nil
}

func (s *PostgresStore) CreateRecord(ctx context.Context, record models.AttendanceRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO attendance_records (subject, date, check_in_time, check_out_time, present, marked_by)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, record.Subject, record.Date, record.CheckInTime, nullTime(record.CheckOutTime), record.Present, record.MarkedBy)
	if err != nil {
		return translatePgErr(err, "insert attendance record")
	}
	return nil
}

func (s *PostgresStore) SetCheckout(ctx context.Context, address, date string, at time.Time) (models.AttendanceRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE attendance_records
		SET check_out_time = $3
		WHERE subject = $1 AND date = $2
		RETURNING subject, date, check_in_time, check_out_time, present, marked_by
	`, address, date, at)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.AttendanceRecord{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.AttendanceRecord{}, fmt.Errorf("set checkout: %w", err)
	}
	return record, nil
}

func (s *PostgresStore) FindRecord(ctx context.Context, address, date string) (models.AttendanceRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT subject, date, check_in_time, check_out_time, present, marked_by
		FROM attendance_records
		WHERE subject = $1 AND date = $2
	`, address, date)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.AttendanceRecord{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.AttendanceRecord{}, fmt.Errorf("find record: %w", err)
	}
	return record, nil
}

func (s *PostgresStore) ListByDate(ctx context.Context, date string) ([]models.AttendanceRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT subject, date, check_in_time, check_out_time, present, marked_by
		FROM attendance_records
		WHERE date = $1
		ORDER BY seq
	`, date)
	if err != nil {
		return nil, fmt.Errorf("list records by date: %w", err)
	}
	defer rows.Close()

	records := make([]models.AttendanceRecord, 0)
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (models.AttendanceRecord, error) {
	var (
		record   models.AttendanceRecord
		checkout sql.NullTime
	)
	if err := row.Scan(&record.Subject, &record.Date, &record.CheckInTime, &checkout, &record.Present, &record.MarkedBy); err != nil {
		return models.AttendanceRecord{}, err
	}
	if checkout.Valid {
		record.CheckOutTime = checkout.Time
	}
	return record, nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func translatePgErr(err error, op string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return sentinel.ErrAlreadyExists
		case pgForeignKeyViolation:
			return sentinel.ErrNotFound
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
