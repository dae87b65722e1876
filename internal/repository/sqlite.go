// Package repository persists booking records in SQLite.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/tripmind/backend/internal/domain"
)

// SQLiteStore is the booking archive backed by SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the database and runs migrations.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS bookings (
			booking_ref TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			item_id TEXT NOT NULL,
			item TEXT,
			guest TEXT,
			total REAL NOT NULL,
			status TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_session ON bookings(session_id, created_at)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// SaveBooking archives a booking record.
func (s *SQLiteStore) SaveBooking(ctx context.Context, b *domain.Booking) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bookings (booking_ref, session_id, kind, item_id, item, guest, total, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.BookingRef, b.SessionID, string(b.Kind), b.ItemID,
		string(b.Item), string(b.Guest), b.Total, b.Status, b.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save booking: %w", err)
	}
	return nil
}

// GetBooking fetches a booking by reference.
func (s *SQLiteStore) GetBooking(ctx context.Context, bookingRef string) (*domain.Booking, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT booking_ref, session_id, kind, item_id, item, guest, total, status, created_at
		FROM bookings WHERE booking_ref = ?`, bookingRef)
	return scanBooking(row)
}

// ListBookings returns all bookings for a session, oldest first.
func (s *SQLiteStore) ListBookings(ctx context.Context, sessionID string) ([]*domain.Booking, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT booking_ref, session_id, kind, item_id, item, guest, total, status, created_at
		FROM bookings WHERE session_id = ? ORDER BY created_at`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBooking(row rowScanner) (*domain.Booking, error) {
	var b domain.Booking
	var kind, item, guest string
	var createdAt time.Time
	err := row.Scan(&b.BookingRef, &b.SessionID, &kind, &b.ItemID, &item, &guest, &b.Total, &b.Status, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan booking: %w", err)
	}
	b.Kind = domain.SelectionType(kind)
	b.Item = []byte(item)
	b.Guest = []byte(guest)
	b.CreatedAt = createdAt
	return &b, nil
}
