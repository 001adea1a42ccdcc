package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/harryandriyan/bilbul/internal/models"
)

// CreateSplitRecord persists a completed split to the database.
func (s *SQLiteStore) CreateSplitRecord(ctx context.Context, record *models.SplitRecord) error {
	// Generate IDs if not set
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.CreatedAt == 0 {
		record.CreatedAt = time.Now().Unix()
	}

	query := `
		INSERT INTO split_records (id, user_id, client_id, mode, summary, declared_total, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		record.ID,
		nullable(record.UserID),
		nullable(record.ClientID),
		string(record.Mode),
		record.Summary,
		record.DeclaredTotal,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert split record: %w", err)
	}

	return nil
}

// HasAnonymousSplit reports whether the client has a recorded split made
// while signed out.
func (s *SQLiteStore) HasAnonymousSplit(ctx context.Context, clientID string) (bool, error) {
	if clientID == "" {
		return false, nil
	}

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM split_records WHERE client_id = ? AND user_id IS NULL",
		clientID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check anonymous splits: %w", err)
	}

	return count > 0, nil
}

// ListSplitsByUser returns the user's split history, newest first.
func (s *SQLiteStore) ListSplitsByUser(ctx context.Context, userID string) ([]*models.SplitRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, client_id, mode, summary, declared_total, created_at
		FROM split_records
		WHERE user_id = ?
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list splits: %w", err)
	}
	defer rows.Close()

	var records []*models.SplitRecord
	for rows.Next() {
		record := &models.SplitRecord{}
		var userID, clientID *string
		var mode string
		if err := rows.Scan(&record.ID, &userID, &clientID, &mode, &record.Summary, &record.DeclaredTotal, &record.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan split record: %w", err)
		}
		if userID != nil {
			record.UserID = *userID
		}
		if clientID != nil {
			record.ClientID = *clientID
		}
		record.Mode = models.SplitMode(mode)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate split records: %w", err)
	}

	return records, nil
}

// nullable maps empty strings to SQL NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
