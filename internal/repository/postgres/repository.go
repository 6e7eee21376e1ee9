package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"fsm-intake/internal/model"
	"fsm-intake/internal/repository"

	_ "github.com/lib/pq"
)

const emailColumns = `id, sender_name, sender_email, subject, body, received_at, status,
	classification, extracted_query, should_reply, reply_message, thread_id`

type PostgresEmailRepository struct {
	db  *sql.DB
	max int
}

func NewPostgresEmailRepository(db *sql.DB, max int) *PostgresEmailRepository {
	if max <= 0 {
		max = repository.DefaultMaxEmails
	}
	return &PostgresEmailRepository{db: db, max: max}
}

func (r *PostgresEmailRepository) List(ctx context.Context) ([]*model.Email, error) {
	query := `SELECT ` + emailColumns + ` FROM emails ORDER BY seq DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list emails: %w", err)
	}
	defer rows.Close()

	emails := []*model.Email{}
	for rows.Next() {
		email, err := scanEmail(rows)
		if err != nil {
			return nil, err
		}
		emails = append(emails, email)
	}
	return emails, rows.Err()
}

func (r *PostgresEmailRepository) FindByID(ctx context.Context, id string) (*model.Email, error) {
	query := `SELECT ` + emailColumns + ` FROM emails WHERE id = $1`
	email, err := scanEmail(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrEmailNotFound
		}
		return nil, err
	}
	return email, nil
}

// Upsert writes the record and trims the table to the newest rows in one
// transaction. An existing row keeps its seq, so its position is unchanged.
func (r *PostgresEmailRepository) Upsert(ctx context.Context, email *model.Email) (bool, error) {
	var extracted []byte
	if email.ExtractedQuery != nil {
		var err error
		extracted, err = json.Marshal(email.ExtractedQuery)
		if err != nil {
			return false, fmt.Errorf("failed to encode extracted query: %w", err)
		}
	}
	var shouldReply sql.NullBool
	if email.ShouldReply != nil {
		shouldReply = sql.NullBool{Bool: *email.ShouldReply, Valid: true}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO emails (` + emailColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			sender_name = EXCLUDED.sender_name,
			sender_email = EXCLUDED.sender_email,
			subject = EXCLUDED.subject,
			body = EXCLUDED.body,
			received_at = EXCLUDED.received_at,
			status = EXCLUDED.status,
			classification = EXCLUDED.classification,
			extracted_query = EXCLUDED.extracted_query,
			should_reply = EXCLUDED.should_reply,
			reply_message = EXCLUDED.reply_message,
			thread_id = EXCLUDED.thread_id
		RETURNING (xmax = 0) AS inserted`

	var inserted bool
	err = tx.QueryRowContext(ctx, query,
		email.ID, email.SenderName, email.SenderEmail, email.Subject, email.Body,
		email.ReceivedAt, string(email.Status), string(email.Classification),
		extracted, shouldReply, email.ReplyMessage, email.ThreadID,
	).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("failed to upsert email %s: %w", email.ID, err)
	}

	trim := `DELETE FROM emails WHERE seq NOT IN (SELECT seq FROM emails ORDER BY seq DESC LIMIT $1)`
	if _, err := tx.ExecContext(ctx, trim, r.max); err != nil {
		return false, fmt.Errorf("failed to trim emails: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit upsert: %w", err)
	}
	return inserted, nil
}

func (r *PostgresEmailRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM emails WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete email %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *PostgresEmailRepository) Clear(ctx context.Context) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM emails`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear emails: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (r *PostgresEmailRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM emails`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count emails: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEmail(row rowScanner) (*model.Email, error) {
	var (
		email          model.Email
		status         string
		classification string
		extracted      []byte
		shouldReply    sql.NullBool
	)
	err := row.Scan(
		&email.ID, &email.SenderName, &email.SenderEmail, &email.Subject, &email.Body,
		&email.ReceivedAt, &status, &classification, &extracted, &shouldReply,
		&email.ReplyMessage, &email.ThreadID)
	if err != nil {
		return nil, err
	}

	email.Status = model.Status(status)
	email.Classification = model.Classification(classification)
	email.ReceivedAt = email.ReceivedAt.UTC()
	if len(extracted) > 0 {
		var q model.ExtractedQuery
		if err := json.Unmarshal(extracted, &q); err != nil {
			return nil, fmt.Errorf("failed to decode extracted query for %s: %w", email.ID, err)
		}
		email.ExtractedQuery = &q
	}
	if shouldReply.Valid {
		v := shouldReply.Bool
		email.ShouldReply = &v
	}
	return &email, nil
}

// InitializeDatabase creates the emails table
func InitializeDatabase(db *sql.DB) error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS emails (
			seq BIGSERIAL UNIQUE,
			id VARCHAR(255) PRIMARY KEY,
			sender_name TEXT NOT NULL,
			sender_email TEXT NOT NULL,
			subject TEXT NOT NULL,
			body TEXT NOT NULL DEFAULT '',
			received_at TIMESTAMPTZ NOT NULL,
			status VARCHAR(64) NOT NULL,
			classification VARCHAR(32) NOT NULL DEFAULT '',
			extracted_query JSONB,
			should_reply BOOLEAN,
			reply_message TEXT NOT NULL DEFAULT '',
			thread_id VARCHAR(255) NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS emails_seq_desc ON emails (seq DESC)`,
	}

	for _, table := range tables {
		_, err := db.Exec(table)
		if err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}
