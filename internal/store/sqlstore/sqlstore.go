// Package sqlstore keeps intake submissions in a SQL table. It runs on
// Postgres through the pgx stdlib driver or on SQLite.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"simplepos/internal/domain"
	"simplepos/internal/store"
)

const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS form_submissions (
	id TEXT PRIMARY KEY,
	form TEXT NOT NULL,
	action TEXT NOT NULL,
	fields TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
)`

type Store struct {
	db *sqlx.DB
}

type submissionRow struct {
	ID        string    `db:"id"`
	Form      string    `db:"form"`
	Action    string    `db:"action"`
	Fields    string    `db:"fields"`
	CreatedAt time.Time `db:"created_at"`
}

func New(ctx context.Context, driver string, dsn string) (*Store, error) {
	switch driver {
	case DriverPostgres, DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported intake driver %q", driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, err
	}

	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxIdleConns(4)
		db.SetMaxOpenConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create form_submissions: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) SaveSubmission(ctx context.Context, submission domain.FormSubmission) (*domain.FormSubmission, error) {
	if err := store.Validate(submission); err != nil {
		return nil, err
	}

	fields, err := json.Marshal(submission.Fields)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO form_submissions (id, form, action, fields, created_at)
		VALUES (?, ?, ?, ?, ?)
	`), submission.ID, submission.Form, submission.Action, string(fields), submission.CreatedAt.UTC())
	if err != nil {
		return nil, err
	}

	saved := submission
	return &saved, nil
}

func (s *Store) GetSubmission(ctx context.Context, id string) (*domain.FormSubmission, error) {
	var row submissionRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`
		SELECT id, form, action, fields, created_at
		FROM form_submissions
		WHERE id = ?
	`), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	sub, err := row.toDomain()
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (s *Store) ListSubmissions(ctx context.Context, form string, limit int) ([]domain.FormSubmission, error) {
	if limit < 1 {
		limit = 100
	}

	var rows []submissionRow
	err := s.db.SelectContext(ctx, &rows, s.db.Rebind(`
		SELECT id, form, action, fields, created_at
		FROM form_submissions
		WHERE (? = '' OR form = ?)
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`), form, form, limit)
	if err != nil {
		return nil, err
	}

	out := make([]domain.FormSubmission, 0, len(rows))
	for _, row := range rows {
		sub, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, nil
}

func (r submissionRow) toDomain() (domain.FormSubmission, error) {
	fields := map[string]string{}
	if r.Fields != "" {
		if err := json.Unmarshal([]byte(r.Fields), &fields); err != nil {
			return domain.FormSubmission{}, fmt.Errorf("decode fields of %s: %w", r.ID, err)
		}
	}
	return domain.FormSubmission{
		ID:        r.ID,
		Form:      r.Form,
		Action:    r.Action,
		Fields:    fields,
		CreatedAt: r.CreatedAt.UTC(),
	}, nil
}
