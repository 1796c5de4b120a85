package postgres

import (
	"context"
	"database/sql"
	serrors "errors"
	"fmt"

	"tender_dashboard/internal/models/user"
	"tender_dashboard/internal/session"
	"tender_dashboard/internal/storage"

	_ "github.com/lib/pq"
)

type Storage struct {
	db *sql.DB
}

func New(storagePath string) (*Storage, error) {
	const op = "storage.postgres.New"

	db, err := sql.Open("postgres", storagePath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s, err := NewWithDB(db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return s, nil
}

// NewWithDB creates the tables on an open connection.
func NewWithDB(db *sql.DB) (*Storage, error) {
	const op = "storage.postgres.NewWithDB"

	stmt, err := db.Prepare(`
	CREATE TABLE IF NOT EXISTS dashboardSession (
		id VARCHAR(64) PRIMARY KEY,
		token TEXT NOT NULL,
		role VARCHAR(16) NOT NULL DEFAULT '',
		email VARCHAR(255) NOT NULL DEFAULT '',
		updatedAt TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`)

	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	_, err = stmt.Exec()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	stmt, err = db.Prepare(`
	CREATE TABLE IF NOT EXISTS comparisonRemark (
		owner VARCHAR(255) NOT NULL,
		aspect VARCHAR(255) NOT NULL,
		remark TEXT NOT NULL,
		PRIMARY KEY(owner, aspect)
	);
	`)

	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	_, err = stmt.Exec()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{db: db}, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) GetSession(ctx context.Context, id string) (session.State, error) {
	const op = "storage.postgres.GetSession"
	var (
		result session.State
		role   string
	)

	stmt, err := s.db.PrepareContext(ctx, `
	SELECT token, role, email FROM dashboardSession
	WHERE id = $1
	`)

	if err != nil {
		return session.State{}, fmt.Errorf("%s: %w", op, err)
	}

	err = stmt.QueryRowContext(ctx, id).Scan(&result.Token, &role, &result.Email)
	if serrors.Is(err, sql.ErrNoRows) {
		return session.State{}, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	if err != nil {
		return session.State{}, fmt.Errorf("%s: %w", op, err)
	}

	result.Role = user.Role(role)
	return result, nil
}

func (s *Storage) SaveSession(ctx context.Context, id string, st session.State) error {
	const op = "storage.postgres.SaveSession"

	stmt, err := s.db.PrepareContext(ctx, `
	INSERT INTO dashboardSession(id, token, role, email)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (id) DO UPDATE
	SET token = EXCLUDED.token, role = EXCLUDED.role, email = EXCLUDED.email, updatedAt = CURRENT_TIMESTAMP
	`)

	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	_, err = stmt.ExecContext(ctx, id, st.Token, string(st.Role), st.Email)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) DeleteSession(ctx context.Context, id string) error {
	const op = "storage.postgres.DeleteSession"

	stmt, err := s.db.PrepareContext(ctx, `
	DELETE FROM dashboardSession
	WHERE id = $1
	`)

	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	res, err := stmt.ExecContext(ctx, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return nil
}

func (s *Storage) GetRemarks(ctx context.Context, owner string) (map[string]string, error) {
	const op = "storage.postgres.GetRemarks"

	stmt, err := s.db.PrepareContext(ctx, `
	SELECT aspect, remark FROM comparisonRemark
	WHERE owner = $1
	`)

	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rows, err := stmt.QueryContext(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	result := make(map[string]string)
	for rows.Next() {
		var aspect, remark string
		if err := rows.Scan(&aspect, &remark); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result[aspect] = remark
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return result, nil
}

// SaveRemarks replaces every remark of owner in one transaction. Empty
// remarks are not stored.
func (s *Storage) SaveRemarks(ctx context.Context, owner string, remarks map[string]string) error {
	const op = "storage.postgres.SaveRemarks"

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `DELETE FROM comparisonRemark WHERE owner = $1`, owner)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	for aspect, remark := range remarks {
		if remark == "" {
			continue
		}
		_, err = tx.ExecContext(ctx, `
		INSERT INTO comparisonRemark(owner, aspect, remark)
		VALUES ($1, $2, $3)
		`, owner, aspect, remark)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
