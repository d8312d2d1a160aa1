package application

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	apperrors "fleet-workflow/internal/common/errors"
)

const selectColumns = `id, created_at, description, creator_id, status, type`

// PostgresStore is the Store backed by the applications table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, app *Application) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO applications (created_at, description, creator_id, status, type)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		app.CreatedAt.UTC(), app.Description, app.CreatorID, string(app.Status), string(app.Type),
	).Scan(&id)
	if err != nil {
		return 0, apperrors.NewStorageError("application.create", err)
	}
	return id, nil
}

func (s *PostgresStore) GetByID(ctx context.Context, id int64) (*Application, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM applications WHERE id = $1`, id)
	app, err := scanApplication(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewStorageError("application.get", err)
	}
	return app, nil
}

// Update writes the mutable columns only; created_at, creator_id and type are never touched.
func (s *PostgresStore) Update(ctx context.Context, app *Application) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE applications
		SET description = $1, status = $2
		WHERE id = $3`,
		app.Description, string(app.Status), app.ID,
	)
	return affected(res, err, "application.update")
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, id int64, status Status) (bool, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE applications SET status = $1 WHERE id = $2`, string(status), id)
	return affected(res, err, "application.update_status")
}

func (s *PostgresStore) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM applications WHERE id = $1`, id)
	return affected(res, err, "application.delete")
}

func (s *PostgresStore) Count(ctx context.Context, filter Filter) (int, error) {
	where, args := filterClause(filter)
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM applications`+where, args...).Scan(&n); err != nil {
		return 0, apperrors.NewStorageError("application.count", err)
	}
	return n, nil
}

func (s *PostgresStore) List(ctx context.Context, filter Filter) ([]*Application, error) {
	where, args := filterClause(filter)
	rows, err := s.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM applications`+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, apperrors.NewStorageError("application.list", err)
	}
	defer rows.Close()

	out := make([]*Application, 0)
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, apperrors.NewStorageError("application.list", err)
		}
		out = append(out, app)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("application.list", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanApplication(row scanner) (*Application, error) {
	var (
		app    Application
		status string
		typ    string
	)
	if err := row.Scan(&app.ID, &app.CreatedAt, &app.Description, &app.CreatorID, &status, &typ); err != nil {
		return nil, err
	}
	app.Status = Status(status)
	app.Type = Type(typ)
	return &app, nil
}

func filterClause(f Filter) (string, []interface{}) {
	var (
		conds []string
		args  []interface{}
	)
	if f.Status != "" {
		args = append(args, string(f.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Type != "" {
		args = append(args, string(f.Type))
		conds = append(conds, fmt.Sprintf("type = $%d", len(args)))
	}
	if f.CreatorID != 0 {
		args = append(args, f.CreatorID)
		conds = append(conds, fmt.Sprintf("creator_id = $%d", len(args)))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func affected(res sql.Result, err error, op string) (bool, error) {
	if err != nil {
		return false, apperrors.NewStorageError(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperrors.NewStorageError(op, err)
	}
	return n > 0, nil
}
