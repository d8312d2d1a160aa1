package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"fleet-workflow/internal/common/database"
	apperrors "fleet-workflow/internal/common/errors"
)

// Table describes how one order family maps onto its PostgreSQL table. Columns lists the
// payload columns only; id and application_id are handled by SQLStore.
type Table[O Order] struct {
	Name    string
	Columns []string
	// Values returns the payload column values of o in Columns order.
	Values func(o O) []interface{}
	// Fields returns pointers to the payload fields of o in Columns order, for scanning.
	Fields func(o O) []interface{}
}

// SQLStore is the PostgreSQL Store. Every statement runs in autocommit mode, so Commit has
// nothing left to flush.
type SQLStore[O Order] struct {
	db     *sql.DB
	family Family[O]
	table  Table[O]
	apps   ApplicationReader
}

func NewSQLStore[O Order](db *sql.DB, family Family[O], table Table[O], apps ApplicationReader) *SQLStore[O] {
	return &SQLStore[O]{db: db, family: family, table: table, apps: apps}
}

func (s *SQLStore[O]) entity() string {
	return s.family.Name + " order"
}

func (s *SQLStore[O]) op(name string) string {
	return s.table.Name + "." + name
}

// Add inserts o. A zero id is assigned by the sequence; a pre-assigned id is inserted as is,
// moves the sequence past it in the same statement, and surfaces a duplicate as a ConflictError.
func (s *SQLStore[O]) Add(ctx context.Context, o O) (int64, error) {
	if o.OrderID() < 0 {
		return 0, apperrors.NewValidationError(fmt.Sprintf("%s id must not be negative, got %d", s.entity(), o.OrderID()))
	}

	cols := append([]string{"application_id"}, s.table.Columns...)
	args := append([]interface{}{o.ApplicationID()}, s.table.Values(o)...)
	if o.OrderID() != 0 {
		cols = append([]string{"id"}, cols...)
		args = append([]interface{}{o.OrderID()}, args...)
	}

	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING id",
		s.table.Name, strings.Join(cols, ", "), strings.Join(placeholders, ", "))

	var id int64
	var err error
	if o.OrderID() == 0 {
		err = s.db.QueryRowContext(ctx, insert, args...).Scan(&id)
	} else {
		var seq int64
		err = s.db.QueryRowContext(ctx, s.preassignedInsert(insert), args...).Scan(&id, &seq)
	}
	if err != nil {
		if database.IsUniqueViolation(err) {
			return 0, apperrors.NewConflictError(s.entity(), o.OrderID())
		}
		return 0, apperrors.NewStorageError(s.op("add"), err)
	}
	return id, nil
}

// preassignedInsert wraps insert so the id sequence never hands out an id that was
// inserted explicitly.
func (s *SQLStore[O]) preassignedInsert(insert string) string {
	return fmt.Sprintf(`WITH inserted AS (%[1]s)
		SELECT inserted.id, setval(pg_get_serial_sequence('%[2]s', 'id'),
			GREATEST(inserted.id, (SELECT COALESCE(MAX(id), 0) FROM %[2]s)))
		FROM inserted`, insert, s.table.Name)
}

func (s *SQLStore[O]) GetByID(ctx context.Context, id int64, withApplication bool) (O, bool, error) {
	o, found, err := s.FindExisting(ctx, id)
	if err != nil || !found || !withApplication || o.ApplicationID() == 0 {
		return o, found, err
	}

	app, err := s.apps.GetByID(ctx, o.ApplicationID())
	if err != nil {
		var zero O
		return zero, false, err
	}
	o.SetApplication(app)
	return o, true, nil
}

func (s *SQLStore[O]) FindExisting(ctx context.Context, id int64) (O, bool, error) {
	var zero O

	query := fmt.Sprintf("SELECT id, application_id, %s FROM %s WHERE id = $1",
		strings.Join(s.table.Columns, ", "), s.table.Name)

	o := s.family.New()
	var orderID, appID int64
	dest := append([]interface{}{&orderID, &appID}, s.table.Fields(o)...)

	err := s.db.QueryRowContext(ctx, query, id).Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, apperrors.NewStorageError(s.op("get"), err)
	}

	o.SetOrderID(orderID)
	o.SetApplicationID(appID)
	return o, true, nil
}

func (s *SQLStore[O]) Remove(ctx context.Context, o O) error {
	res, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = $1", s.table.Name), o.OrderID())
	if err != nil {
		return apperrors.NewStorageError(s.op("remove"), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperrors.NewStorageError(s.op("remove"), err)
	}
	if n == 0 {
		return apperrors.NewNotFoundError(s.entity(), o.OrderID())
	}
	return nil
}

// Update writes the payload columns. application_id is never part of the statement.
func (s *SQLStore[O]) Update(ctx context.Context, o O) (bool, error) {
	sets := make([]string, len(s.table.Columns))
	for i, col := range s.table.Columns {
		sets[i] = fmt.Sprintf("%s = $%d", col, i+1)
	}
	args := append(s.table.Values(o), o.OrderID())

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d",
		s.table.Name, strings.Join(sets, ", "), len(args))

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, apperrors.NewStorageError(s.op("update"), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperrors.NewStorageError(s.op("update"), err)
	}
	return n > 0, nil
}

func (s *SQLStore[O]) Commit(context.Context) error {
	return nil
}
