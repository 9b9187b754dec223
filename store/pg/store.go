package pg

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"

	"github.com/craftfolio/backend/api/store"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// Stable read order per table so that list responses and history timelines
// don't shuffle between fetches.
var orderColumn = map[store.Table]string{
	store.TABLE_PROJECTS:       "id",
	store.TABLE_CONTACTS:       "project_id",
	store.TABLE_FINANCIALS:     "project_id",
	store.TABLE_STATUS_HISTORY: "id",
	store.TABLE_REPORTS:        "project_id",
}

type PostgresRecordStore struct {
	pool *pgxpool.Pool
}

func NewPostgresRecordStore(pool *pgxpool.Pool) *PostgresRecordStore {
	return &PostgresRecordStore{
		pool: pool,
	}
}

func (s *PostgresRecordStore) Get(ctx context.Context, table store.Table, filter store.Filter) ([]store.Row, error) {
	where, args := whereClause(filter, 1)
	query := fmt.Sprintf("SELECT * FROM %s%s", table, where)
	if col, ok := orderColumn[table]; ok {
		query += fmt.Sprintf(" ORDER BY %s ASC", col)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, classify(table, err)
	}
	defer rows.Close()
	ret := make([]store.Row, 0)
	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			return nil, classify(table, err)
		}
		ret = append(ret, row)
	}
	if rows.Err() != nil {
		return nil, classify(table, rows.Err())
	}
	return ret, nil
}

func (s *PostgresRecordStore) Insert(ctx context.Context, table store.Table, row store.Row) (store.Row, error) {
	cols, args := columns(row)
	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) RETURNING *",
		table,
		strings.Join(cols, ", "),
		placeholders(1, len(cols)),
	)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, classify(table, err)
	}
	defer rows.Close()
	if !rows.Next() {
		if rows.Err() != nil {
			return nil, classify(table, rows.Err())
		}
		return nil, classify(table, pgx.ErrNoRows)
	}
	inserted, err := scanRow(rows)
	if err != nil {
		return nil, classify(table, err)
	}
	return inserted, nil
}

func (s *PostgresRecordStore) Update(ctx context.Context, table store.Table, filter store.Filter, patch store.Row) error {
	cols, args := columns(patch)
	sets := make([]string, len(cols))
	for i, col := range cols {
		sets[i] = fmt.Sprintf("%s = $%d", col, i+1)
	}
	where, whereArgs := whereClause(filter, len(cols)+1)
	query := fmt.Sprintf("UPDATE %s SET %s%s", table, strings.Join(sets, ", "), where)
	cmd, err := s.pool.Exec(ctx, query, append(args, whereArgs...)...)
	if err != nil {
		return classify(table, err)
	}
	if cmd.RowsAffected() == 0 {
		return classify(table, pgx.ErrNoRows)
	}
	return nil
}

func (s *PostgresRecordStore) Upsert(ctx context.Context, table store.Table, row store.Row, conflictKey string) error {
	cols, args := columns(row)
	sets := make([]string, 0, len(cols))
	for _, col := range cols {
		if col == conflictKey {
			continue
		}
		sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
	}
	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
		table,
		strings.Join(cols, ", "),
		placeholders(1, len(cols)),
		conflictKey,
		strings.Join(sets, ", "),
	)
	_, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return classify(table, err)
	}
	return nil
}

func (s *PostgresRecordStore) Delete(ctx context.Context, table store.Table, filter store.Filter) error {
	where, args := whereClause(filter, 1)
	query := fmt.Sprintf("DELETE FROM %s%s", table, where)
	cmd, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return classify(table, err)
	}
	if cmd.RowsAffected() == 0 {
		return classify(table, pgx.ErrNoRows)
	}
	return nil
}

// columns splits a row into a sorted column list and matching args. Sorting
// keeps generated SQL deterministic.
func columns(row store.Row) ([]string, []interface{}) {
	cols := make([]string, 0, len(row))
	for col := range row {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	args := make([]interface{}, len(cols))
	for i, col := range cols {
		args[i] = row[col]
	}
	return cols, args
}

func whereClause(filter store.Filter, argStart int) (string, []interface{}) {
	if len(filter) == 0 {
		return "", nil
	}
	cols, args := columns(store.Row(filter))
	conds := make([]string, len(cols))
	for i, col := range cols {
		conds[i] = fmt.Sprintf("%s = $%d", col, argStart+i)
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func placeholders(start, n int) string {
	parts := make([]string, n)
	for i := 0; i < n; i++ {
		parts[i] = fmt.Sprintf("$%d", start+i)
	}
	return strings.Join(parts, ", ")
}

func scanRow(rows pgx.Rows) (store.Row, error) {
	values, err := rows.Values()
	if err != nil {
		return nil, err
	}
	row := store.Row{}
	for i, fd := range rows.FieldDescriptions() {
		row[string(fd.Name)] = values[i]
	}
	return row, nil
}

func classify(table store.Table, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return store.NewError(store.KindConflict, table, err)
		case "23503", "23514": // foreign_key_violation, check_violation
			return store.NewError(store.KindConflict, table, err)
		case "28000", "28P01": // invalid_authorization, invalid_password
			return store.NewError(store.KindNotAuthenticated, table, err)
		}
	}
	if err == pgx.ErrNoRows {
		return store.NewError(store.KindNotFound, table, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) {
		return store.NewError(store.KindNetwork, table, err)
	}
	return store.NewError(store.KindUnknown, table, err)
}
