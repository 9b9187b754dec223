package pg

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/craftfolio/backend/api/store"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColumnsSorted(t *testing.T) {
	cols, args := columns(store.Row{
		"owner_id": 7,
		"name":     "X",
		"expenses": float64(100),
	})
	assert.Equal(t, []string{"expenses", "name", "owner_id"}, cols)
	assert.Equal(t, []interface{}{float64(100), "X", 7}, args)
}

func TestWhereClause(t *testing.T) {
	where, args := whereClause(store.Filter{"owner_id": 7, "id": 3}, 1)
	assert.Equal(t, " WHERE id = $1 AND owner_id = $2", where)
	assert.Equal(t, []interface{}{3, 7}, args)

	where, args = whereClause(store.Filter{}, 1)
	assert.Equal(t, "", where)
	assert.Nil(t, args)

	// argStart offsets placeholders for queries with a SET list ahead.
	where, _ = whereClause(store.Filter{"id": 3}, 4)
	assert.Equal(t, " WHERE id = $4", where)
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "$1", placeholders(1, 1))
	assert.Equal(t, "$1, $2, $3", placeholders(1, 3))
	assert.Equal(t, "$3, $4", placeholders(3, 2))
}

func TestOrderColumnCoversAllTables(t *testing.T) {
	for _, table := range []store.Table{
		store.TABLE_PROJECTS,
		store.TABLE_CONTACTS,
		store.TABLE_FINANCIALS,
		store.TABLE_STATUS_HISTORY,
		store.TABLE_REPORTS,
	} {
		_, ok := orderColumn[table]
		assert.True(t, ok, string(table))
	}
}

func TestClassify(t *testing.T) {
	table := store.TABLE_PROJECTS

	err := classify(table, &pgconn.PgError{Code: "23505"})
	assert.Equal(t, store.KindConflict, store.KindOf(err))

	err = classify(table, &pgconn.PgError{Code: "23514"})
	assert.Equal(t, store.KindConflict, store.KindOf(err))

	err = classify(table, &pgconn.PgError{Code: "28P01"})
	assert.Equal(t, store.KindNotAuthenticated, store.KindOf(err))

	err = classify(table, pgx.ErrNoRows)
	assert.Equal(t, store.KindNotFound, store.KindOf(err))
	assert.True(t, store.IsNotFound(err))

	err = classify(table, context.DeadlineExceeded)
	assert.Equal(t, store.KindNetwork, store.KindOf(err))

	err = classify(table, &net.OpError{Op: "dial", Err: errors.New("refused")})
	assert.Equal(t, store.KindNetwork, store.KindOf(err))

	err = classify(table, errors.New("mystery"))
	assert.Equal(t, store.KindUnknown, store.KindOf(err))
}

func TestClassifyKeepsCause(t *testing.T) {
	cause := &pgconn.PgError{Code: "23505"}
	err := classify(store.TABLE_REPORTS, cause)

	var stErr *store.Error
	require.True(t, errors.As(err, &stErr))
	assert.Equal(t, store.TABLE_REPORTS, stErr.Table)
	assert.True(t, errors.Is(err, cause))
}
