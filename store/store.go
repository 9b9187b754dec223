package store

import (
	"context"
	"errors"
	"fmt"
)

// The five tables making up the project aggregate. These names are the only
// wire contract with the backing database.
const (
	TABLE_PROJECTS       Table = "projects"
	TABLE_CONTACTS       Table = "project_contacts"
	TABLE_FINANCIALS     Table = "project_financials"
	TABLE_STATUS_HISTORY Table = "project_status_history"
	TABLE_REPORTS        Table = "project_financial_reports"
)

type Table string

type Row map[string]interface{}

type Filter map[string]interface{}

// RecordStore is identity-scoped row persistence for one table at a time.
// Callers must pass owner_id in every filter and row; no operation spans
// tables and none is transactional across tables.
type RecordStore interface {
	Get(ctx context.Context, table Table, filter Filter) ([]Row, error)
	Insert(ctx context.Context, table Table, row Row) (Row, error)
	Update(ctx context.Context, table Table, filter Filter, patch Row) error
	Upsert(ctx context.Context, table Table, row Row, conflictKey string) error
	Delete(ctx context.Context, table Table, filter Filter) error
}

type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindNetwork
	KindNotAuthenticated
	KindConflict
	KindNotFound
)

func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindNotAuthenticated:
		return "not-authenticated"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not-found"
	default:
		return "unknown"
	}
}

// Error tags every store failure with the table and a coarse kind so callers
// can decide between retry, 404 and give-up without parsing driver errors.
type Error struct {
	Kind  ErrorKind
	Table Table
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("store %s on %s: %v", e.Kind, e.Table, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(kind ErrorKind, table Table, err error) *Error {
	return &Error{Kind: kind, Table: table, Err: err}
}

func KindOf(err error) ErrorKind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindUnknown
}

func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

func IsConflict(err error) bool {
	return KindOf(err) == KindConflict
}
