package repository

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/craftfolio/backend/api/bus"
	"github.com/craftfolio/backend/api/domain"
	"github.com/craftfolio/backend/api/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore is an in-memory RecordStore with per-operation error injection,
// standing in for the remote table API.
type fakeStore struct {
	mu     sync.Mutex
	tables map[store.Table][]store.Row
	nextID map[store.Table]int
	failOn map[string]error
	calls  int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tables: make(map[store.Table][]store.Row),
		nextID: make(map[store.Table]int),
		failOn: make(map[string]error),
	}
}

func opKey(op string, table store.Table) string {
	return fmt.Sprintf("%s:%s", op, table)
}

func (f *fakeStore) fail(op string, table store.Table, err error) {
	f.failOn[opKey(op, table)] = err
}

func (f *fakeStore) injected(op string, table store.Table) error {
	if err, ok := f.failOn[opKey(op, table)]; ok {
		return err
	}
	return nil
}

func matches(row store.Row, filter store.Filter) bool {
	for k, v := range filter {
		if !reflect.DeepEqual(row[k], v) {
			return false
		}
	}
	return true
}

func copyRow(row store.Row) store.Row {
	out := store.Row{}
	for k, v := range row {
		out[k] = v
	}
	return out
}

func (f *fakeStore) Get(ctx context.Context, table store.Table, filter store.Filter) ([]store.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := f.injected("get", table); err != nil {
		return nil, err
	}
	ret := make([]store.Row, 0)
	for _, row := range f.tables[table] {
		if matches(row, filter) {
			ret = append(ret, copyRow(row))
		}
	}
	return ret, nil
}

func (f *fakeStore) Insert(ctx context.Context, table store.Table, row store.Row) (store.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := f.injected("insert", table); err != nil {
		return nil, err
	}
	stored := copyRow(row)
	if table == store.TABLE_PROJECTS || table == store.TABLE_STATUS_HISTORY {
		f.nextID[table]++
		stored["id"] = f.nextID[table]
	}
	if _, ok := stored["created_at"]; !ok {
		stored["created_at"] = time.Now().UTC()
	}
	if table == store.TABLE_PROJECTS {
		stored["updated_at"] = stored["created_at"]
	}
	f.tables[table] = append(f.tables[table], stored)
	return copyRow(stored), nil
}

func (f *fakeStore) Update(ctx context.Context, table store.Table, filter store.Filter, patch store.Row) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := f.injected("update", table); err != nil {
		return err
	}
	updated := 0
	for _, row := range f.tables[table] {
		if matches(row, filter) {
			for k, v := range patch {
				row[k] = v
			}
			updated++
		}
	}
	if updated == 0 {
		return store.NewError(store.KindNotFound, table, errors.New("no rows"))
	}
	return nil
}

func (f *fakeStore) Upsert(ctx context.Context, table store.Table, row store.Row, conflictKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := f.injected("upsert", table); err != nil {
		return err
	}
	for _, existing := range f.tables[table] {
		if reflect.DeepEqual(existing[conflictKey], row[conflictKey]) {
			for k, v := range row {
				existing[k] = v
			}
			return nil
		}
	}
	stored := copyRow(row)
	if _, ok := stored["created_at"]; !ok {
		stored["created_at"] = time.Now().UTC()
	}
	f.tables[table] = append(f.tables[table], stored)
	return nil
}

func (f *fakeStore) Delete(ctx context.Context, table store.Table, filter store.Filter) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := f.injected("delete", table); err != nil {
		return err
	}
	kept := make([]store.Row, 0)
	deleted := 0
	for _, row := range f.tables[table] {
		if matches(row, filter) {
			deleted++
			continue
		}
		kept = append(kept, row)
	}
	if deleted == 0 {
		return store.NewError(store.KindNotFound, table, errors.New("no rows"))
	}
	f.tables[table] = kept
	return nil
}

func (f *fakeStore) count(table store.Table, filter store.Filter) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, row := range f.tables[table] {
		if matches(row, filter) {
			n++
		}
	}
	return n
}

func (f *fakeStore) rows(table store.Table, filter store.Filter) []store.Row {
	f.mu.Lock()
	defer f.mu.Unlock()
	ret := make([]store.Row, 0)
	for _, row := range f.tables[table] {
		if matches(row, filter) {
			ret = append(ret, copyRow(row))
		}
	}
	return ret
}

type fakeReportCache struct {
	mu           sync.Mutex
	invalidated  []int
	updateCalled int
}

func (c *fakeReportCache) GetByOwnerID(ctx context.Context, ownerID int) ([]domain.FinancialReportRow, error) {
	return nil, errors.New("empty")
}

func (c *fakeReportCache) Update(ctx context.Context, ownerID int, rows []domain.FinancialReportRow) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updateCalled++
	return nil
}

func (c *fakeReportCache) Invalidate(ctx context.Context, ownerID int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, ownerID)
	return nil
}

type harness struct {
	store *fakeStore
	cache *fakeReportCache
	bus   *bus.Bus
	coord *Coordinator
	repo  *ProjectAggregateRepository

	mu          sync.Mutex
	invalidated []bus.QueryKey
}

func newHarness() *harness {
	h := &harness{
		store: newFakeStore(),
		cache: &fakeReportCache{},
		bus:   bus.New(),
	}
	h.bus.SubscribeAll(func(key bus.QueryKey) {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.invalidated = append(h.invalidated, key)
	})
	h.coord = NewCoordinator(h.store, h.cache, h.bus)
	h.repo = NewProjectAggregateRepository(h.store, h.coord)
	return h
}

func (h *harness) invalidations() []bus.QueryKey {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]bus.QueryKey{}, h.invalidated...)
}

func draftX() *domain.ProjectDraft {
	return &domain.ProjectDraft{
		Name:   "X",
		Status: domain.STATUS_PENDING,
		Contact: domain.Contact{
			Name:  "Ada",
			Email: "a@b.com",
		},
		Financials: domain.Financials{
			Expenses: 100,
			Profits:  300,
		},
	}
}

func strPtr(s string) *string { return &s }

func statusPtr(s domain.Status) *domain.Status { return &s }

func TestCreateProject(t *testing.T) {
	h := newHarness()

	id, err := h.coord.CreateProject(context.Background(), 1, draftX())
	require.NoError(t, err)
	require.Equal(t, 1, id)

	require.Equal(t, 1, h.store.count(store.TABLE_PROJECTS, store.Filter{"id": id}))
	require.Equal(t, 1, h.store.count(store.TABLE_CONTACTS, store.Filter{"project_id": id}))
	require.Equal(t, 1, h.store.count(store.TABLE_FINANCIALS, store.Filter{"project_id": id}))

	history := h.store.rows(store.TABLE_STATUS_HISTORY, store.Filter{"project_id": id})
	require.Len(t, history, 1)
	assert.Equal(t, "pending", history[0]["status"])

	reports := h.store.rows(store.TABLE_REPORTS, store.Filter{"project_id": id})
	require.Len(t, reports, 1)
	assert.Equal(t, float64(200), reports[0]["net_profit"])
	assert.Equal(t, "X", reports[0]["name"])

	assert.ElementsMatch(t, []bus.QueryKey{bus.ProjectsKey(1), bus.ReportsKey(1)}, h.invalidations())
	assert.Equal(t, []int{1}, h.cache.invalidated)
}

func TestUpdateStatusTransition(t *testing.T) {
	h := newHarness()
	id, err := h.coord.CreateProject(context.Background(), 1, draftX())
	require.NoError(t, err)

	err = h.coord.UpdateProject(context.Background(), 1, id, &domain.ProjectPatch{
		Status: statusPtr(domain.STATUS_DONE),
	})
	require.NoError(t, err)

	history := h.store.rows(store.TABLE_STATUS_HISTORY, store.Filter{"project_id": id})
	require.Len(t, history, 2)
	assert.Equal(t, "done", history[1]["status"])

	projects := h.store.rows(store.TABLE_PROJECTS, store.Filter{"id": id})
	require.Len(t, projects, 1)
	assert.Equal(t, "done", projects[0]["status"])

	reports := h.store.rows(store.TABLE_REPORTS, store.Filter{"project_id": id})
	require.Len(t, reports, 1)
	assert.Equal(t, "done", reports[0]["status"])
	assert.Equal(t, float64(200), reports[0]["net_profit"])
}

func TestUpdateFinancialsOnly(t *testing.T) {
	h := newHarness()
	id, err := h.coord.CreateProject(context.Background(), 1, draftX())
	require.NoError(t, err)

	err = h.coord.UpdateProject(context.Background(), 1, id, &domain.ProjectPatch{
		Financials: &domain.Financials{Expenses: 150, Profits: 300},
	})
	require.NoError(t, err)

	reports := h.store.rows(store.TABLE_REPORTS, store.Filter{"project_id": id})
	require.Len(t, reports, 1)
	assert.Equal(t, float64(150), reports[0]["net_profit"])
	// Fields not part of this patch come from the last-known report values.
	assert.Equal(t, "X", reports[0]["name"])
	assert.Equal(t, "pending", reports[0]["status"])

	assert.Equal(t, 1, h.store.count(store.TABLE_STATUS_HISTORY, store.Filter{"project_id": id}))

	projects := h.store.rows(store.TABLE_PROJECTS, store.Filter{"id": id})
	assert.Equal(t, "pending", projects[0]["status"])
}

func TestUpdateSameStatusWritesNoHistory(t *testing.T) {
	h := newHarness()
	id, err := h.coord.CreateProject(context.Background(), 1, draftX())
	require.NoError(t, err)

	err = h.coord.UpdateProject(context.Background(), 1, id, &domain.ProjectPatch{
		Status: statusPtr(domain.STATUS_PENDING),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, h.store.count(store.TABLE_STATUS_HISTORY, store.Filter{"project_id": id}))
}

func TestUpdateIdempotentFinancials(t *testing.T) {
	h := newHarness()
	id, err := h.coord.CreateProject(context.Background(), 1, draftX())
	require.NoError(t, err)

	patch := &domain.ProjectPatch{Financials: &domain.Financials{Expenses: 100, Profits: 300}}
	require.NoError(t, h.coord.UpdateProject(context.Background(), 1, id, patch))
	require.NoError(t, h.coord.UpdateProject(context.Background(), 1, id, patch))

	reports := h.store.rows(store.TABLE_REPORTS, store.Filter{"project_id": id})
	require.Len(t, reports, 1)
	assert.Equal(t, float64(200), reports[0]["net_profit"])
	assert.Equal(t, 1, h.store.count(store.TABLE_STATUS_HISTORY, store.Filter{"project_id": id}))
}

func TestCreatePartialFailureAtFinancials(t *testing.T) {
	h := newHarness()
	h.store.fail("insert", store.TABLE_FINANCIALS,
		store.NewError(store.KindNetwork, store.TABLE_FINANCIALS, errors.New("connection reset")))

	id, err := h.coord.CreateProject(context.Background(), 1, draftX())
	require.Error(t, err)

	var pse *PartialSyncError
	require.True(t, errors.As(err, &pse))
	assert.Equal(t, STEP_FINANCIALS_INSERT, pse.Step)

	// Earlier steps committed, later steps never ran, nothing rolled back.
	assert.Equal(t, 1, h.store.count(store.TABLE_PROJECTS, store.Filter{"id": id}))
	assert.Equal(t, 1, h.store.count(store.TABLE_STATUS_HISTORY, store.Filter{"project_id": id}))
	assert.Equal(t, 1, h.store.count(store.TABLE_CONTACTS, store.Filter{"project_id": id}))
	assert.Equal(t, 0, h.store.count(store.TABLE_FINANCIALS, store.Filter{"project_id": id}))
	assert.Equal(t, 0, h.store.count(store.TABLE_REPORTS, store.Filter{"project_id": id}))

	assert.Empty(t, h.invalidations())
	assert.Empty(t, h.cache.invalidated)
}

func TestCreateAbortsCleanlyAtFirstStep(t *testing.T) {
	h := newHarness()
	h.store.fail("insert", store.TABLE_PROJECTS,
		store.NewError(store.KindNetwork, store.TABLE_PROJECTS, errors.New("connection reset")))

	_, err := h.coord.CreateProject(context.Background(), 1, draftX())
	require.Error(t, err)
	assert.False(t, IsPartialSync(err))
	assert.Equal(t, 0, h.store.count(store.TABLE_STATUS_HISTORY, store.Filter{}))
}

func TestUpdateHistoryCommittedBeforeFailedStatusWrite(t *testing.T) {
	h := newHarness()
	id, err := h.coord.CreateProject(context.Background(), 1, draftX())
	require.NoError(t, err)

	h.store.fail("update", store.TABLE_PROJECTS,
		store.NewError(store.KindNetwork, store.TABLE_PROJECTS, errors.New("timeout")))

	err = h.coord.UpdateProject(context.Background(), 1, id, &domain.ProjectPatch{
		Status: statusPtr(domain.STATUS_IN_WORK),
	})
	var pse *PartialSyncError
	require.True(t, errors.As(err, &pse))
	assert.Equal(t, STEP_PROJECT_PATCH, pse.Step)

	// The accepted inconsistency window: the transition is recorded but the
	// core status write never landed. A retry re-evaluates the transition
	// against the fresh status.
	history := h.store.rows(store.TABLE_STATUS_HISTORY, store.Filter{"project_id": id})
	require.Len(t, history, 2)
	assert.Equal(t, "in-work", history[1]["status"])
	projects := h.store.rows(store.TABLE_PROJECTS, store.Filter{"id": id})
	assert.Equal(t, "pending", projects[0]["status"])
	assert.Empty(t, h.invalidations())
}

func TestUpdateRepairsMissingReportRow(t *testing.T) {
	h := newHarness()
	id, err := h.coord.CreateProject(context.Background(), 1, draftX())
	require.NoError(t, err)

	// Simulate a create that never reached the report step.
	require.NoError(t, h.store.Delete(context.Background(), store.TABLE_REPORTS, store.Filter{"project_id": id}))

	err = h.coord.UpdateProject(context.Background(), 1, id, &domain.ProjectPatch{
		Name:       strPtr("X2"),
		Financials: &domain.Financials{Expenses: 50, Profits: 80},
	})
	require.NoError(t, err)

	reports := h.store.rows(store.TABLE_REPORTS, store.Filter{"project_id": id})
	require.Len(t, reports, 1)
	assert.Equal(t, "X2", reports[0]["name"])
	assert.Equal(t, "pending", reports[0]["status"])
	assert.Equal(t, float64(30), reports[0]["net_profit"])
}

func TestDeleteProject(t *testing.T) {
	h := newHarness()
	id, err := h.coord.CreateProject(context.Background(), 1, draftX())
	require.NoError(t, err)

	require.NoError(t, h.coord.DeleteProject(context.Background(), 1, id))

	assert.Equal(t, 0, h.store.count(store.TABLE_PROJECTS, store.Filter{"id": id}))
	assert.Equal(t, 0, h.store.count(store.TABLE_REPORTS, store.Filter{"project_id": id}))

	// Sub-rows are orphaned by design; they are unreachable because reads
	// key off the core table.
	assert.Equal(t, 1, h.store.count(store.TABLE_CONTACTS, store.Filter{"project_id": id}))
	assert.Equal(t, 1, h.store.count(store.TABLE_FINANCIALS, store.Filter{"project_id": id}))

	projects, err := h.repo.List(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, projects)
}

func TestDeleteToleratesMissingReportRow(t *testing.T) {
	h := newHarness()
	id, err := h.coord.CreateProject(context.Background(), 1, draftX())
	require.NoError(t, err)
	require.NoError(t, h.store.Delete(context.Background(), store.TABLE_REPORTS, store.Filter{"project_id": id}))

	require.NoError(t, h.coord.DeleteProject(context.Background(), 1, id))
	assert.Equal(t, 0, h.store.count(store.TABLE_PROJECTS, store.Filter{"id": id}))
}

func TestDeleteMissingProject(t *testing.T) {
	h := newHarness()
	err := h.coord.DeleteProject(context.Background(), 1, 42)
	require.Error(t, err)
	assert.True(t, store.IsNotFound(err))
	assert.Empty(t, h.invalidations())
}

func TestNetProfitInvariant(t *testing.T) {
	h := newHarness()
	id, err := h.coord.CreateProject(context.Background(), 7, draftX())
	require.NoError(t, err)

	patches := []*domain.ProjectPatch{
		{Financials: &domain.Financials{Expenses: 10, Profits: 25}},
		{Status: statusPtr(domain.STATUS_IN_WORK)},
		{Name: strPtr("renamed"), Financials: &domain.Financials{Expenses: 0, Profits: 9000}},
	}
	for _, patch := range patches {
		require.NoError(t, h.coord.UpdateProject(context.Background(), 7, id, patch))

		reports := h.store.rows(store.TABLE_REPORTS, store.Filter{"project_id": id})
		require.Len(t, reports, 1)
		expenses := reports[0]["expenses"].(float64)
		profits := reports[0]["profits"].(float64)
		assert.Equal(t, profits-expenses, reports[0]["net_profit"])
	}
}
