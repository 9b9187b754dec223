package repository

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/craftfolio/backend/api/bus"
	"github.com/craftfolio/backend/api/domain"
	"github.com/craftfolio/backend/api/store"
	"github.com/craftfolio/backend/api/util"
)

// Steps of the multi-table mutation sequences. Each failure is tagged with
// the step that produced it so callers can tell a clean abort from a
// partially applied aggregate.
const (
	STEP_PROJECT_INSERT    Step = "project-insert"
	STEP_STATUS_HISTORY    Step = "status-history-insert"
	STEP_CONTACT_INSERT    Step = "contact-insert"
	STEP_FINANCIALS_INSERT Step = "financials-insert"
	STEP_REPORT_UPSERT     Step = "report-upsert"
	STEP_PROJECT_PATCH     Step = "project-patch"
	STEP_CONTACT_UPSERT    Step = "contact-upsert"
	STEP_FINANCIALS_UPSERT Step = "financials-upsert"
	STEP_REPORT_DELETE     Step = "report-delete"
)

type Step string

// PartialSyncError means a step failed after at least one earlier step had
// already committed. There is no rollback; the caller decides whether the
// whole mutation is safe to re-run.
type PartialSyncError struct {
	Step Step
	Err  error
}

func (e *PartialSyncError) Error() string {
	return fmt.Sprintf("sync step %s failed: %v", e.Step, e.Err)
}

func (e *PartialSyncError) Unwrap() error {
	return e.Err
}

func IsPartialSync(err error) bool {
	var pse *PartialSyncError
	return errors.As(err, &pse)
}

// Coordinator sequences the writes of one aggregate mutation. The backing
// store has no multi-table transactions, so steps run strictly one after
// another and a failure stops the sequence where it is. The report cache is
// dropped and the bus notified only after a fully successful sequence.
type Coordinator struct {
	store   store.RecordStore
	reports domain.ReportCache
	bus     *bus.Bus
	now     func() time.Time
}

func NewCoordinator(rs store.RecordStore, reports domain.ReportCache, b *bus.Bus) *Coordinator {
	return &Coordinator{
		store:   rs,
		reports: reports,
		bus:     b,
		now:     time.Now,
	}
}

// CreateProject inserts the five rows of a new aggregate. A failure at the
// first step aborts cleanly; a failure later returns the new id together
// with a PartialSyncError, leaving the partial aggregate in place for the
// read path to tolerate and a later update to repair.
func (c *Coordinator) CreateProject(ctx context.Context, ownerID int, draft *domain.ProjectDraft) (int, error) {
	inserted, err := c.store.Insert(ctx, store.TABLE_PROJECTS, store.Row{
		"owner_id":    ownerID,
		"name":        draft.Name,
		"description": draft.Description,
		"status":      string(draft.Status),
		"images":      encodeImages(draft.Images),
	})
	if err != nil {
		return 0, err
	}
	id := asInt(inserted["id"])

	_, err = c.store.Insert(ctx, store.TABLE_STATUS_HISTORY, store.Row{
		"project_id": id,
		"owner_id":   ownerID,
		"status":     string(draft.Status),
	})
	if err != nil {
		return id, &PartialSyncError{Step: STEP_STATUS_HISTORY, Err: err}
	}

	_, err = c.store.Insert(ctx, store.TABLE_CONTACTS, store.Row{
		"project_id": id,
		"owner_id":   ownerID,
		"name":       draft.Contact.Name,
		"email":      draft.Contact.Email,
		"phone":      draft.Contact.Phone,
		"address":    draft.Contact.Address,
	})
	if err != nil {
		return id, &PartialSyncError{Step: STEP_CONTACT_INSERT, Err: err}
	}

	_, err = c.store.Insert(ctx, store.TABLE_FINANCIALS, store.Row{
		"project_id": id,
		"owner_id":   ownerID,
		"expenses":   draft.Financials.Expenses,
		"profits":    draft.Financials.Profits,
	})
	if err != nil {
		return id, &PartialSyncError{Step: STEP_FINANCIALS_INSERT, Err: err}
	}

	err = c.store.Upsert(ctx, store.TABLE_REPORTS, store.Row{
		"project_id": id,
		"owner_id":   ownerID,
		"name":       draft.Name,
		"status":     string(draft.Status),
		"expenses":   draft.Financials.Expenses,
		"profits":    draft.Financials.Profits,
		"net_profit": draft.Financials.NetProfit(),
	}, "project_id")
	if err != nil {
		return id, &PartialSyncError{Step: STEP_REPORT_UPSERT, Err: err}
	}

	c.invalidate(ctx, ownerID)
	return id, nil
}

// UpdateProject applies a partial update. The current status is read fresh
// so a transition is detected against the store, not a cached value, and the
// history row is written before the new status lands so the timeline never
// has a gap. The report row is re-derived from the merged view: new value
// where the patch has one, last-known report value where it doesn't.
func (c *Coordinator) UpdateProject(ctx context.Context, ownerID int, id int, patch *domain.ProjectPatch) error {
	rows, err := c.store.Get(ctx, store.TABLE_PROJECTS, store.Filter{
		"id":       id,
		"owner_id": ownerID,
	})
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return store.NewError(store.KindNotFound, store.TABLE_PROJECTS, errors.New("no such project"))
	}
	current := domain.Status(asString(rows[0]["status"]))

	corePatch := store.Row{}
	if patch.Name != nil {
		corePatch["name"] = *patch.Name
	}
	if patch.Description != nil {
		corePatch["description"] = *patch.Description
	}
	if patch.Images != nil {
		corePatch["images"] = encodeImages(*patch.Images)
	}

	if patch.Status != nil && *patch.Status != current {
		_, err = c.store.Insert(ctx, store.TABLE_STATUS_HISTORY, store.Row{
			"project_id": id,
			"owner_id":   ownerID,
			"status":     string(*patch.Status),
		})
		if err != nil {
			return &PartialSyncError{Step: STEP_STATUS_HISTORY, Err: err}
		}
	}
	if patch.Status != nil {
		corePatch["status"] = string(*patch.Status)
	}

	// updated_at advances on any successful mutation of any sub-record.
	corePatch["updated_at"] = c.now().UTC()
	err = c.store.Update(ctx, store.TABLE_PROJECTS, store.Filter{
		"id":       id,
		"owner_id": ownerID,
	}, corePatch)
	if err != nil {
		return &PartialSyncError{Step: STEP_PROJECT_PATCH, Err: err}
	}

	if patch.Contact != nil {
		err = c.store.Upsert(ctx, store.TABLE_CONTACTS, store.Row{
			"project_id": id,
			"owner_id":   ownerID,
			"name":       patch.Contact.Name,
			"email":      patch.Contact.Email,
			"phone":      patch.Contact.Phone,
			"address":    patch.Contact.Address,
		}, "project_id")
		if err != nil {
			return &PartialSyncError{Step: STEP_CONTACT_UPSERT, Err: err}
		}
	}

	if patch.Financials != nil {
		err = c.store.Upsert(ctx, store.TABLE_FINANCIALS, store.Row{
			"project_id": id,
			"owner_id":   ownerID,
			"expenses":   patch.Financials.Expenses,
			"profits":    patch.Financials.Profits,
		}, "project_id")
		if err != nil {
			return &PartialSyncError{Step: STEP_FINANCIALS_UPSERT, Err: err}
		}
	}

	if patch.Name != nil || patch.Status != nil || patch.Financials != nil {
		if err := c.refreshReport(ctx, ownerID, id, patch, rows[0]); err != nil {
			return err
		}
	}

	c.invalidate(ctx, ownerID)
	return nil
}

// refreshReport re-derives the projection row. A missing report row means a
// create that never finished; name and status fall back to the core row so
// the next update repairs the projection.
func (c *Coordinator) refreshReport(ctx context.Context, ownerID int, id int, patch *domain.ProjectPatch, core store.Row) error {
	report := domain.FinancialReportRow{
		ProjectID: id,
		OwnerID:   ownerID,
		Name:      asString(core["name"]),
		Status:    domain.Status(asString(core["status"])),
	}
	rows, err := c.store.Get(ctx, store.TABLE_REPORTS, store.Filter{
		"project_id": id,
		"owner_id":   ownerID,
	})
	if err != nil && !store.IsNotFound(err) {
		return &PartialSyncError{Step: STEP_REPORT_UPSERT, Err: err}
	}
	if len(rows) > 0 {
		report = rowToReport(rows[0])
	}
	if patch.Name != nil {
		report.Name = *patch.Name
	}
	if patch.Status != nil {
		report.Status = *patch.Status
	}
	if patch.Financials != nil {
		report.Expenses = patch.Financials.Expenses
		report.Profits = patch.Financials.Profits
	}
	report.NetProfit = report.Profits - report.Expenses

	err = c.store.Upsert(ctx, store.TABLE_REPORTS, store.Row{
		"project_id": id,
		"owner_id":   ownerID,
		"name":       report.Name,
		"status":     string(report.Status),
		"expenses":   report.Expenses,
		"profits":    report.Profits,
		"net_profit": report.NetProfit,
	}, "project_id")
	if err != nil {
		return &PartialSyncError{Step: STEP_REPORT_UPSERT, Err: err}
	}
	return nil
}

// DeleteProject removes the core row and the report row. Contact, financials
// and history rows are left behind; reads are keyed off the core table so
// the orphans are unreachable.
func (c *Coordinator) DeleteProject(ctx context.Context, ownerID int, id int) error {
	err := c.store.Delete(ctx, store.TABLE_PROJECTS, store.Filter{
		"id":       id,
		"owner_id": ownerID,
	})
	if err != nil {
		return err
	}

	err = c.store.Delete(ctx, store.TABLE_REPORTS, store.Filter{
		"project_id": id,
		"owner_id":   ownerID,
	})
	// A project that never finished its create has no report row.
	if err != nil && !store.IsNotFound(err) {
		return &PartialSyncError{Step: STEP_REPORT_DELETE, Err: err}
	}

	c.invalidate(ctx, ownerID)
	return nil
}

func (c *Coordinator) invalidate(ctx context.Context, ownerID int) {
	if c.reports != nil {
		cacheCtx, cancel := util.GetContextWithTimeout(ctx)
		defer cancel()
		if err := c.reports.Invalidate(cacheCtx, ownerID); err != nil {
			log.Println("report cache invalidate:", err)
		}
	}
	c.bus.Invalidate(bus.ProjectsKey(ownerID))
	c.bus.Invalidate(bus.ReportsKey(ownerID))
}
