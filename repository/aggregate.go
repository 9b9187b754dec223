package repository

import (
	"context"
	"errors"

	"github.com/craftfolio/backend/api/domain"
	"github.com/craftfolio/backend/api/store"
)

// ProjectAggregateRepository reads and writes the project aggregate as one
// logical record across its five tables. Writes are sequenced by the
// Coordinator; reads join the sub-tables with per-project lookups and treat
// missing sub-rows as zero defaults so a partially created aggregate still
// lists.
type ProjectAggregateRepository struct {
	store store.RecordStore
	coord *Coordinator
}

func NewProjectAggregateRepository(rs store.RecordStore, coord *Coordinator) *ProjectAggregateRepository {
	return &ProjectAggregateRepository{
		store: rs,
		coord: coord,
	}
}

func (r *ProjectAggregateRepository) List(ctx context.Context, ownerID int) ([]domain.Project, error) {
	// A viewer with no resolvable identity sees an empty dashboard, not an
	// error.
	if ownerID <= 0 {
		return []domain.Project{}, nil
	}
	rows, err := r.store.Get(ctx, store.TABLE_PROJECTS, store.Filter{"owner_id": ownerID})
	if err != nil {
		if store.KindOf(err) == store.KindNotAuthenticated {
			return []domain.Project{}, nil
		}
		return nil, err
	}
	ret := make([]domain.Project, 0, len(rows))
	for _, row := range rows {
		project := rowToProject(row)
		if err := r.attachSubRecords(ctx, &project); err != nil {
			return nil, err
		}
		ret = append(ret, project)
	}
	return ret, nil
}

func (r *ProjectAggregateRepository) GetByID(ctx context.Context, ownerID int, id int) (*domain.Project, error) {
	rows, err := r.store.Get(ctx, store.TABLE_PROJECTS, store.Filter{
		"id":       id,
		"owner_id": ownerID,
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, store.NewError(store.KindNotFound, store.TABLE_PROJECTS, errors.New("no such project"))
	}
	project := rowToProject(rows[0])
	if err := r.attachSubRecords(ctx, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

func (r *ProjectAggregateRepository) Create(ctx context.Context, ownerID int, draft *domain.ProjectDraft) (*domain.Project, error) {
	if ownerID <= 0 {
		return nil, domain.ErrNotAuthenticated
	}
	if err := draft.Validate(); err != nil {
		return nil, err
	}
	id, err := r.coord.CreateProject(ctx, ownerID, draft)
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, ownerID, id)
}

func (r *ProjectAggregateRepository) Update(ctx context.Context, ownerID int, id int, patch *domain.ProjectPatch) error {
	if ownerID <= 0 {
		return domain.ErrNotAuthenticated
	}
	if err := patch.Validate(); err != nil {
		return err
	}
	if patch.Empty() {
		return nil
	}
	return r.coord.UpdateProject(ctx, ownerID, id, patch)
}

func (r *ProjectAggregateRepository) Remove(ctx context.Context, ownerID int, id int) error {
	if ownerID <= 0 {
		return domain.ErrNotAuthenticated
	}
	return r.coord.DeleteProject(ctx, ownerID, id)
}

func (r *ProjectAggregateRepository) History(ctx context.Context, ownerID int, id int) ([]domain.StatusHistoryEntry, error) {
	rows, err := r.store.Get(ctx, store.TABLE_STATUS_HISTORY, store.Filter{
		"project_id": id,
		"owner_id":   ownerID,
	})
	if err != nil {
		return nil, err
	}
	ret := make([]domain.StatusHistoryEntry, 0, len(rows))
	for _, row := range rows {
		ret = append(ret, rowToHistory(row))
	}
	return ret, nil
}

func (r *ProjectAggregateRepository) Reports(ctx context.Context, ownerID int) ([]domain.FinancialReportRow, error) {
	if ownerID <= 0 {
		return []domain.FinancialReportRow{}, nil
	}
	rows, err := r.store.Get(ctx, store.TABLE_REPORTS, store.Filter{"owner_id": ownerID})
	if err != nil {
		return nil, err
	}
	ret := make([]domain.FinancialReportRow, 0, len(rows))
	for _, row := range rows {
		ret = append(ret, rowToReport(row))
	}
	return ret, nil
}

// attachSubRecords fills contact and financials from their tables. A missing
// row reads as zero values until a later update repairs it.
func (r *ProjectAggregateRepository) attachSubRecords(ctx context.Context, project *domain.Project) error {
	contacts, err := r.store.Get(ctx, store.TABLE_CONTACTS, store.Filter{
		"project_id": project.ID,
		"owner_id":   project.OwnerID,
	})
	if err != nil && !store.IsNotFound(err) {
		return err
	}
	if len(contacts) > 0 {
		project.Contact = rowToContact(contacts[0])
	}
	financials, err := r.store.Get(ctx, store.TABLE_FINANCIALS, store.Filter{
		"project_id": project.ID,
		"owner_id":   project.OwnerID,
	})
	if err != nil && !store.IsNotFound(err) {
		return err
	}
	if len(financials) > 0 {
		project.Financials = rowToFinancials(financials[0])
	}
	return nil
}

var _ domain.ProjectRepository = (*ProjectAggregateRepository)(nil)
