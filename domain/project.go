package domain

import (
	"context"
	"regexp"
	"time"
)

const (
	STATUS_PENDING Status = "pending"
	STATUS_IN_WORK Status = "in-work"
	STATUS_DONE    Status = "done"
)

// Same email shape the users table enforces in Postgres.
var emailRegex = regexp.MustCompile(`^[A-Za-z0-9._%-]+@[A-Za-z0-9.-]+[.][A-Za-z]+$`)

type Status string

func (s Status) Valid() bool {
	return s == STATUS_PENDING || s == STATUS_IN_WORK || s == STATUS_DONE
}

type Contact struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

type Financials struct {
	Expenses float64 `json:"expenses"`
	Profits  float64 `json:"profits"`
}

func (f Financials) NetProfit() float64 {
	return f.Profits - f.Expenses
}

// Project is the full aggregate: one row in projects plus its contact and
// financials sub-rows, always scoped to a single owner.
type Project struct {
	ID          int        `json:"id"`
	OwnerID     int        `json:"owner_id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Status      Status     `json:"status"`
	Images      []string   `json:"images"`
	Contact     Contact    `json:"contact"`
	Financials  Financials `json:"financials"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// ProjectDraft is the shape accepted on create. The id and timestamps are
// assigned by the store.
type ProjectDraft struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Status      Status     `json:"status"`
	Images      []string   `json:"images"`
	Contact     Contact    `json:"contact"`
	Financials  Financials `json:"financials"`
}

func (d *ProjectDraft) Validate() error {
	if d.Name == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if d.Status == "" {
		d.Status = STATUS_PENDING
	}
	if !d.Status.Valid() {
		return &ValidationError{Field: "status", Reason: "unknown status"}
	}
	if !emailRegex.MatchString(d.Contact.Email) {
		return &ValidationError{Field: "contact.email", Reason: "bad email"}
	}
	if d.Financials.Expenses < 0 {
		return &ValidationError{Field: "financials.expenses", Reason: "must be >= 0"}
	}
	if d.Financials.Profits < 0 {
		return &ValidationError{Field: "financials.profits", Reason: "must be >= 0"}
	}
	return nil
}

// ProjectPatch is a partial update. Nil fields are left untouched.
type ProjectPatch struct {
	Name        *string     `json:"name,omitempty"`
	Description *string     `json:"description,omitempty"`
	Status      *Status     `json:"status,omitempty"`
	Images      *[]string   `json:"images,omitempty"`
	Contact     *Contact    `json:"contact,omitempty"`
	Financials  *Financials `json:"financials,omitempty"`
}

func (p *ProjectPatch) Validate() error {
	if p.Name != nil && *p.Name == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if p.Status != nil && !p.Status.Valid() {
		return &ValidationError{Field: "status", Reason: "unknown status"}
	}
	if p.Contact != nil && !emailRegex.MatchString(p.Contact.Email) {
		return &ValidationError{Field: "contact.email", Reason: "bad email"}
	}
	if p.Financials != nil {
		if p.Financials.Expenses < 0 {
			return &ValidationError{Field: "financials.expenses", Reason: "must be >= 0"}
		}
		if p.Financials.Profits < 0 {
			return &ValidationError{Field: "financials.profits", Reason: "must be >= 0"}
		}
	}
	return nil
}

func (p *ProjectPatch) Empty() bool {
	return p.Name == nil && p.Description == nil && p.Status == nil &&
		p.Images == nil && p.Contact == nil && p.Financials == nil
}

// StatusHistoryEntry is append-only: one row at creation and one per actual
// status transition.
type StatusHistoryEntry struct {
	ID        int       `json:"id"`
	ProjectID int       `json:"project_id"`
	OwnerID   int       `json:"owner_id"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// FinancialReportRow is the denormalized projection of a project's name,
// status and financials. One row per project, upserted on every relevant
// mutation. net_profit = profits - expenses at all times.
type FinancialReportRow struct {
	ProjectID int       `json:"project_id"`
	OwnerID   int       `json:"owner_id"`
	Name      string    `json:"project_name"`
	Status    Status    `json:"project_status"`
	Expenses  float64   `json:"expenses"`
	Profits   float64   `json:"profits"`
	NetProfit float64   `json:"net_profit"`
	CreatedAt time.Time `json:"created_at"`
}

type ProjectStats struct {
	Total   int `json:"total"`
	Pending int `json:"pending"`
	InWork  int `json:"in_work"`
	Done    int `json:"done"`
}

type ProjectRepository interface {
	List(ctx context.Context, ownerID int) ([]Project, error)
	GetByID(ctx context.Context, ownerID int, id int) (*Project, error)
	Create(ctx context.Context, ownerID int, draft *ProjectDraft) (*Project, error)
	Update(ctx context.Context, ownerID int, id int, patch *ProjectPatch) error
	Remove(ctx context.Context, ownerID int, id int) error
	History(ctx context.Context, ownerID int, id int) ([]StatusHistoryEntry, error)
	Reports(ctx context.Context, ownerID int) ([]FinancialReportRow, error)
}

type ReportCache interface {
	GetByOwnerID(ctx context.Context, ownerID int) ([]FinancialReportRow, error)
	Update(ctx context.Context, ownerID int, rows []FinancialReportRow) error
	Invalidate(ctx context.Context, ownerID int) error
}
