package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Project groups tasks under a single owner and budget.
type Project struct {
	ID                uuid.UUID       `db:"id"`
	Name              string          `db:"name"`
	Description       *string         `db:"description"`
	OwnerID           uuid.UUID       `db:"owner_id"`
	CreatedAt         time.Time       `db:"created_at"`
	ExpectedStartDate time.Time       `db:"expected_start_date"`
	ActualEndDate     *time.Time      `db:"actual_end_date"`
	Budget            decimal.Decimal `db:"budget"`

	Tasks []Task `db:"-"`
}

// IsOwner reports whether userID owns the project.
func (p Project) IsOwner(userID uuid.UUID) bool {
	return p.OwnerID == userID
}

// IsEnded reports whether the project has been ended. Ended projects are immutable.
func (p Project) IsEnded() bool {
	return p.ActualEndDate != nil
}

// AllTasksClosed reports whether every task is Completed or Cancelled.
// A project without tasks has no open work.
func (p Project) AllTasksClosed() bool {
	for _, t := range p.Tasks {
		if !t.Status.IsClosed() {
			return false
		}
	}
	return true
}

// End stamps the actual end date. The project must not already be ended and
// must not have open tasks.
func (p *Project) End(now time.Time) error {
	if p.IsEnded() {
		return Conflict("project is already ended")
	}
	if !p.AllTasksClosed() {
		return Conflict("cannot end project with active tasks")
	}
	ended := now.UTC()
	p.ActualEndDate = &ended
	return nil
}

// Clone returns a deep copy of the project, including its tasks.
func (p Project) Clone() Project {
	out := p
	if p.Description != nil {
		d := *p.Description
		out.Description = &d
	}
	if p.ActualEndDate != nil {
		e := *p.ActualEndDate
		out.ActualEndDate = &e
	}
	if p.Tasks != nil {
		out.Tasks = make([]Task, len(p.Tasks))
		for i, t := range p.Tasks {
			out.Tasks[i] = t.Clone()
		}
	}
	return out
}
