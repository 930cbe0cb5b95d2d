package guard

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/vigil/core"
)

// Guard is a security guard that can be evaluated by clients.
type Guard struct {
	ID        string    `json:"id" db:"id"`
	GuardID   string    `json:"guard_id" db:"guard_id"` // external, human-facing identifier
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"` // UTC
}

// NewGuard contains information needed to create a new Guard.
type NewGuard struct {
	GuardID string `json:"guard_id" validate:"required,max=64,identifier"`
	Name    string `json:"name" validate:"required,notblank,max=255"`
}

func (ng *NewGuard) Validate(validate *validator.Validate) error {
	ng.GuardID = core.CleanString(ng.GuardID)
	ng.Name = core.CleanString(ng.Name)
	return validate.Struct(ng)
}

type QueryFilter struct {
	Search      string `query:"search"`
	CreatedFrom time.Time
	CreatedTo   time.Time
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

// OrderingColumns maps the API ordering fields to their columns.
var OrderingColumns = map[string]string{
	"guard_id":   "guard_id",
	"name":       "name",
	"created_at": "created_at",
}
