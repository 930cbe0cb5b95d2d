package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/vigil/core"
	"github.com/trezcool/vigil/core/guard"
)

const guardColumns = `id, guard_id, name, created_at`

type guardRepository struct {
	db *sqlx.DB
}

var _ guard.Repository = (*guardRepository)(nil)

func NewGuardRepository(db *sqlx.DB) guard.Repository {
	return &guardRepository{db: db}
}

func (repo *guardRepository) CreateGuard(ctx context.Context, g guard.Guard) (guard.Guard, error) {
	q := `INSERT INTO guard (` + guardColumns + `) VALUES (:id, :guard_id, :name, :created_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, g); err != nil {
		if uniqueViolated(err, "guard_guard_id_key") {
			return guard.Guard{}, guard.ErrGuardIDExists
		}
		return guard.Guard{}, errors.Wrap(err, "inserting guard")
	}
	return g, nil
}

func (repo *guardRepository) GetGuard(ctx context.Context, guardID string) (guard.Guard, error) {
	var g guard.Guard
	if err := repo.db.GetContext(ctx, &g, `SELECT `+guardColumns+` FROM guard WHERE guard_id = $1`, guardID); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return guard.Guard{}, guard.ErrNotFound
		}
		return guard.Guard{}, errors.Wrap(err, "selecting guard")
	}
	g.CreatedAt = g.CreatedAt.UTC()
	return g, nil
}

func (repo *guardRepository) QueryGuards(ctx context.Context, filter guard.QueryFilter, ordering []core.DBOrdering) ([]guard.Guard, error) {
	var w where
	if filter.Search != "" {
		arg := likeArg(filter.Search)
		w.add(`(guard_id ILIKE ? OR name ILIKE ?)`, arg, arg)
	}
	if !filter.CreatedFrom.IsZero() {
		w.add(`created_at >= ?`, filter.CreatedFrom)
	}
	if !filter.CreatedTo.IsZero() {
		w.add(`created_at <= ?`, filter.CreatedTo)
	}

	guards := make([]guard.Guard, 0)
	q := `SELECT ` + guardColumns + ` FROM guard` + w.String() + orderBy(ordering)
	if err := repo.db.SelectContext(ctx, &guards, repo.db.Rebind(q), w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting guards")
	}
	for i := range guards {
		guards[i].CreatedAt = guards[i].CreatedAt.UTC()
	}
	return guards, nil
}

func (repo *guardRepository) CountGuards(ctx context.Context) (int, error) {
	return count(ctx, repo.db, "guard")
}

// DeleteGuards relies on ON DELETE CASCADE to remove their evaluations.
func (repo *guardRepository) DeleteGuards(ctx context.Context, guardIDs ...string) error {
	return deleteIn(ctx, repo.db, "guard", "guard_id", guardIDs)
}
