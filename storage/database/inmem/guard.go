package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/vigil/core"
	"github.com/trezcool/vigil/core/guard"
)

type guardRepository struct {
	db *DB
}

var _ guard.Repository = (*guardRepository)(nil)

func NewGuardRepository(db *DB) guard.Repository {
	return &guardRepository{db: db}
}

func (repo *guardRepository) CreateGuard(_ context.Context, g guard.Guard) (guard.Guard, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.guards[g.GuardID]; ok {
		return guard.Guard{}, guard.ErrGuardIDExists
	}
	repo.db.guards[g.GuardID] = &g
	return g, nil
}

func (repo *guardRepository) GetGuard(_ context.Context, guardID string) (guard.Guard, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if g, ok := repo.db.guards[guardID]; ok {
		return *g, nil
	}
	return guard.Guard{}, guard.ErrNotFound
}

func (repo *guardRepository) QueryGuards(_ context.Context, filter guard.QueryFilter, ordering []core.DBOrdering) ([]guard.Guard, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	guards := make([]guard.Guard, 0, len(repo.db.guards))
	for _, g := range repo.db.guards {
		if filter.Search != "" && !(containsFold(g.GuardID, filter.Search) || containsFold(g.Name, filter.Search)) {
			continue
		}
		if !filter.CreatedFrom.IsZero() && g.CreatedAt.Before(filter.CreatedFrom) {
			continue
		}
		if !filter.CreatedTo.IsZero() && g.CreatedAt.After(filter.CreatedTo) {
			continue
		}
		guards = append(guards, *g)
	}

	sort.SliceStable(guards, lessFuncs(ordering, func(i, j int, field string) int {
		a, b := guards[i], guards[j]
		switch field {
		case "guard_id":
			return compareStrings(a.GuardID, b.GuardID)
		case "name":
			return compareStrings(a.Name, b.Name)
		default:
			return compareTimes(a.CreatedAt, b.CreatedAt)
		}
	}))
	return guards, nil
}

func (repo *guardRepository) CountGuards(context.Context) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return len(repo.db.guards), nil
}

// DeleteGuards cascades to the evaluations of the deleted guards.
func (repo *guardRepository) DeleteGuards(_ context.Context, guardIDs ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, id := range guardIDs {
		delete(repo.db.guards, id)
		for evalID, rec := range repo.db.evaluations {
			if rec.GuardID == id {
				delete(repo.db.evaluations, evalID)
			}
		}
	}
	return nil
}
