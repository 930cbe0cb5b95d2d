package guard

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/vigil/core"
)

var (
	// errors
	ErrNotFound      = core.NotFoundError{Entity: "guard"}
	ErrGuardIDExists = errors.New("a guard with this ID already exists")
)

type (
	Repository interface {
		CreateGuard(ctx context.Context, g Guard) (Guard, error)
		GetGuard(ctx context.Context, guardID string) (Guard, error)
		// QueryGuards applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of Guard.GuardID or Guard.Name.
		QueryGuards(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]Guard, error)
		CountGuards(ctx context.Context) (int, error)
		DeleteGuards(ctx context.Context, guardIDs ...string) error
	}

	Service struct {
		repo    Repository
		nowFunc func() time.Time
	}
)

func NewService(repo Repository) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
	).CheckAndPanic()

	return &Service{repo: repo, nowFunc: time.Now}
}

func (svc *Service) Create(ctx context.Context, ng NewGuard) (Guard, error) {
	g := Guard{
		ID:        uuid.New().String(),
		GuardID:   ng.GuardID,
		Name:      ng.Name,
		CreatedAt: svc.nowFunc().UTC(),
	}
	g, err := svc.repo.CreateGuard(ctx, g)
	if err != nil {
		if errors.Cause(err) == ErrGuardIDExists {
			return Guard{}, core.NewValidationError(ErrGuardIDExists, core.FieldError{Field: "guard_id", Error: ErrGuardIDExists.Error()})
		}
		return Guard{}, errors.Wrap(err, "creating guard")
	}
	return g, nil
}

func (svc *Service) Get(ctx context.Context, guardID string) (Guard, error) {
	return svc.repo.GetGuard(ctx, core.CleanString(guardID))
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]Guard, error) {
	filter.Clean()
	return svc.repo.QueryGuards(ctx, filter, core.AllowOrderings(ordering, OrderingColumns))
}

func (svc *Service) Count(ctx context.Context) (int, error) {
	return svc.repo.CountGuards(ctx)
}

// Delete removes guards along with their evaluations.
func (svc *Service) Delete(ctx context.Context, guardIDs ...string) error {
	return svc.repo.DeleteGuards(ctx, guardIDs...)
}
