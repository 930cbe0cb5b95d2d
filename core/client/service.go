package client

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
	ErrNotFound       = core.NotFoundError{Entity: "client"}
	ErrClientIDExists = errors.New("a client with this ID already exists")
	// ErrInvalidCredentials does not tell apart unknown clients from wrong passwords.
	ErrInvalidCredentials = errors.New("invalid client ID or password")
)

type (
	Repository interface {
		CreateClient(ctx context.Context, c Client) (Client, error)
		GetClient(ctx context.Context, clientID string) (Client, error)
		// QueryClients applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of Client.ClientID, Client.Name or Client.RepresentativeName.
		QueryClients(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]Client, error)
		CountClients(ctx context.Context) (int, error)
		UpdateClientPassword(ctx context.Context, clientID string, hash []byte) error
		DeleteClients(ctx context.Context, clientIDs ...string) error
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

func (svc *Service) Create(ctx context.Context, nc NewClient) (Client, error) {
	c := Client{
		ID:                 uuid.New().String(),
		ClientID:           nc.ClientID,
		Name:               nc.Name,
		RepresentativeName: nc.RepresentativeName,
		Email:              nc.Email,
		CreatedAt:          svc.nowFunc().UTC(),
	}
	if err := c.SetPassword(nc.Password); err != nil {
		return Client{}, errors.Wrap(err, "hashing password")
	}
	c, err := svc.repo.CreateClient(ctx, c)
	if err != nil {
		if errors.Cause(err) == ErrClientIDExists {
			return Client{}, core.NewValidationError(ErrClientIDExists, core.FieldError{Field: "client_id", Error: ErrClientIDExists.Error()})
		}
		return Client{}, errors.Wrap(err, "creating client")
	}
	return c, nil
}

func (svc *Service) Get(ctx context.Context, clientID string) (Client, error) {
	return svc.repo.GetClient(ctx, core.CleanString(clientID))
}

// Authenticate verifies the client's credentials.
// Both unknown clients and wrong passwords yield ErrInvalidCredentials.
func (svc *Service) Authenticate(ctx context.Context, clientID, pwd string) (Client, error) {
	c, err := svc.Get(ctx, clientID)
	if err != nil {
		if core.IsNotFound(err) {
			return Client{}, ErrInvalidCredentials
		}
		return Client{}, errors.Wrap(err, "finding client")
	}
	if err = c.CheckPassword(pwd); err != nil {
		return Client{}, ErrInvalidCredentials
	}
	return c, nil
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]Client, error) {
	filter.Clean()
	return svc.repo.QueryClients(ctx, filter, core.AllowOrderings(ordering, OrderingColumns))
}

func (svc *Service) Count(ctx context.Context) (int, error) {
	return svc.repo.CountClients(ctx)
}

func (svc *Service) ResetPassword(ctx context.Context, clientID, pwd string) error {
	var c Client
	if err := c.SetPassword(pwd); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	return svc.repo.UpdateClientPassword(ctx, core.CleanString(clientID), c.PasswordHash)
}

// Delete removes clients along with their evaluations.
func (svc *Service) Delete(ctx context.Context, clientIDs ...string) error {
	return svc.repo.DeleteClients(ctx, clientIDs...)
}
