package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/vigil/core"
	"github.com/trezcool/vigil/core/client"
)

const clientColumns = `id, client_id, name, representative_name, email, password, created_at`

type clientRow struct {
	ID                 string      `db:"id"`
	ClientID           string      `db:"client_id"`
	Name               string      `db:"name"`
	RepresentativeName null.String `db:"representative_name"`
	Email              null.String `db:"email"`
	Password           []byte      `db:"password"`
	CreatedAt          time.Time   `db:"created_at"`
}

func (row clientRow) client() client.Client {
	return client.Client{
		ID:                 row.ID,
		ClientID:           row.ClientID,
		Name:               row.Name,
		RepresentativeName: row.RepresentativeName.String,
		Email:              row.Email.String,
		PasswordHash:       row.Password,
		CreatedAt:          row.CreatedAt.UTC(),
	}
}

type clientRepository struct {
	db *sqlx.DB
}

var _ client.Repository = (*clientRepository)(nil)

func NewClientRepository(db *sqlx.DB) client.Repository {
	return &clientRepository{db: db}
}

func (repo *clientRepository) CreateClient(ctx context.Context, c client.Client) (client.Client, error) {
	row := clientRow{
		ID:                 c.ID,
		ClientID:           c.ClientID,
		Name:               c.Name,
		RepresentativeName: null.NewString(c.RepresentativeName, c.RepresentativeName != ""),
		Email:              null.NewString(c.Email, c.Email != ""),
		Password:           c.PasswordHash,
		CreatedAt:          c.CreatedAt,
	}
	q := `INSERT INTO client (` + clientColumns + `)
		VALUES (:id, :client_id, :name, :representative_name, :email, :password, :created_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		if uniqueViolated(err, "client_client_id_key") {
			return client.Client{}, client.ErrClientIDExists
		}
		return client.Client{}, errors.Wrap(err, "inserting client")
	}
	return c, nil
}

func (repo *clientRepository) GetClient(ctx context.Context, clientID string) (client.Client, error) {
	var row clientRow
	if err := repo.db.GetContext(ctx, &row, `SELECT `+clientColumns+` FROM client WHERE client_id = $1`, clientID); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return client.Client{}, client.ErrNotFound
		}
		return client.Client{}, errors.Wrap(err, "selecting client")
	}
	return row.client(), nil
}

func (repo *clientRepository) QueryClients(ctx context.Context, filter client.QueryFilter, ordering []core.DBOrdering) ([]client.Client, error) {
	var w where
	if filter.Search != "" {
		arg := likeArg(filter.Search)
		w.add(`(client_id ILIKE ? OR name ILIKE ? OR representative_name ILIKE ?)`, arg, arg, arg)
	}
	if !filter.CreatedFrom.IsZero() {
		w.add(`created_at >= ?`, filter.CreatedFrom)
	}
	if !filter.CreatedTo.IsZero() {
		w.add(`created_at <= ?`, filter.CreatedTo)
	}

	var rows []clientRow
	q := `SELECT ` + clientColumns + ` FROM client` + w.String() + orderBy(ordering)
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting clients")
	}
	clients := make([]client.Client, 0, len(rows))
	for _, row := range rows {
		clients = append(clients, row.client())
	}
	return clients, nil
}

func (repo *clientRepository) CountClients(ctx context.Context) (int, error) {
	return count(ctx, repo.db, "client")
}

func (repo *clientRepository) UpdateClientPassword(ctx context.Context, clientID string, hash []byte) error {
	res, err := repo.db.ExecContext(ctx, `UPDATE client SET password = $1 WHERE client_id = $2`, hash, clientID)
	if err != nil {
		return errors.Wrap(err, "updating client password")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return client.ErrNotFound
	}
	return nil
}

func (repo *clientRepository) DeleteClients(ctx context.Context, clientIDs ...string) error {
	return deleteIn(ctx, repo.db, "client", "client_id", clientIDs)
}
