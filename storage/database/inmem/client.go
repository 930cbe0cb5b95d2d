package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/vigil/core"
	"github.com/trezcool/vigil/core/client"
)

type clientRepository struct {
	db *DB
}

var _ client.Repository = (*clientRepository)(nil)

func NewClientRepository(db *DB) client.Repository {
	return &clientRepository{db: db}
}

func copyClient(c *client.Client) client.Client {
	clt := *c
	clt.PasswordHash = append([]byte(nil), c.PasswordHash...)
	return clt
}

func (repo *clientRepository) CreateClient(_ context.Context, c client.Client) (client.Client, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.clients[c.ClientID]; ok {
		return client.Client{}, client.ErrClientIDExists
	}
	repo.db.clients[c.ClientID] = &c
	return copyClient(&c), nil
}

func (repo *clientRepository) GetClient(_ context.Context, clientID string) (client.Client, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if c, ok := repo.db.clients[clientID]; ok {
		return copyClient(c), nil
	}
	return client.Client{}, client.ErrNotFound
}

func (repo *clientRepository) QueryClients(_ context.Context, filter client.QueryFilter, ordering []core.DBOrdering) ([]client.Client, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	clients := make([]client.Client, 0, len(repo.db.clients))
	for _, c := range repo.db.clients {
		if filter.Search != "" &&
			!(containsFold(c.ClientID, filter.Search) || containsFold(c.Name, filter.Search) || containsFold(c.RepresentativeName, filter.Search)) {
			continue
		}
		if !filter.CreatedFrom.IsZero() && c.CreatedAt.Before(filter.CreatedFrom) {
			continue
		}
		if !filter.CreatedTo.IsZero() && c.CreatedAt.After(filter.CreatedTo) {
			continue
		}
		clients = append(clients, copyClient(c))
	}

	sort.SliceStable(clients, lessFuncs(ordering, func(i, j int, field string) int {
		a, b := clients[i], clients[j]
		switch field {
		case "client_id":
			return compareStrings(a.ClientID, b.ClientID)
		case "name":
			return compareStrings(a.Name, b.Name)
		default:
			return compareTimes(a.CreatedAt, b.CreatedAt)
		}
	}))
	return clients, nil
}

func (repo *clientRepository) CountClients(context.Context) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return len(repo.db.clients), nil
}

func (repo *clientRepository) UpdateClientPassword(_ context.Context, clientID string, hash []byte) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	c, ok := repo.db.clients[clientID]
	if !ok {
		return client.ErrNotFound
	}
	c.PasswordHash = append([]byte(nil), hash...)
	return nil
}

// DeleteClients cascades to the evaluations submitted by the deleted clients.
func (repo *clientRepository) DeleteClients(_ context.Context, clientIDs ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, id := range clientIDs {
		delete(repo.db.clients, id)
		for evalID, rec := range repo.db.evaluations {
			if rec.ClientID == id {
				delete(repo.db.evaluations, evalID)
			}
		}
	}
	return nil
}
