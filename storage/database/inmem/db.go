package inmemdb

import (
	"strings"
	"sync"

	"github.com/trezcool/vigil/core/client"
	"github.com/trezcool/vigil/core/evaluation"
	"github.com/trezcool/vigil/core/guard"
	"github.com/trezcool/vigil/core/user"
)

// DB is an in-memory store. Evaluations hold foreign keys to guards & clients,
// so all tables share a single lock.
type DB struct {
	sync.RWMutex
	users       map[string]*user.User
	guards      map[string]*guard.Guard        // by guard ID
	clients     map[string]*client.Client      // by client ID
	evaluations map[string]*evaluation.Record // by ID
}

func Open() *DB {
	db := &DB{}
	db.Reset()
	return db
}

// Reset drops all data.
func (db *DB) Reset() {
	db.Lock()
	defer db.Unlock()
	db.users = make(map[string]*user.User)
	db.guards = make(map[string]*guard.Guard)
	db.clients = make(map[string]*client.Client)
	db.evaluations = make(map[string]*evaluation.Record)
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
