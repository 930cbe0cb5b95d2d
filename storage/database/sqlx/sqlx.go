package sqlxrepos

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/vigil/core"
)

const uniqueViolation = "23505"

// uniqueViolated reports whether err is a unique constraint violation on `constraint` (any constraint if empty).
func uniqueViolated(err error, constraint string) bool {
	pqErr, ok := errors.Cause(err).(*pq.Error)
	if !ok || pqErr.Code != uniqueViolation {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}

// where accumulates AND-ed conditions with `?` bind vars.
type where struct {
	conds []string
	args  []interface{}
}

func (w *where) add(cond string, args ...interface{}) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

func likeArg(search string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(search) + "%"
}

// deleteIn deletes the rows of `table` whose `column` is one of `values`.
func deleteIn(ctx context.Context, db *sqlx.DB, table, column string, values []string) error {
	if len(values) == 0 {
		return nil
	}
	q, args, err := sqlx.In("DELETE FROM "+table+" WHERE "+column+" IN (?)", values)
	if err != nil {
		return errors.Wrap(err, "building delete query")
	}
	if _, err = db.ExecContext(ctx, db.Rebind(q), args...); err != nil {
		return errors.Wrapf(err, "deleting from %s", table)
	}
	return nil
}

func count(ctx context.Context, db *sqlx.DB, table string) (int, error) {
	var n int
	if err := db.GetContext(ctx, &n, "SELECT COUNT(*) FROM "+table); err != nil {
		return 0, errors.Wrapf(err, "counting %s", table)
	}
	return n, nil
}

func orderBy(ordering []core.DBOrdering) string {
	return core.OrderByClause(ordering, "created_at DESC")
}
