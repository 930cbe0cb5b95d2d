package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/vigil/core"
	"github.com/trezcool/vigil/core/user"
)

const userColumns = `id, name, username, email, is_active, roles, password, created_at, updated_at, last_login`

type userRow struct {
	ID        string      `db:"id"`
	Name      string      `db:"name"`
	Username  null.String `db:"username"`
	Email     null.String `db:"email"`
	IsActive  bool        `db:"is_active"`
	Roles     string      `db:"roles"`
	Password  []byte      `db:"password"`
	CreatedAt time.Time   `db:"created_at"`
	UpdatedAt time.Time   `db:"updated_at"`
	LastLogin null.Time   `db:"last_login"`
}

func newUserRow(usr user.User) userRow {
	return userRow{
		ID:        usr.ID,
		Name:      usr.Name,
		Username:  null.NewString(usr.Username, usr.Username != ""),
		Email:     null.NewString(usr.Email, usr.Email != ""),
		IsActive:  usr.IsActive,
		Roles:     strings.Join(usr.Roles, ","),
		Password:  usr.PasswordHash,
		CreatedAt: usr.CreatedAt,
		UpdatedAt: usr.UpdatedAt,
		LastLogin: null.NewTime(usr.LastLogin, !usr.LastLogin.IsZero()),
	}
}

func (row userRow) user() user.User {
	usr := user.User{
		ID:           row.ID,
		Name:         row.Name,
		Username:     row.Username.String,
		Email:        row.Email.String,
		IsActive:     row.IsActive,
		PasswordHash: row.Password,
		CreatedAt:    row.CreatedAt.UTC(),
		UpdatedAt:    row.UpdatedAt.UTC(),
	}
	if row.Roles != "" {
		usr.Roles = strings.Split(row.Roles, ",")
	}
	if row.LastLogin.Valid {
		usr.LastLogin = row.LastLogin.Time.UTC()
	}
	return usr
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) CheckUniqueness(ctx context.Context, username, email string, excludedIDs ...string) error {
	check := func(column, value string, errExists error) error {
		if value == "" {
			return nil
		}
		q := `SELECT COUNT(*) FROM "user" WHERE ` + column + ` = ?`
		args := []interface{}{value}
		if len(excludedIDs) > 0 {
			q += ` AND id NOT IN (?)`
			args = append(args, excludedIDs)
		}
		q, args, err := sqlx.In(q, args...)
		if err != nil {
			return errors.Wrap(err, "building uniqueness query")
		}
		var n int
		if err = repo.db.GetContext(ctx, &n, repo.db.Rebind(q), args...); err != nil {
			return errors.Wrap(err, "checking uniqueness")
		}
		if n > 0 {
			return errExists
		}
		return nil
	}

	if err := check("username", username, user.ErrUsernameExists); err != nil {
		return err
	}
	return check("email", email, user.ErrEmailExists)
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	q := `INSERT INTO "user" (` + userColumns + `)
		VALUES (:id, :name, :username, :email, :is_active, :roles, :password, :created_at, :updated_at, :last_login)`
	if _, err := repo.db.NamedExecContext(ctx, q, newUserRow(usr)); err != nil {
		switch {
		case uniqueViolated(err, "user_username_key"):
			return user.User{}, user.ErrUsernameExists
		case uniqueViolated(err, "user_email_key"):
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	var (
		row userRow
		err error
	)
	q := `SELECT ` + userColumns + ` FROM "user"`
	switch {
	case filter.ID != "":
		if _, pErr := uuid.Parse(filter.ID); pErr != nil {
			return user.User{}, user.ErrNotFound
		}
		err = repo.db.GetContext(ctx, &row, q+` WHERE id = $1`, filter.ID)
	case filter.UsernameOrEmail != "":
		err = repo.db.GetContext(ctx, &row, q+` WHERE username = $1 OR email = $1 LIMIT 1`, filter.UsernameOrEmail)
	default:
		return user.User{}, user.ErrNotFound
	}
	if err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "selecting user")
	}
	return row.user(), nil
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	var w where
	if filter.Search != "" {
		arg := likeArg(filter.Search)
		w.add(`(name ILIKE ? OR username ILIKE ? OR email ILIKE ?)`, arg, arg, arg)
	}
	if filter.IsActive != nil {
		w.add(`is_active = ?`, *filter.IsActive)
	}
	if !filter.CreatedFrom.IsZero() {
		w.add(`created_at >= ?`, filter.CreatedFrom)
	}
	if !filter.CreatedTo.IsZero() {
		w.add(`created_at <= ?`, filter.CreatedTo)
	}
	if len(filter.Roles) > 0 {
		conds := make([]string, 0, len(filter.Roles))
		args := make([]interface{}, 0, len(filter.Roles))
		for _, role := range filter.Roles {
			conds = append(conds, `(',' || roles || ',') LIKE ?`)
			args = append(args, "%,"+role+",%")
		}
		w.add("("+strings.Join(conds, " OR ")+")", args...)
	}

	q := `SELECT ` + userColumns + ` FROM "user"` + w.String() + orderBy(ordering)
	var rows []userRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting users")
	}
	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.user())
	}
	return users, nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	q := `UPDATE "user" SET name = :name, username = :username, email = :email, is_active = :is_active,
		roles = :roles, password = :password, updated_at = :updated_at, last_login = :last_login
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, newUserRow(usr))
	if err != nil {
		switch {
		case uniqueViolated(err, "user_username_key"):
			return user.User{}, user.ErrUsernameExists
		case uniqueViolated(err, "user_email_key"):
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return usr, nil
}

func (repo *userRepository) DeleteUsers(ctx context.Context, ids ...string) error {
	return deleteIn(ctx, repo.db, `"user"`, "id", ids)
}
