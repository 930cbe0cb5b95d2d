package client

import (
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/vigil/core"
)

// Client is a customer site whose representatives evaluate the guards posted there.
type Client struct {
	ID                 string    `json:"id"`
	ClientID           string    `json:"client_id"` // external, human-facing identifier used to log in
	Name               string    `json:"name"`
	RepresentativeName string    `json:"representative_name,omitempty"`
	Email              string    `json:"email,omitempty"`
	PasswordHash       []byte    `json:"-"`
	CreatedAt          time.Time `json:"created_at"` // UTC
}

func (c *Client) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	c.PasswordHash = hash
	return nil
}

func (c *Client) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(c.PasswordHash, []byte(pwd))
}

// NewClient contains information needed to create a new Client.
type NewClient struct {
	ClientID           string `json:"client_id" validate:"required,max=64,identifier"`
	Name               string `json:"name" validate:"required,notblank,max=255"`
	RepresentativeName string `json:"representative_name" validate:"max=255"`
	Email              string `json:"email" validate:"omitempty,email"`
	Password           string `json:"password" validate:"required,min=8"`
	PasswordConfirm    string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (nc *NewClient) Validate(validate *validator.Validate) error {
	nc.ClientID = core.CleanString(nc.ClientID)
	nc.Name = core.CleanString(nc.Name)
	nc.RepresentativeName = core.CleanString(nc.RepresentativeName)
	nc.Email = core.CleanString(nc.Email, true /* lower */)
	return validate.Struct(nc)
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
	"client_id":  "client_id",
	"name":       "name",
	"created_at": "created_at",
}
