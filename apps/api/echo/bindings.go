package echoapi

import (
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/vigil/core"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	for _, field := range strings.Split(val[0], ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// CreatedRange binds the `created_from` & `created_to` query params (RFC3339).
type CreatedRange struct {
	From time.Time
	To   time.Time
}

func (cr *CreatedRange) Bind(ctx echo.Context) error {
	var flds []core.FieldError
	for param, dst := range map[string]*time.Time{"created_from": &cr.From, "created_to": &cr.To} {
		val := ctx.QueryParam(param)
		if val == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, val)
		if err != nil {
			flds = append(flds, core.FieldError{Field: param, Error: "must be an RFC3339 timestamp"})
			continue
		}
		*dst = t
	}
	if len(flds) > 0 {
		return core.NewValidationError(nil, flds...)
	}
	return nil
}

// bindBoolParam returns nil if the query param is absent.
func bindBoolParam(ctx echo.Context, param string) (*bool, error) {
	val := ctx.QueryParam(param)
	if val == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return nil, core.NewValidationError(nil, core.FieldError{Field: param, Error: "must be a boolean"})
	}
	return &b, nil
}
