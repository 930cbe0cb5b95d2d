package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/vigil/core"
	"github.com/trezcool/vigil/core/evaluation"
	"github.com/trezcool/vigil/core/user"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "authentication failed")
	errAccountDeactivated   = echo.NewHTTPError(http.StatusForbidden, "account deactivated")
	errRefreshExpired       = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHttpForbidden        = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound         = echo.NewHTTPError(http.StatusNotFound, "not found")
)

// rejection is the body of a refused evaluation submission.
type rejection struct {
	Error      string            `json:"error"`
	Code       string            `json:"code"`
	Categories []string          `json:"categories,omitempty"`
	Fields     map[string]string `json:"fields,omitempty"`
}

// rejectionStatus maps evaluation rejection reasons to their HTTP status.
var rejectionStatus = map[string]int{
	evaluation.ReasonIncompleteCategories: http.StatusBadRequest,
	evaluation.ReasonMissingSignature:     http.StatusBadRequest,
	evaluation.ReasonInvalidScore:         http.StatusBadRequest,
	evaluation.ReasonUnknownGuard:         http.StatusBadRequest,
	evaluation.ReasonFutureDate:           http.StatusBadRequest,
	evaluation.ReasonIdentityFailed:       http.StatusUnauthorized,
	evaluation.ReasonDuplicate:            http.StatusConflict,
}

func newRejection(reason string, err error) rejection {
	rej := rejection{Error: errors.Cause(err).Error(), Code: reason}
	switch cause := errors.Cause(err).(type) {
	case *evaluation.IncompleteCategoriesError:
		rej.Categories = cause.IDs
	case *evaluation.InvalidScoreError:
		rej.Categories = []string{cause.CategoryID}
	case *core.ValidationError:
		rej.Fields = cause.FieldMap()
	}
	return rej
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		if reason := evaluation.Reason(err); reason != "" {
			code = rejectionStatus[reason]
			message = newRejection(reason, err)
			respond(ctx, code, message)
			return
		}

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				message = origErr.Message
				break
			}
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case validator.ValidationErrors:
			code = http.StatusBadRequest
			message = core.TranslateErrors(origErr, translator)
		case *core.ValidationError:
			if flds := origErr.FieldMap(); flds != nil {
				message = flds
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		case core.NotFoundError, *core.NotFoundError:
			code = http.StatusNotFound
			message = origErr.Error()
		default: // any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg

			var usr user.User
			if claims, cErr := getContextClaims(ctx); cErr == nil {
				usr.ID = claims.Subject
				usr.Username = claims.Username
				usr.Email = claims.Email
			}
			logger.Error(msg, errors.Wrap(err, msg), usr)

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug && code == http.StatusInternalServerError {
			message = err.Error()
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}
		respond(ctx, code, message)
	}
}

func respond(ctx echo.Context, code int, message interface{}) {
	if ctx.Response().Committed {
		return
	}
	var err error
	if ctx.Request().Method == http.MethodHead { // Issue #608
		err = ctx.NoContent(code)
	} else {
		err = ctx.JSON(code, message)
	}
	if err != nil {
		ctx.Echo().Logger.Error(err)
	}
}
