package evaluation

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/vigil/core"
	"github.com/trezcool/vigil/core/client"
)

var (
	// errors
	ErrNotFound            = core.NotFoundError{Entity: "evaluation"}
	ErrMissingSignature    = errors.New("evaluator signature is required")
	ErrDuplicateEvaluation = errors.New("this guard has already been evaluated on this date")
	ErrUnknownGuard        = errors.New("guard not found")
	ErrFutureDate          = errors.New("evaluation date cannot be in the future")
	// ErrIdentityVerificationFailed is returned by the client Authenticator as is.
	ErrIdentityVerificationFailed = client.ErrInvalidCredentials
)

// Rejection reasons, stable across releases: they are exposed to API consumers and metrics.
const (
	ReasonIncompleteCategories = "incomplete_categories"
	ReasonMissingSignature     = "missing_signature"
	ReasonInvalidScore         = "invalid_score"
	ReasonIdentityFailed       = "identity_verification_failed"
	ReasonDuplicate            = "duplicate_evaluation"
	ReasonUnknownGuard         = "unknown_guard"
	ReasonFutureDate           = "future_date"
)

// IncompleteCategoriesError lists, in rubric order, the categories left unscored.
type IncompleteCategoriesError struct {
	IDs []string
}

func (err *IncompleteCategoriesError) Error() string {
	return "unscored categories: " + strings.Join(err.IDs, ", ")
}

// InvalidScoreError is returned when a score is not one of its category's options, or the category is unknown.
type InvalidScoreError struct {
	CategoryID string
	Points     float64
}

func (err *InvalidScoreError) Error() string {
	return fmt.Sprintf("invalid score %v for category %q", err.Points, err.CategoryID)
}

// Reason returns the rejection reason of a submission error, "" if err is not a rejection.
func Reason(err error) string {
	switch cause := errors.Cause(err).(type) {
	case *IncompleteCategoriesError:
		return ReasonIncompleteCategories
	case *InvalidScoreError:
		return ReasonInvalidScore
	case *core.ValidationError:
		if cause.Err != nil {
			return Reason(cause.Err)
		}
	default:
		switch cause {
		case ErrMissingSignature:
			return ReasonMissingSignature
		case ErrIdentityVerificationFailed:
			return ReasonIdentityFailed
		case ErrDuplicateEvaluation:
			return ReasonDuplicate
		case ErrUnknownGuard:
			return ReasonUnknownGuard
		case ErrFutureDate:
			return ReasonFutureDate
		}
	}
	return ""
}
