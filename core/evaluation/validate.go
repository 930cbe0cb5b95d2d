package evaluation

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/vigil/core/rubric"
)

// CompletenessPolicy decides how unscored categories are treated on submission.
type CompletenessPolicy string

const (
	// RequireAll rejects drafts missing any category. 0 is a valid, explicit score.
	RequireAll CompletenessPolicy = "require_all"
	// DefaultZero scores missing categories as 0 ("fully compliant").
	DefaultZero CompletenessPolicy = "default_zero"
)

func ParsePolicy(s string) (CompletenessPolicy, error) {
	switch p := CompletenessPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case RequireAll, DefaultZero:
		return p, nil
	case "":
		return RequireAll, nil
	}
	return "", errors.Errorf("unknown completeness policy %q", s)
}

// Validate gates the submission of a draft. Checks run in order:
// completeness, signature, then score values; the first failure is returned.
func Validate(rub *rubric.Rubric, draft Draft, policy CompletenessPolicy) (Result, error) {
	if policy == RequireAll {
		var missing []string
		for _, id := range rub.CategoryIDs() {
			if _, ok := draft.Scores[id]; !ok {
				missing = append(missing, id)
			}
		}
		if len(missing) > 0 {
			return Result{}, &IncompleteCategoriesError{IDs: missing}
		}
	}

	if strings.TrimSpace(draft.EvaluatorSignature) == "" {
		return Result{}, ErrMissingSignature
	}

	// unknown categories first, in a stable order
	for _, id := range sortedKeys(draft.Scores) {
		if _, ok := rub.Category(id); !ok {
			return Result{}, &InvalidScoreError{CategoryID: id, Points: draft.Scores[id]}
		}
	}

	scores := make(map[string]float64, len(rub.CategoryIDs()))
	remarks := make(map[string]string)
	for _, cat := range rub.Categories() {
		pts, ok := draft.Scores[cat.ID]
		if !ok {
			pts = 0 // DefaultZero
		}
		if !cat.HasOption(pts) {
			return Result{}, &InvalidScoreError{CategoryID: cat.ID, Points: pts}
		}
		scores[cat.ID] = pts

		if remark := strings.TrimSpace(draft.Remarks[cat.ID]); remark != "" {
			remarks[cat.ID] = remark
		}
	}

	total := rubric.TotalPoints(scores)
	return Result{
		Scores:         scores,
		Remarks:        remarks,
		TotalPoints:    total,
		Recommendation: rub.RecommendationFor(total),
	}, nil
}
