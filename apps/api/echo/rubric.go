package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/vigil/core/evaluation"
	"github.com/trezcool/vigil/core/rubric"
)

type rubricApi struct {
	svc *evaluation.Service
}

func registerRubricAPI(g *echo.Group, svc *evaluation.Service) {
	api := rubricApi{svc: svc}

	rg := g.Group("/rubric")
	rg.GET("", api.retrieve)
	rg.POST("/preview", api.preview)
}

func (api *rubricApi) retrieve(ctx echo.Context) error {
	rub := api.svc.Rubric()
	return ctx.JSON(http.StatusOK, RubricResponse{
		Version:           rub.Version(),
		Categories:        rub.Categories(),
		Thresholds:        rub.Thresholds(),
		MaxTotal:          rub.MaxTotal(),
		EditWindowSeconds: int64(api.svc.EditWindow().Seconds()),
	})
}

// preview scores a draft in progress. Nothing is validated nor persisted.
func (api *rubricApi) preview(ctx echo.Context) error {
	var data PreviewRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PreviewRequest")
	}
	if data.Scores == nil {
		data.Scores = map[string]float64{}
	}
	res := api.svc.Preview(data.Scores)
	return ctx.JSON(http.StatusOK, PreviewResponse{
		TotalPoints:    res.TotalPoints,
		Display:        rubric.FormatPoints(res.TotalPoints),
		Recommendation: res.Recommendation,
	})
}

type (
	RubricResponse struct {
		Version           string             `json:"version"`
		Categories        []rubric.Category  `json:"categories"`
		Thresholds        []rubric.Threshold `json:"thresholds"`
		MaxTotal          float64            `json:"max_total"`
		EditWindowSeconds int64              `json:"edit_window_seconds"`
	}

	PreviewRequest struct {
		Scores map[string]float64 `json:"scores"`
	}

	PreviewResponse struct {
		TotalPoints    float64               `json:"total_points"`
		Display        string                `json:"display"`
		Recommendation rubric.Recommendation `json:"recommendation"`
	}
)
