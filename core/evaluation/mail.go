package evaluation

import (
	"net/mail"

	"github.com/trezcool/vigil/core"
	"github.com/trezcool/vigil/core/client"
	"github.com/trezcool/vigil/core/guard"
	"github.com/trezcool/vigil/core/rubric"
)

const receiptTemplate = "evaluation_receipt"

type (
	receiptLine struct {
		Label  string
		Points string
		Remark string
	}

	receiptData struct {
		RepresentativeName string
		GuardName          string
		GuardID            string
		EvaluationDate     string
		TotalPoints        string
		Tier               rubric.Tier
		EditableUntil      string
		Lines              []receiptLine
	}
)

func (svc *Service) receipt(clt client.Client, grd guard.Guard, view View) *core.EmailMessage {
	name := clt.RepresentativeName
	if name == "" {
		name = clt.Name
	}

	data := receiptData{
		RepresentativeName: name,
		GuardName:          grd.Name,
		GuardID:            grd.GuardID,
		EvaluationDate:     view.EvaluationDate.Format(dateLayout),
		TotalPoints:        rubric.FormatPoints(view.TotalPoints),
		Tier:               view.Recommendation.Tier,
		EditableUntil:      view.EditableUntil.Format("2006-01-02 15:04 MST"),
	}
	for _, cat := range svc.rubric.Categories() {
		data.Lines = append(data.Lines, receiptLine{
			Label:  cat.Label,
			Points: rubric.FormatPoints(view.Sheet.Scores[cat.ID]),
			Remark: view.Sheet.Remarks[cat.ID],
		})
	}

	return &core.EmailMessage{
		To:           []mail.Address{{Name: name, Address: clt.Email}},
		Subject:      "Evaluation recorded: " + grd.Name,
		TemplateName: receiptTemplate,
		TemplateData: data,
	}
}
