package core

import (
	"io/fs"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/vigil/fs"
)

type receiptLine struct {
	Label, Points, Remark string
}

type receiptData struct {
	RepresentativeName, GuardName, GuardID, EvaluationDate string
	TotalPoints, Tier, EditableUntil                       string
	Lines                                                  []receiptLine
}

func TestEmbeddedBaseLayouts(t *testing.T) {
	for _, name := range []string{"_base.txt", "_base.gohtml"} {
		_, err := fs.Stat(appfs.FS, emailTemplatesDir+"/"+name)
		assert.NoError(t, err, name)
	}
}

func TestEmailMessage_Render(t *testing.T) {
	require.NoError(t, ParseEmailTemplates(true))

	data := receiptData{
		RepresentativeName: "Jane Rep",
		GuardName:          "John Doe",
		GuardID:            "G-001",
		EvaluationDate:     "2024-03-15",
		TotalPoints:        "1.5",
		Tier:               "GOOD STANDING",
		EditableUntil:      "2024-03-15 21:30 UTC",
		Lines:              []receiptLine{{Label: "Punctuality", Points: "0.5", Remark: "late twice"}},
	}

	tests := []struct {
		name     string
		msg      EmailMessage
		wantErr  error
		wantText []string
		wantHTML []string
	}{
		{
			name:     "templated",
			msg:      EmailMessage{TemplateName: "evaluation_receipt", TemplateData: data},
			wantText: []string{"Hello Jane Rep,", "John Doe (G-001)", "- Punctuality: 0.5 (late twice)", "https://vigil.test"},
			wantHTML: []string{"<strong>John Doe</strong>", "<td>Punctuality</td>", `href="https://vigil.test"`},
		},
		{
			name:     "plain body",
			msg:      EmailMessage{BodyStr: "lol"},
			wantText: []string{"lol"},
		},
		{
			name:    "unknown template",
			msg:     EmailMessage{TemplateName: "lol", TemplateData: data},
			wantErr: ErrTemplateNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.msg
			err := msg.Render("https://vigil.test")
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, errors.Cause(err))
				assert.False(t, msg.HasContent())
				return
			}
			require.NoError(t, err)
			assert.True(t, msg.HasContent())
			for _, want := range tt.wantText {
				assert.Contains(t, msg.TextContent, want)
			}
			for _, want := range tt.wantHTML {
				assert.Contains(t, msg.HTMLContent, want)
			}
		})
	}
}
