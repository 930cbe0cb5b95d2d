package emailsvc

import (
	"net/mail"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/vigil/core"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

var testConf = &core.Config{
	AppName:         "Vigil",
	FrontendBaseURL: "http://localhost:3000",
	Email: core.EmailConfig{
		DefaultFromEmail: mail.Address{Name: "Vigil", Address: "noreply@vigil.test"},
	},
}

func TestConsoleServiceMock_SendMessages(t *testing.T) {
	svc := NewConsoleServiceMock(testConf, nopLogger{})
	to := []mail.Address{{Name: "Jo", Address: "jo@vigil.test"}}

	svc.SendMessages(
		&core.EmailMessage{To: to, Subject: "hello", BodyStr: "hi there"},
		&core.EmailMessage{Subject: "no recipient", BodyStr: "lost"},
		&core.EmailMessage{To: to, Subject: "no content"},
	)

	sent := svc.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "hello", sent[0].Subject)
	assert.Equal(t, "hi there", sent[0].TextContent)

	svc.Reset()
	assert.Empty(t, svc.SentMessages())
}

func TestConsoleService_format(t *testing.T) {
	svc := consoleService{defaultFromEmail: testConf.Email.DefaultFromEmail, subjPrefix: "[Vigil] "}
	body, err := svc.format(core.EmailMessage{
		To:          []mail.Address{{Address: "jo@vigil.test"}, {Address: "al@vigil.test"}},
		Subject:     "receipt",
		TextContent: "plain",
		HTMLContent: "<p>html</p>",
	})
	require.NoError(t, err)
	assert.Contains(t, body, "Subject: [Vigil] receipt\r\n")
	assert.Contains(t, body, "To: <jo@vigil.test>, <al@vigil.test>\r\n")
	assert.Contains(t, body, "Content-Type: text/plain")
	assert.Contains(t, body, "<p>html</p>")
}

func TestSendgridService_prepare(t *testing.T) {
	svc := NewSendgridService(testConf, nopLogger{}).(*sendgridService)
	m := svc.prepare(core.EmailMessage{
		To:          []mail.Address{{Name: "Jo", Address: "jo@vigil.test"}},
		Bcc:         []mail.Address{{Address: "audit@vigil.test"}},
		Subject:     "receipt",
		TextContent: "plain",
	})

	require.Len(t, m.Personalizations, 1)
	p := m.Personalizations[0]
	assert.Equal(t, "[Vigil] receipt", p.Subject)
	require.Len(t, p.To, 1)
	assert.Equal(t, "jo@vigil.test", p.To[0].Address)
	require.Len(t, p.BCC, 1)
	assert.Equal(t, "noreply@vigil.test", m.From.Address)
	require.Len(t, m.Content, 1)
	assert.Equal(t, "text/plain", m.Content[0].Type)
}
