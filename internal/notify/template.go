package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"mime"
	"strings"
	"time"

	"github.com/google/uuid"
)

const resetSubject = "Password Recovery - Login API"

var resetTemplate = template.Must(template.New("reset").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>Password Recovery</title>
</head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
  <div style="background-color: #007bff; color: white; padding: 20px; text-align: center;">
    <h1>Password Recovery</h1>
  </div>
  <div style="background-color: #f8f9fa; padding: 20px;">
    <p>Hello,</p>
    <p>Your password recovery request was processed successfully.</p>
    <p><strong>Your new temporary password is:</strong></p>
    <div style="border: 2px solid #007bff; padding: 15px; text-align: center; font-size: 18px; font-weight: bold;">{{.Secret}}</div>
    <ul>
      <li>This is a temporary password.</li>
      <li>Change it after you sign in.</li>
    </ul>
    <p>If you did not request this, ignore this email.</p>
  </div>
  <p style="text-align: center; color: #6c757d; font-size: 12px;">This is an automated message sent at {{.SentAt}}. Do not reply.</p>
</body>
</html>
`))

type resetView struct {
	Secret string
	SentAt string
}

// renderResetEmail builds a complete RFC 5322 message with an HTML body.
func renderResetEmail(from, to, secret string, now time.Time) ([]byte, error) {
	var body bytes.Buffer
	if err := resetTemplate.Execute(&body, resetView{
		Secret: secret,
		SentAt: now.UTC().Format(time.RFC1123Z),
	}); err != nil {
		return nil, err
	}

	var msg bytes.Buffer
	headers := [][2]string{
		{"From", from},
		{"To", to},
		{"Subject", mime.QEncoding.Encode("utf-8", resetSubject)},
		{"Date", now.UTC().Format(time.RFC1123Z)},
		{"Message-ID", fmt.Sprintf("<%s@%s>", uuid.NewString(), domainOf(from))},
		{"MIME-Version", "1.0"},
		{"Content-Type", `text/html; charset="utf-8"`},
	}
	for _, h := range headers {
		fmt.Fprintf(&msg, "%s: %s\r\n", h[0], h[1])
	}
	msg.WriteString("\r\n")
	msg.WriteString(strings.ReplaceAll(body.String(), "\n", "\r\n"))

	return msg.Bytes(), nil
}

func domainOf(address string) string {
	if at := strings.LastIndex(address, "@"); at >= 0 && at < len(address)-1 {
		return address[at+1:]
	}
	return "localhost"
}
