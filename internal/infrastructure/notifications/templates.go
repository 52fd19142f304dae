package notifications

import (
	"bytes"
	"fmt"
	"html/template"
)

var layout = template.Must(template.New("email").Parse(`<!DOCTYPE html>
<html><body style="font-family:Arial,sans-serif;color:#1f2933">
<h2>{{.Heading}}</h2>
<p>{{.Body}}</p>
{{if .Link}}<p><a href="{{.Link}}" style="background:#1d4ed8;color:#fff;padding:10px 18px;border-radius:4px;text-decoration:none">{{.Action}}</a></p>{{end}}
<p style="font-size:12px;color:#6b7280">MC Market</p>
</body></html>`))

// Email is the data rendered into the shared HTML layout
type Email struct {
	Heading string
	Body    string
	Action  string
	Link    string
}

// Render produces the HTML body; values are escaped
func Render(e Email) (string, error) {
	var buf bytes.Buffer
	if err := layout.Execute(&buf, e); err != nil {
		return "", fmt.Errorf("render email: %w", err)
	}
	return buf.String(), nil
}

func VerificationEmail(link string) Email {
	return Email{
		Heading: "Confirm your email",
		Body:    "Welcome to MC Market. Confirm your email address to start browsing authorities.",
		Action:  "Verify email",
		Link:    link,
	}
}

func PasswordResetEmail(link string) Email {
	return Email{
		Heading: "Reset your password",
		Body:    "We received a request to reset your password. The link expires soon; ignore this email if you did not ask for it.",
		Action:  "Reset password",
		Link:    link,
	}
}
