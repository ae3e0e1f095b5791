package core

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/cyberkey/cyberkey-backend/internal/models"
	"github.com/cyberkey/cyberkey-backend/pkg/mailer"
)

const (
	testEmailSubject = "CyberKey - Test Email"
	testEmailText    = "This is a test email from CyberKey to verify your SMTP settings."
)

var templateFuncs = template.FuncMap{
	"ipOrUnknown": func(ip string) string {
		if ip == "" {
			return "Unknown"
		}
		return ip
	},
	"formatTime": func(t time.Time) string {
		return t.UTC().Format(time.RFC1123)
	},
	"formatDate": func(t time.Time) string {
		return t.UTC().Format("January 2, 2006")
	},
}

var securityAlertTemplate = template.Must(template.New("security_alert").Funcs(templateFuncs).Parse(`
<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <div style="background-color: #f8f9fa; padding: 20px; border-radius: 5px;">
    <h1 style="color: #dc3545; margin-bottom: 20px;">Security Alert: {{.Alert.Type}}</h1>
    <p style="color: #343a40; font-size: 16px; line-height: 1.5;">
      We've detected suspicious activity on your CyberKey account. Please review the details below:
    </p>
    <div style="background-color: white; padding: 15px; border-radius: 5px; margin: 20px 0;">
      <h2 style="color: #495057; font-size: 18px;">Activity Details</h2>
      <p>Severity: <strong>{{.Alert.Severity}}</strong></p>
      <ul style="list-style: none; padding: 0;">
        {{- range .Alert.Details.RecentActivities}}
        <li style="margin-bottom: 10px;">
          <strong>{{.Type}}</strong><br>
          IP: {{ipOrUnknown .IPAddress}}<br>
          Time: {{formatTime .Timestamp}}
        </li>
        {{- end}}
      </ul>
    </div>
    <p style="color: #6c757d; margin-top: 20px;">
      If you don't recognize this activity, please secure your account immediately by:
    </p>
    <ol style="margin-top: 10px;">
      <li>Changing your password</li>
      <li>Reviewing your API keys</li>
      <li>Enabling two-factor authentication if not already enabled</li>
    </ol>
    <div style="margin-top: 30px; text-align: center;">
      <a href="{{.SecurityURL}}"
         style="background-color: #0d6efd; color: white; padding: 10px 20px; text-decoration: none; border-radius: 5px;">
        View Security Dashboard
      </a>
    </div>
  </div>
</div>
`))

var expirationTemplate = template.Must(template.New("expiration").Funcs(templateFuncs).Parse(`
<h2>API Key Expiration Notice</h2>
<p>Your API key "{{.Key.Name}}" will expire in {{.Days}} days.</p>
<p><strong>Key Details:</strong></p>
<ul>
  <li>Name: {{.Key.Name}}</li>
  <li>Provider: {{.Key.ProviderName}}</li>
  <li>Expiration Date: {{formatDate .ExpiresAt}}</li>
</ul>
<p>Please create a new API key before the expiration date to ensure uninterrupted service.</p>
`))

var testEmailTemplate = template.Must(template.New("test").Parse(`
<h1>CyberKey - Test Email</h1>
<p>This is a test email from CyberKey to verify your SMTP settings.</p>
<p>If you received this email, your SMTP settings are configured correctly!</p>
`))

func render(t *template.Template, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render %s email: %w", t.Name(), err)
	}
	return buf.String(), nil
}

func securityAlertEmail(to string, alert *models.SecurityAlert, appURL string) (mailer.Message, error) {
	html, err := render(securityAlertTemplate, struct {
		Alert       *models.SecurityAlert
		SecurityURL string
	}{alert, strings.TrimRight(appURL, "/") + "/security"})
	if err != nil {
		return mailer.Message{}, err
	}
	return mailer.Message{
		To:      to,
		Subject: "CyberKey Security Alert: " + alert.Type,
		HTML:    html,
	}, nil
}

func expirationEmail(to string, key *models.APIKey, days int) (mailer.Message, error) {
	html, err := render(expirationTemplate, struct {
		Key       *models.APIKey
		Days      int
		ExpiresAt time.Time
	}{key, days, *key.ExpiresAt})
	if err != nil {
		return mailer.Message{}, err
	}
	return mailer.Message{
		To:      to,
		Subject: fmt.Sprintf(`API Key "%s" Expiring Soon`, key.Name),
		HTML:    html,
		Text:    fmt.Sprintf(`Your API key "%s" will expire in %d days.`, key.Name, days),
	}, nil
}

func testEmail(to string) (mailer.Message, error) {
	html, err := render(testEmailTemplate, nil)
	if err != nil {
		return mailer.Message{}, err
	}
	return mailer.Message{To: to, Subject: testEmailSubject, Text: testEmailText, HTML: html}, nil
}

// toMailerSettings converts stored settings into transport settings.
func toMailerSettings(s models.SMTPSettings) mailer.SMTPSettings {
	return mailer.SMTPSettings{
		Host:      s.Host,
		Port:      s.Port,
		Secure:    s.Secure,
		Username:  s.Username,
		Password:  s.Password,
		FromEmail: s.FromEmail,
	}
}
