// Package mailer sends transactional email through the Mailtrap send API.
// Delivery is best-effort: callers dispatch sends in the background and log
// failures instead of surfacing them.
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

type MailtrapClient struct {
	apiToken string
	baseURL  string
	from     Address
	client   *http.Client
}

type Message struct {
	From    Address   `json:"from"`
	To      []Address `json:"to"`
	Subject string    `json:"subject"`
	Text    string    `json:"text,omitempty"`
	HTML    string    `json:"html,omitempty"`
}

type Address struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

func NewMailtrapClient(apiToken, fromEmail string) *MailtrapClient {
	return &MailtrapClient{
		apiToken: apiToken,
		baseURL:  "https://send.api.mailtrap.io/api/send",
		from:     Address{Email: fromEmail, Name: "Contact Book"},
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SendConfirmationEmail sends the address-confirmation message with a link
// built from the service's public base URL and the email-scoped token.
func (m *MailtrapClient) SendConfirmationEmail(ctx context.Context, toEmail, toName, token, baseURL string) error {
	confirmURL := fmt.Sprintf("%s/api/auth/confirmed_email/%s", baseURL, token)

	htmlContent := fmt.Sprintf(`
		<h2>Confirm your email</h2>
		<p>Hello %s,</p>
		<p>Please click the link below to confirm your email address:</p>
		<p><a href="%s">Confirm email</a></p>
		<p>Or copy and paste this URL in your browser:</p>
		<p>%s</p>
		<p>If you didn't create an account, please ignore this email.</p>
	`, toName, confirmURL, confirmURL)

	textContent := fmt.Sprintf(`
		Confirm your email

		Hello %s,

		Please open this URL in your browser to confirm your email address:
		%s

		If you didn't create an account, please ignore this email.
	`, toName, confirmURL)

	message := Message{
		From:    m.from,
		To:      []Address{{Email: toEmail, Name: toName}},
		Subject: "Confirm your email",
		HTML:    htmlContent,
		Text:    textContent,
	}

	jsonData, err := json.Marshal(struct {
		Message Message `json:"message"`
	}{Message: message})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiToken)

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func(body io.ReadCloser) {
		_ = body.Close()
	}(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mailtrap API returned status %d", resp.StatusCode)
	}

	return nil
}
