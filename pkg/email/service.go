package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"
)

const resendEndpoint = "https://api.resend.com/emails"

// EmailService handles sending emails via Resend API
type EmailService struct {
	apiKey    string
	fromEmail string
	endpoint  string
	client    *http.Client
}

// NewEmailService creates a new email service instance
func NewEmailService(apiKey, fromEmail string) *EmailService {
	return &EmailService{
		apiKey:    apiKey,
		fromEmail: fromEmail,
		endpoint:  resendEndpoint,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

// IsConfigured checks if the email service is properly configured
func (s *EmailService) IsConfigured() bool {
	return s != nil && s.apiKey != "" && s.fromEmail != ""
}

type sendEmailRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// SendEmail sends an email using Resend API
func (s *EmailService) SendEmail(ctx context.Context, to, subject, htmlBody string) error {
	if !s.IsConfigured() {
		return fmt.Errorf("email service not configured")
	}

	payload := sendEmailRequest{
		From:    s.fromEmail,
		To:      []string{to},
		Subject: subject,
		HTML:    htmlBody,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal email payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("email API returned status %d", resp.StatusCode)
	}

	return nil
}

// LowStockLine is one material listed in a low-stock alert
type LowStockLine struct {
	Material    string
	Unit        string
	Stock       float64
	Minimum     float64
	Recommended float64
}

// SendLowStockAlert mails the materials that fell below their minimum in a store
func (s *EmailService) SendLowStockAlert(ctx context.Context, toEmail, storeName, reportDate string, lines []LowStockLine) error {
	if len(lines) == 0 {
		return nil
	}

	var rows strings.Builder
	for _, l := range lines {
		fmt.Fprintf(&rows, `
                <tr>
                    <td style="padding: 8px; border-bottom: 1px solid #e5e7eb;">%s</td>
                    <td style="padding: 8px; border-bottom: 1px solid #e5e7eb; text-align: right;">%g %s</td>
                    <td style="padding: 8px; border-bottom: 1px solid #e5e7eb; text-align: right;">%g</td>
                    <td style="padding: 8px; border-bottom: 1px solid #e5e7eb; text-align: right;"><strong>%g</strong></td>
                </tr>`, html.EscapeString(l.Material), l.Stock, html.EscapeString(l.Unit), l.Minimum, l.Recommended)
	}

	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; margin: 0; padding: 0; background-color: #f5f5f5;">
    <div style="max-width: 600px; margin: 0 auto; padding: 40px 20px;">
        <div style="background: #b45309; border-radius: 16px 16px 0 0; padding: 32px; text-align: center;">
            <h1 style="color: white; margin: 0; font-size: 24px;">Low stock at %s</h1>
        </div>
        <div style="background: white; padding: 32px; border-radius: 0 0 16px 16px; box-shadow: 0 4px 6px rgba(0,0,0,0.1);">
            <p style="color: #374151; font-size: 16px; margin-bottom: 24px;">
                The daily report for <strong>%s</strong> lists %d material(s) below minimum stock.
            </p>
            <table style="width: 100%%; border-collapse: collapse; color: #374151; font-size: 14px;">
                <tr>
                    <th style="padding: 8px; text-align: left;">Material</th>
                    <th style="padding: 8px; text-align: right;">Stock</th>
                    <th style="padding: 8px; text-align: right;">Minimum</th>
                    <th style="padding: 8px; text-align: right;">Order</th>
                </tr>%s
            </table>
        </div>
    </div>
</body>
</html>
`, html.EscapeString(storeName), reportDate, len(lines), rows.String())

	subject := fmt.Sprintf("[Zaiko] %d low stock item(s) at %s", len(lines), storeName)
	return s.SendEmail(ctx, toEmail, subject, htmlBody)
}
