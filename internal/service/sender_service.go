package service

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// SenderService dispatches verification pins. Sends are fire-and-forget from
// the caller's point of view: a failed delivery is logged, never surfaced as
// a registration failure.
type SenderService struct{}

func NewSenderService() *SenderService {
	return &SenderService{}
}

func (s *SenderService) SendVerificationEmail(toEmail, toName, pin string) {
	subject := "Your ParkSpot verification code"
	plainBody := fmt.Sprintf(
		"Hello %s,\n\nYour ParkSpot verification code is: %s\n\n"+
			"The code expires in 10 minutes. If you did not request it, you can ignore this email.\n",
		toName, pin,
	)
	htmlBody := fmt.Sprintf(
		"<p>Hello %s,</p><p>Your ParkSpot verification code is: <strong>%s</strong></p>"+
			"<p>The code expires in 10 minutes. If you did not request it, you can ignore this email.</p>",
		toName, pin,
	)

	go func() {
		if err := sendEmailWithSendGrid(toEmail, toName, subject, plainBody, htmlBody); err != nil {
			log.Printf("WARNING: failed to send verification email to %s: %v", toEmail, err)
		}
	}()
}

func (s *SenderService) SendVerificationSMS(toNumber, pin string) {
	message := fmt.Sprintf("ParkSpot verification code: %s (expires in 10 minutes)", pin)
	go func() {
		if err := sendSMS(toNumber, message); err != nil {
			log.Printf("WARNING: failed to send verification SMS to %s: %v", toNumber, err)
		}
	}()
}

func sendEmailWithSendGrid(toEmailAddress, toName, subject, plainTextContent, htmlContent string) error {
	sendgridAPIKey := os.Getenv("SENDGRID_API_KEY")
	if sendgridAPIKey == "" {
		return fmt.Errorf("SENDGRID_API_KEY is not configured")
	}
	fromEmail := os.Getenv("SENDGRID_FROM_EMAIL")
	if fromEmail == "" {
		return fmt.Errorf("SENDGRID_FROM_EMAIL is not configured")
	}
	fromName := os.Getenv("SENDGRID_FROM_NAME")
	if fromName == "" {
		fromName = "ParkSpot"
	}

	from := mail.NewEmail(fromName, fromEmail)
	to := mail.NewEmail(toName, toEmailAddress)
	message := mail.NewSingleEmail(from, subject, to, plainTextContent, htmlContent)

	client := sendgrid.NewSendClient(sendgridAPIKey)
	response, err := client.Send(message)
	if err != nil {
		return fmt.Errorf("sendgrid send failed: %w", err)
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return fmt.Errorf("sendgrid returned status %d: %s", response.StatusCode, response.Body)
	}

	log.Printf("Verification email sent to %s (status %d)", toEmailAddress, response.StatusCode)
	return nil
}

func sendSMS(toNumber, messageBody string) error {
	accountSid := os.Getenv("TWILIO_ACCOUNT_SID")
	authToken := os.Getenv("TWILIO_AUTH_TOKEN")
	fromNumber := os.Getenv("TWILIO_FROM_NUMBER")
	if accountSid == "" || authToken == "" || fromNumber == "" {
		return fmt.Errorf("twilio credentials are not fully configured")
	}

	if !strings.HasPrefix(toNumber, "+") {
		log.Printf("WARNING: destination number %q is not in E.164 format, SMS may fail", toNumber)
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username:   accountSid,
		Password:   authToken,
		AccountSid: accountSid,
	})

	params := &openapi.CreateMessageParams{}
	params.SetTo(toNumber)
	params.SetFrom(fromNumber)
	params.SetBody(messageBody)

	resp, err := client.Api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("twilio send failed: %w", err)
	}
	if resp != nil && resp.Sid != nil {
		log.Printf("Verification SMS sent to %s (sid %s)", toNumber, *resp.Sid)
	}
	return nil
}
