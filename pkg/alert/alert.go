package alert

import (
	"errors"
	"fmt"
	"os"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

// EmailAlerter mails the operator when the two stores diverge. Divergence
// is already surfaced to the caller; the alert exists so an operator sees
// windows that no caller bothers to reconcile.
type EmailAlerter struct {
	client      *sendgrid.Client
	senderEmail string
	senderName  string
	opsEmail    string
	log         *zap.Logger
}

// NewEmailAlerter reads SENDGRID_API_KEY, SENDGRID_SENDER_EMAIL,
// SENDGRID_SENDER_NAME, and OPS_ALERT_EMAIL. Returns nil when alerting is
// not configured; callers treat a nil alerter as disabled.
func NewEmailAlerter(log *zap.Logger) *EmailAlerter {
	apiKey := os.Getenv("SENDGRID_API_KEY")
	opsEmail := os.Getenv("OPS_ALERT_EMAIL")
	if apiKey == "" || opsEmail == "" {
		return nil
	}
	return &EmailAlerter{
		client:      sendgrid.NewSendClient(apiKey),
		senderEmail: os.Getenv("SENDGRID_SENDER_EMAIL"),
		senderName:  os.Getenv("SENDGRID_SENDER_NAME"),
		opsEmail:    opsEmail,
		log:         log,
	}
}

// Divergence sends the alert best-effort; a failed send is logged and
// dropped, never propagated into the operation that detected the
// divergence.
func (a *EmailAlerter) Divergence(op string, listingID, assetID int64, cause error) {
	subject := fmt.Sprintf("[assetbay] divergence in %s (listing %d)", op, listingID)
	body := fmt.Sprintf(
		"Operation %s left the stores diverged.\n\nListing: %d\nAsset: %d\nCause: %v\n\n"+
			"A reconcile call for the listing will close the window.",
		op, listingID, assetID, cause)

	if err := a.send(subject, body); err != nil {
		a.log.Warn("divergence alert email failed",
			zap.String("op", op),
			zap.Int64("listing_id", listingID),
			zap.Error(err))
	}
}

func (a *EmailAlerter) send(subject, plainTextContent string) error {
	from := mail.NewEmail(a.senderName, a.senderEmail)
	to := mail.NewEmail("", a.opsEmail)
	message := mail.NewSingleEmail(from, subject, to, plainTextContent, "")
	response, err := a.client.Send(message)
	if err != nil {
		return err
	}
	if response.StatusCode >= 400 {
		return errors.New("failed to send email")
	}
	return nil
}
