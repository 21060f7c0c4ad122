package notifier

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"contact-intake-go/config"
	"contact-intake-go/internal/model"
)

const senderName = "Formulaire de contact"

// GmailNotifier emails each message to the site owner through the Gmail API
type GmailNotifier struct {
	service   *gmail.Service
	sender    string
	recipient string
	now       func() time.Time
}

// NewGmailNotifier creates a notifier authenticated with an OAuth2 refresh token
func NewGmailNotifier(cfg config.NotifierConfig) (*GmailNotifier, error) {
	ctx := context.Background()

	oauth2Config := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Scopes:       []string{gmail.GmailSendScope},
		Endpoint:     google.Endpoint,
	}
	tokenSource := oauth2Config.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})

	service, err := gmail.NewService(ctx, option.WithTokenSource(tokenSource))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}

	return NewGmailNotifierWithService(service, cfg.Sender, cfg.Recipient), nil
}

// NewGmailNotifierWithService uses an already configured Gmail service
func NewGmailNotifierWithService(service *gmail.Service, sender, recipient string) *GmailNotifier {
	return &GmailNotifier{
		service:   service,
		sender:    sender,
		recipient: recipient,
		now:       time.Now,
	}
}

// Send composes the notification and makes a single send attempt
func (g *GmailNotifier) Send(ctx context.Context, msg model.ContactMessage) Result {
	raw, err := g.compose(msg)
	if err != nil {
		return Failed(fmt.Errorf("failed to compose notification: %w", err))
	}

	message := &gmail.Message{Raw: base64.URLEncoding.EncodeToString(raw)}
	sent, err := g.service.Users.Messages.Send("me", message).Context(ctx).Do()
	if err != nil {
		return Failed(fmt.Errorf("failed to send notification for %s: %w", msg.ID, err))
	}

	logrus.Infof("Notification for contact message %s sent (gmail id %s)", msg.ID, sent.Id)
	return Succeeded()
}

func (g *GmailNotifier) compose(msg model.ContactMessage) ([]byte, error) {
	var h mail.Header
	h.SetDate(g.now())
	h.SetAddressList("From", []*mail.Address{{Name: senderName, Address: g.sender}})
	h.SetAddressList("To", []*mail.Address{{Address: g.recipient}})
	h.SetAddressList("Reply-To", []*mail.Address{{Name: msg.Name, Address: msg.Email}})
	h.SetSubject(notificationSubject(msg))
	h.Set("X-Contact-Message-Id", msg.ID)
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	h.Set("Content-Transfer-Encoding", "quoted-printable")

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, err
	}
	if _, err := io.WriteString(w, notificationBody(msg)); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func notificationSubject(msg model.ContactMessage) string {
	if msg.Subject != "" {
		return "[Contact] " + msg.Subject
	}
	return "[Contact] Nouveau message de " + msg.Name
}

func notificationBody(msg model.ContactMessage) string {
	var b strings.Builder
	b.WriteString("Nouveau message reçu via le formulaire de contact.\r\n\r\n")
	fmt.Fprintf(&b, "Nom : %s\r\n", msg.Name)
	fmt.Fprintf(&b, "Email : %s\r\n", msg.Email)
	if msg.Subject != "" {
		fmt.Fprintf(&b, "Sujet : %s\r\n", msg.Subject)
	}
	if msg.IP != "" {
		fmt.Fprintf(&b, "IP : %s\r\n", msg.IP)
	}
	if msg.Country != "" {
		fmt.Fprintf(&b, "Pays : %s\r\n", msg.Country)
	}
	fmt.Fprintf(&b, "Score spam : %d/100\r\n", msg.SpamScore)
	fmt.Fprintf(&b, "Reçu le : %s\r\n", msg.CreatedAt.Format(time.RFC3339))
	b.WriteString("\r\nMessage :\r\n")
	b.WriteString(msg.Message)
	b.WriteString("\r\n")
	return b.String()
}
