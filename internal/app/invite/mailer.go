package invite

import (
	"bytes"
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/wneessen/go-mail"
)

type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

type Message struct {
	From       string
	To         []string
	Subject    string
	HTMLBody   string
	Attachment *Attachment
}

type DeliveryResult struct {
	MessageID  string
	Recipients []string
}

// Mailer dispatches a composed message. Implementations must be safe for
// concurrent use.
type Mailer interface {
	Send(ctx context.Context, msg Message) (DeliveryResult, error)
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
}

// SMTPMailer delivers over SMTP with go-mail. TLS is opportunistic so local
// relays without STARTTLS still work.
type SMTPMailer struct {
	client *mail.Client
	host   string
	newID  func() string
}

func NewSMTPMailer(cfg SMTPConfig) (*SMTPMailer, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return &SMTPMailer{client: client, host: cfg.Host, newID: uuid.NewString}, nil
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) (DeliveryResult, error) {
	out := mail.NewMsg()
	if err := out.From(msg.From); err != nil {
		return DeliveryResult{}, fmt.Errorf("from address: %w", err)
	}
	if err := out.To(msg.To...); err != nil {
		return DeliveryResult{}, fmt.Errorf("to addresses: %w", err)
	}
	out.Subject(msg.Subject)
	out.SetBodyString(mail.TypeTextHTML, msg.HTMLBody)

	if msg.Attachment != nil {
		err := out.AttachReader(msg.Attachment.Filename,
			bytes.NewReader(msg.Attachment.Content),
			mail.WithFileContentType(mail.ContentType(msg.Attachment.ContentType)))
		if err != nil {
			return DeliveryResult{}, fmt.Errorf("attach %s: %w", msg.Attachment.Filename, err)
		}
	}

	id := fmt.Sprintf("%s@%s", m.newID(), m.host)
	out.SetMessageIDWithValue(id)

	if err := m.client.DialAndSendWithContext(ctx, out); err != nil {
		return DeliveryResult{}, err
	}
	return DeliveryResult{MessageID: id, Recipients: msg.To}, nil
}
