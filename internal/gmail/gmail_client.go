package gmail

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/mail"
	"strings"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"fsm-intake/internal/logger"
	"fsm-intake/internal/model"
	"fsm-intake/internal/service"
)

var (
	ErrInvalidRecipient = errors.New("invalid reply recipient")
	ErrInvalidHeader    = errors.New("invalid header value")
)

type gmailClient struct {
	client *gmail.Service
	sender string
	logger *logger.Logger
}

// NewGmailClient authenticates with a bearer access token. sender is the
// Gmail user id to send as, usually "me".
func NewGmailClient(accessToken, sender string, logger *logger.Logger, opts ...option.ClientOption) (service.GmailClient, error) {
	httpClient := &http.Client{
		Transport: &oauth2Transport{token: accessToken},
	}

	opts = append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)
	gmailService, err := gmail.NewService(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}

	if sender == "" {
		sender = "me"
	}
	return &gmailClient{
		client: gmailService,
		sender: sender,
		logger: logger,
	}, nil
}

type oauth2Transport struct {
	token string
}

func (t *oauth2Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+t.token)
	return http.DefaultTransport.RoundTrip(req)
}

// SendReply sends a plain-text reply on the original thread.
func (g *gmailClient) SendReply(ctx context.Context, reply *model.OutgoingReply) (string, error) {
	raw, err := EncodeMessage(reply)
	if err != nil {
		return "", err
	}
	msg := &gmail.Message{
		Raw:      raw,
		ThreadId: reply.ThreadID,
	}

	sent, err := g.client.Users.Messages.Send(g.sender, msg).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to send reply to %s: %w", reply.To, err)
	}

	g.logger.Debugf("Gmail accepted reply %s for email %s", sent.Id, reply.EmailID)
	return sent.Id, nil
}

// EncodeMessage renders reply as an RFC 822 message in base64url, the form
// the Gmail send endpoint expects in Message.Raw. The recipient must be a
// single bare address.
func EncodeMessage(reply *model.OutgoingReply) (string, error) {
	to, err := recipient(reply.To)
	if err != nil {
		return "", err
	}
	if strings.ContainsAny(reply.EmailID, "\r\n") {
		return "", fmt.Errorf("%w: In-Reply-To %q", ErrInvalidHeader, reply.EmailID)
	}

	var b strings.Builder
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", reply.Subject) + "\r\n")
	if reply.EmailID != "" {
		b.WriteString("In-Reply-To: " + reply.EmailID + "\r\n")
	}
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(reply.Body)

	return base64.URLEncoding.EncodeToString([]byte(b.String())), nil
}

func recipient(to string) (string, error) {
	if strings.ContainsAny(to, "\r\n") {
		return "", fmt.Errorf("%w: %q", ErrInvalidRecipient, to)
	}
	addr, err := mail.ParseAddress(to)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrInvalidRecipient, to, err)
	}
	return (&mail.Address{Address: addr.Address}).String(), nil
}
