package gmail

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kozaktomas/face-inbox/internal/constants"
	"golang.org/x/oauth2"
	gm "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

const me = "me"

var metadataHeaders = []string{"From", "To", "Subject", "Date", "Message-ID"}

// Factory builds per-user bridges. Extra client options (endpoint, HTTP
// client) are appended to every service it creates.
type Factory struct {
	settings Settings
	opts     []option.ClientOption
}

// NewFactory creates a factory, filling zero settings with defaults.
func NewFactory(settings Settings, opts ...option.ClientOption) *Factory {
	if settings.InboxLabel == "" {
		settings.InboxLabel = "INBOX"
	}
	if settings.SentLabel == "" {
		settings.SentLabel = "SENT"
	}
	if settings.PageSize <= 0 {
		settings.PageSize = constants.MailPageSize
	}
	if settings.DateLayout == "" {
		settings.DateLayout = "02 Jan 15:04"
	}
	return &Factory{settings: settings, opts: opts}
}

// New returns a bridge authorised by ts.
func (f *Factory) New(ctx context.Context, ts oauth2.TokenSource) (*Bridge, error) {
	opts := append([]option.ClientOption{option.WithTokenSource(ts)}, f.opts...)
	svc, err := gm.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}
	return &Bridge{svc: svc, settings: f.settings, now: time.Now}, nil
}

// ProfileEmail returns the mailbox address the token belongs to.
func (f *Factory) ProfileEmail(ctx context.Context, ts oauth2.TokenSource) (string, error) {
	b, err := f.New(ctx, ts)
	if err != nil {
		return "", err
	}
	profile, err := b.svc.Users.GetProfile(me).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("get profile: %w", err)
	}
	return profile.EmailAddress, nil
}

// Bridge performs mailbox operations for one user.
type Bridge struct {
	svc      *gm.Service
	settings Settings
	now      func() time.Time
}

// ListInbox returns the newest inbox messages, sender as peer.
func (b *Bridge) ListInbox(ctx context.Context) ([]MessageSummary, error) {
	return b.list(ctx, b.settings.InboxLabel, "From")
}

// ListSent returns the newest sent messages, recipient as peer.
func (b *Bridge) ListSent(ctx context.Context) ([]MessageSummary, error) {
	return b.list(ctx, b.settings.SentLabel, "To")
}

// list fetches one page of ids, then the metadata of each id in turn.
func (b *Bridge) list(ctx context.Context, label, peerHeader string) ([]MessageSummary, error) {
	resp, err := b.svc.Users.Messages.List(me).
		LabelIds(label).
		MaxResults(int64(b.settings.PageSize)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", label, err)
	}

	summaries := make([]MessageSummary, 0, len(resp.Messages))
	for _, ref := range resp.Messages {
		msg, err := b.svc.Users.Messages.Get(me, ref.Id).
			Format("metadata").
			MetadataHeaders(metadataHeaders...).
			Context(ctx).
			Do()
		if err != nil {
			return nil, fmt.Errorf("get metadata %s: %w", ref.Id, err)
		}

		h := headersOf(msg.Payload)
		subject := subjectOf(h)
		if strings.TrimSpace(subject) == "" {
			subject = constants.NoSubjectPlaceholder
		}
		peer := h.Get(peerHeader)
		if peer == "" {
			peer = constants.UnknownRecipient
		}

		summaries = append(summaries, MessageSummary{
			ID:       msg.Id,
			ThreadID: msg.ThreadId,
			Subject:  subject,
			Peer:     peer,
			Date:     formatDate(h, b.settings.DateLayout),
		})
	}
	return summaries, nil
}

// Open fetches a full message and extracts its display body.
func (b *Bridge) Open(ctx context.Context, id string) (*Message, error) {
	msg, err := b.svc.Users.Messages.Get(me, id).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("get message %s: %w", id, err)
	}

	h := headersOf(msg.Payload)
	body := ExtractBody(msg.Payload).Render()

	return &Message{
		ID:       msg.Id,
		ThreadID: msg.ThreadId,
		Subject:  subjectOf(h),
		From:     h.Get("From"),
		To:       h.Get("To"),
		Date:     formatDate(h, b.settings.DateLayout),
		Body:     body,
		Text:     PlainText(body),
	}, nil
}

// Send submits a new plain-text message.
func (b *Bridge) Send(ctx context.Context, to, subject, body string) (string, error) {
	if strings.TrimSpace(to) == "" || strings.TrimSpace(body) == "" {
		return "", ErrMissingFields
	}
	if err := validRecipients(to); err != nil {
		return "", err
	}

	raw, err := compose(outgoing{To: to, Subject: subject, Body: body}, b.now())
	if err != nil {
		return "", err
	}

	sent, err := b.svc.Users.Messages.Send(me, &gm.Message{Raw: raw}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("send message: %w", err)
	}
	return sent.Id, nil
}

// Reply answers messageID in threadID. The reply goes to the original sender
// and references the original Message-ID header, or the provider id when
// the header is missing.
func (b *Bridge) Reply(ctx context.Context, messageID, threadID, text string) (string, error) {
	if strings.TrimSpace(messageID) == "" || strings.TrimSpace(text) == "" {
		return "", ErrMissingFields
	}

	original, err := b.svc.Users.Messages.Get(me, messageID).
		Format("metadata").
		MetadataHeaders("Subject", "From", "Message-ID").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("get original %s: %w", messageID, err)
	}

	h := headersOf(original.Payload)
	ref, err := h.MessageID()
	if err != nil || ref == "" {
		ref = messageID
	}
	if threadID == "" {
		threadID = original.ThreadId
	}

	raw, err := compose(outgoing{
		To:        h.Get("From"),
		Subject:   replySubject(subjectOf(h)),
		Body:      text,
		InReplyTo: ref,
	}, b.now())
	if err != nil {
		return "", err
	}

	sent, err := b.svc.Users.Messages.Send(me, &gm.Message{Raw: raw, ThreadId: threadID}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("send reply: %w", err)
	}
	return sent.Id, nil
}
