package gmail

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/kozaktomas/face-inbox/internal/constants"
	gm "google.golang.org/api/gmail/v1"
)

// headersOf copies a Gmail payload's headers into a mail.Header so the
// go-message accessors (decoded subject, parsed date, message id) apply.
func headersOf(payload *gm.MessagePart) mail.Header {
	var h mail.Header
	if payload == nil {
		return h
	}
	for _, kv := range payload.Headers {
		h.Add(kv.Name, kv.Value)
	}
	return h
}

// subjectOf returns the decoded Subject, falling back to the raw value.
func subjectOf(h mail.Header) string {
	if s, err := h.Subject(); err == nil {
		return s
	}
	return h.Get("Subject")
}

// formatDate renders the Date header with layout, or "" when absent or unparsable.
func formatDate(h mail.Header, layout string) string {
	if h.Get("Date") == "" {
		return ""
	}
	t, err := h.Date()
	if err != nil || t.IsZero() {
		return ""
	}
	return t.Format(layout)
}

// replySubject prefixes "Re: " to the original subject, even one that already starts with it.
func replySubject(subject string) string {
	return constants.ReplySubjectPrefix + subject
}

// validRecipients accepts a single-line RFC 5322 address list.
func validRecipients(to string) error {
	if strings.ContainsAny(to, "\r\n") {
		return ErrInvalidRecipient
	}
	addrs, err := mail.ParseAddressList(to)
	if err != nil || len(addrs) == 0 {
		return ErrInvalidRecipient
	}
	return nil
}

// outgoing describes a plain-text message to submit.
type outgoing struct {
	To        string
	Subject   string
	Body      string
	InReplyTo string // Message-ID being answered, without angle brackets
}

// compose renders an RFC 5322 message and returns it base64url-encoded for the raw field.
func compose(m outgoing, now time.Time) (string, error) {
	var h mail.Header
	h.SetDate(now)
	h.SetSubject(m.Subject)
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})

	if addrs, err := mail.ParseAddressList(m.To); err == nil && len(addrs) > 0 {
		h.SetAddressList("To", addrs)
	} else {
		h.Set("To", m.To)
	}

	if m.InReplyTo != "" {
		h.SetMsgIDList("In-Reply-To", []string{m.InReplyTo})
		h.SetMsgIDList("References", []string{m.InReplyTo})
	}

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return "", fmt.Errorf("create message writer: %w", err)
	}
	if _, err := io.WriteString(w, m.Body); err != nil {
		return "", fmt.Errorf("write message body: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close message writer: %w", err)
	}

	return base64.URLEncoding.EncodeToString(buf.Bytes()), nil
}
