// Package gmail reads and sends mail through the Gmail REST API on behalf
// of a linked user.
package gmail

import "errors"

var (
	// ErrListExpired is returned when a cached listing cannot resolve an index.
	ErrListExpired = errors.New("message list expired")
	// ErrMissingFields is returned when a send or reply lacks a recipient or body.
	ErrMissingFields = errors.New("missing required fields")
	// ErrInvalidRecipient is returned when Send gets a To value that is not an address list.
	ErrInvalidRecipient = errors.New("invalid recipient")
)

// MessageSummary is one row of an inbox or sent listing.
// Peer is the sender for inbox rows and the recipient for sent rows.
type MessageSummary struct {
	ID       string `json:"id"`
	ThreadID string `json:"thread_id"`
	Subject  string `json:"subject"`
	Peer     string `json:"peer"`
	Date     string `json:"date,omitempty"`
}

// Message is a fully fetched message ready for display.
type Message struct {
	ID       string
	ThreadID string
	Subject  string
	From     string
	To       string
	Date     string
	Body     string // HTML, or escaped text wrapped in <pre>, or the placeholder
	Text     string // plain rendering of Body for read-aloud
}

// Settings controls listing behaviour.
type Settings struct {
	InboxLabel string
	SentLabel  string
	PageSize   int
	DateLayout string
}

// ResolveIndex returns the cached summary at index or ErrListExpired.
// The cache is trusted as-is; it is not revalidated against the mailbox.
func ResolveIndex(cached []MessageSummary, index int) (MessageSummary, error) {
	if index < 0 || index >= len(cached) {
		return MessageSummary{}, ErrListExpired
	}
	return cached[index], nil
}
