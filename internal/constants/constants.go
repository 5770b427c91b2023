// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

import "time"

// Face matching constants
const (
	// DefaultMatchThreshold is the maximum Euclidean distance between a live capture
	// and a stored encoding for the two to be treated as the same person.
	// The comparison is strict: a distance equal to the threshold is not a match.
	DefaultMatchThreshold = 0.45

	// DefaultMaxImageSize is the maximum dimension (width or height) of a frame sent to the extractor
	DefaultMaxImageSize = 1280
)

// Mail constants
const (
	// MailPageSize is the number of messages fetched per listing
	MailPageSize = 20

	// NoContentPlaceholder is rendered when a message has neither an HTML nor a plain-text part
	NoContentPlaceholder = "No content found"

	// NoSubjectPlaceholder is shown for sent messages without a subject
	NoSubjectPlaceholder = "(no subject)"

	// UnknownRecipient is shown for sent messages without a To header
	UnknownRecipient = "Unknown"

	// ReplySubjectPrefix is prepended to the subject of replies
	ReplySubjectPrefix = "Re: "
)

// Session constants
const (
	// SessionCleanupInterval is how often expired sessions are purged
	SessionCleanupInterval = time.Hour

	// OAuthStateBytes is the number of random bytes in an authorization-flow nonce
	OAuthStateBytes = 24
)

// Request limits
const (
	// MaxFrameBodySize bounds the JSON body of face capture requests (10MB)
	MaxFrameBodySize = 10 << 20

	// MaxFramePixels bounds the decoded size of a capture (width * height)
	MaxFramePixels = 40_000_000

	// MaxMailBodySize bounds the JSON body of send and reply requests (1MB)
	MaxMailBodySize = 1 << 20
)
