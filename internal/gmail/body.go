package gmail

import (
	"encoding/base64"
	"fmt"
	"html"
	"mime"
	"strings"

	"github.com/kozaktomas/face-inbox/internal/constants"
	"golang.org/x/text/encoding/htmlindex"
	gm "google.golang.org/api/gmail/v1"
)

// BodyParts is the first HTML and first plain-text content found in a payload.
type BodyParts struct {
	HTML string
	Text string
}

// ExtractBody walks a payload depth-first and keeps the first HTML part and
// the first plain-text part. Later parts of the same type are ignored.
func ExtractBody(payload *gm.MessagePart) BodyParts {
	var found BodyParts
	walkParts(payload, &found)
	return found
}

func walkParts(part *gm.MessagePart, found *BodyParts) {
	if part == nil || (found.HTML != "" && found.Text != "") {
		return
	}

	if part.Body != nil && part.Body.Data != "" {
		mediaType, charset := partContentType(part)
		switch mediaType {
		case "text/html":
			if found.HTML == "" {
				found.HTML = decodePartData(part.Body.Data, charset)
			}
		case "text/plain":
			if found.Text == "" {
				found.Text = decodePartData(part.Body.Data, charset)
			}
		}
	}

	for _, child := range part.Parts {
		walkParts(child, found)
	}
}

// Render returns the display body: HTML verbatim, else the escaped text in
// <pre>, else the placeholder.
func (b BodyParts) Render() string {
	switch {
	case b.HTML != "":
		return b.HTML
	case b.Text != "":
		return "<pre>" + html.EscapeString(b.Text) + "</pre>"
	default:
		return constants.NoContentPlaceholder
	}
}

// partContentType returns the lower-cased media type and charset of a part.
func partContentType(part *gm.MessagePart) (string, string) {
	mediaType := strings.ToLower(part.MimeType)
	charset := ""
	for _, h := range part.Headers {
		if !strings.EqualFold(h.Name, "Content-Type") {
			continue
		}
		if mt, params, err := mime.ParseMediaType(h.Value); err == nil {
			if mediaType == "" {
				mediaType = mt
			}
			charset = params["charset"]
		}
		break
	}
	return mediaType, charset
}

// decodePartData decodes Gmail's base64url body data and converts it to UTF-8.
// Undecodable input yields an empty string.
func decodePartData(data, charset string) string {
	raw, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		raw, err = base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "="))
		if err != nil {
			return ""
		}
	}

	text, err := toUTF8(raw, charset)
	if err != nil {
		return strings.ToValidUTF8(string(raw), "")
	}
	return text
}

func toUTF8(raw []byte, charset string) (string, error) {
	charset = strings.ToLower(strings.TrimSpace(charset))
	if charset == "" || charset == "utf-8" || charset == "utf8" || charset == "us-ascii" {
		return strings.ToValidUTF8(string(raw), ""), nil
	}

	enc, err := htmlindex.Get(charset)
	if err != nil {
		return "", fmt.Errorf("unknown charset %q: %w", charset, err)
	}
	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", charset, err)
	}
	return string(out), nil
}
