package classify

import (
	"fmt"
	"regexp"
	"strconv"

	"fetchbot/internal/domain"
)

// linkPattern is the internal post-link shape: https://t.me/<chat>/<message>.
// Anchored at the start so trailing text does not defeat recognition.
var linkPattern = regexp.MustCompile(`^https://t\.me/([\w\d_]+)/(\d+)`)

// DeepLink is a parsed internal post link.
type DeepLink struct {
	Chat      domain.ChatRef
	MessageID int
}

// RecognizeLink reports whether text starts with an internal post link.
func RecognizeLink(text string) bool {
	return linkPattern.MatchString(text)
}

// ParseLink decomposes an internal post link into chat and message id.
// Purely numeric chat segments are broadcast-channel ids and are addressed
// negated per the protocol convention; anything else is a public handle.
func ParseLink(text string) (DeepLink, error) {
	m := linkPattern.FindStringSubmatch(text)
	if m == nil {
		return DeepLink{}, fmt.Errorf("not a post link: %q", text)
	}

	messageID, err := strconv.Atoi(m[2])
	if err != nil {
		return DeepLink{}, fmt.Errorf("message id %q: %w", m[2], err)
	}

	chat := m[1]
	if id, err := strconv.ParseInt(chat, 10, 64); err == nil {
		return DeepLink{Chat: domain.ChatRef{ID: -id}, MessageID: messageID}, nil
	}
	return DeepLink{Chat: domain.ChatRef{Username: chat}, MessageID: messageID}, nil
}
