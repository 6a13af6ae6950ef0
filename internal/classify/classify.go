// Package classify turns an arbitrary inbound message into exactly one
// request kind. Classification is total: every input maps to a kind, and the
// priority order below is fixed.
package classify

import (
	"strings"

	"fetchbot/internal/domain"
)

// Kind is the recognized request type of an inbound message.
type Kind int

const (
	KindUnrecognized Kind = iota
	KindCommand
	KindExternalURL
	KindForwardedMedia
	KindDeepLink
)

func (k Kind) String() string {
	switch k {
	case KindCommand:
		return "command"
	case KindExternalURL:
		return "external_url"
	case KindForwardedMedia:
		return "forwarded_media"
	case KindDeepLink:
		return "deep_link"
	default:
		return "unrecognized"
	}
}

// Request is a classified inbound message.
type Request struct {
	Kind    Kind
	Message domain.InboundMessage

	Command  string          // KindCommand
	URL      string          // KindExternalURL
	Platform domain.Platform // KindExternalURL
	Link     DeepLink        // KindDeepLink
}

// commandStart is the reserved greeting command.
const commandStart = "/start"

// Classifier inspects inbound messages against the configured platform rules.
type Classifier struct {
	rules []PlatformRule
}

func NewClassifier(rules []PlatformRule) *Classifier {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Classifier{rules: rules}
}

// Classify maps a message to exactly one request kind. Priority, first match
// wins: reserved command, external host mention, forwarded media, post link.
func (c *Classifier) Classify(msg domain.InboundMessage) Request {
	text := strings.TrimSpace(msg.Text)
	req := Request{Kind: KindUnrecognized, Message: msg}

	if text == commandStart {
		req.Kind = KindCommand
		req.Command = commandStart
		return req
	}

	for _, rule := range c.rules {
		for _, host := range rule.Hosts {
			if strings.Contains(text, host) {
				req.Kind = KindExternalURL
				req.URL = text
				req.Platform = rule.Platform
				return req
			}
		}
	}

	if msg.HasMedia() {
		req.Kind = KindForwardedMedia
		return req
	}

	if RecognizeLink(text) {
		link, err := ParseLink(text)
		if err == nil {
			req.Kind = KindDeepLink
			req.Link = link
			return req
		}
	}

	return req
}
