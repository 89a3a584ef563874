package reply

import (
	"fmt"
	"strings"

	"github.com/Brownie44l1/leafcheck/internal/model"
)

type Style string

const (
	StyleText Style = "text"
	StyleCard Style = "card"
)

const (
	DefaultFallbackText = "Sorry, an error occurred while analysing the image."
	DefaultCardTitle    = "Leaf Diagnosis"
	DefaultCardBrand    = "leafcheck"
	DefaultCardFooter   = "Send another photo to check again."

	fieldClass      = "Detected class"
	fieldConfidence = "Confidence"
)

// Payload is a reply message. Text is always set; for cards it doubles as
// the alternative text shown by clients that cannot render the card.
type Payload struct {
	Text string
	Card *Card
}

type Card struct {
	Title  string
	Brand  string
	Fields []Field
	Footer string
}

type Field struct {
	Label string
	Value string
}

// Receipt acknowledges a delivered reply.
type Receipt struct {
	SentMessages []SentMessage `json:"sentMessages"`
}

type SentMessage struct {
	ID         string `json:"id"`
	QuoteToken string `json:"quoteToken,omitempty"`
}

type Options struct {
	Style        Style
	FallbackText string
	CardTitle    string
	CardBrand    string
	CardFooter   string
}

// Formatter renders predictions into reply payloads. It holds no mutable state.
type Formatter struct {
	opts Options
}

func NewFormatter(opts Options) *Formatter {
	if opts.Style == "" {
		opts.Style = StyleText
	}
	if strings.TrimSpace(opts.FallbackText) == "" {
		opts.FallbackText = DefaultFallbackText
	}
	if opts.CardTitle == "" {
		opts.CardTitle = DefaultCardTitle
	}
	if opts.CardBrand == "" {
		opts.CardBrand = DefaultCardBrand
	}
	if opts.CardFooter == "" {
		opts.CardFooter = DefaultCardFooter
	}
	return &Formatter{opts: opts}
}

// ParseStyle validates a configured style name.
func ParseStyle(s string) (Style, error) {
	switch st := Style(s); st {
	case StyleText, StyleCard:
		return st, nil
	default:
		return "", fmt.Errorf("unknown reply style %q", s)
	}
}

// Text renders the plain sentence for a prediction.
func Text(p model.Prediction) string {
	return fmt.Sprintf("I think this image is \"%s\"! (confidence %d%%)", p.Label, p.Confidence())
}

func (f *Formatter) Format(p model.Prediction) Payload {
	text := Text(p)
	if f.opts.Style != StyleCard {
		return Payload{Text: text}
	}
	return Payload{
		Text: text,
		Card: &Card{
			Title: f.opts.CardTitle,
			Brand: f.opts.CardBrand,
			Fields: []Field{
				{Label: fieldClass, Value: p.Label},
				{Label: fieldConfidence, Value: fmt.Sprintf("%d%%", p.Confidence())},
			},
			Footer: f.opts.CardFooter,
		},
	}
}

// Fallback is sent when an event's pipeline fails. It carries no error detail.
func (f *Formatter) Fallback() Payload {
	return Payload{Text: f.opts.FallbackText}
}
