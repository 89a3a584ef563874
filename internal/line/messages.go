package line

import "github.com/Brownie44l1/leafcheck/internal/reply"

const (
	colorAccent = "#1DB446"
	colorMuted  = "#aaaaaa"
	colorText   = "#666666"
)

// message is a LINE send-message object. Only text and flex are produced.
type message struct {
	Type     string      `json:"type"`
	Text     string      `json:"text,omitempty"`
	AltText  string      `json:"altText,omitempty"`
	Contents *flexBubble `json:"contents,omitempty"`
}

type flexBubble struct {
	Type   string         `json:"type"`
	Header *flexComponent `json:"header,omitempty"`
	Body   *flexComponent `json:"body,omitempty"`
	Footer *flexComponent `json:"footer,omitempty"`
}

// flexComponent is either a box or a text; LINE discriminates on Type.
type flexComponent struct {
	Type     string          `json:"type"`
	Layout   string          `json:"layout,omitempty"`
	Spacing  string          `json:"spacing,omitempty"`
	Contents []flexComponent `json:"contents,omitempty"`
	Text     string          `json:"text,omitempty"`
	Size     string          `json:"size,omitempty"`
	Weight   string          `json:"weight,omitempty"`
	Color    string          `json:"color,omitempty"`
	Wrap     bool            `json:"wrap,omitempty"`
	Flex     int             `json:"flex,omitempty"`
}

func box(layout string, contents ...flexComponent) flexComponent {
	return flexComponent{Type: "box", Layout: layout, Contents: contents}
}

func text(s string) flexComponent {
	return flexComponent{Type: "text", Text: s, Wrap: true}
}

func toMessage(p reply.Payload) message {
	if p.Card == nil {
		return message{Type: "text", Text: p.Text}
	}
	return message{Type: "flex", AltText: p.Text, Contents: toBubble(p.Card)}
}

func toBubble(card *reply.Card) *flexBubble {
	title := text(card.Title)
	title.Weight, title.Size, title.Color = "bold", "xl", colorAccent
	brand := text(card.Brand)
	brand.Size, brand.Color = "xs", colorMuted
	header := box("vertical", title, brand)

	rows := make([]flexComponent, 0, len(card.Fields))
	for _, f := range card.Fields {
		label := text(f.Label)
		label.Size, label.Color, label.Flex = "sm", colorMuted, 2
		value := text(f.Value)
		value.Size, value.Color, value.Weight, value.Flex = "sm", colorText, "bold", 4
		rows = append(rows, box("baseline", label, value))
	}
	body := box("vertical", rows...)
	body.Spacing = "md"

	footerText := text(card.Footer)
	footerText.Size, footerText.Color = "xs", colorMuted
	footer := box("vertical", footerText)

	return &flexBubble{Type: "bubble", Header: &header, Body: &body, Footer: &footer}
}
