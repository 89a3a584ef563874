package line

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/samber/lo"

	"github.com/Brownie44l1/leafcheck/internal/pipeline"
)

const (
	SignatureHeader = "X-Line-Signature"

	MaxWebhookBodyBytes int64 = 1 << 20 // 1 MiB
)

// Callback is the body LINE posts to a webhook URL.
type Callback struct {
	Destination string  `json:"destination"`
	Events      []Event `json:"events"`
}

type Event struct {
	Type       string        `json:"type"`
	ReplyToken string        `json:"replyToken"`
	Timestamp  int64         `json:"timestamp"`
	Message    *EventMessage `json:"message,omitempty"`
}

type EventMessage struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// Inbound converts a platform event to the dispatcher's event type.
func (e Event) Inbound() pipeline.InboundEvent {
	ev := pipeline.InboundEvent{Type: e.Type, ReplyToken: e.ReplyToken}
	if e.Message != nil {
		ev.MessageType = e.Message.Type
		ev.MediaID = e.Message.ID
	}
	return ev
}

// ParseCallback decodes a webhook body.
func ParseCallback(body []byte) (Callback, error) {
	var cb Callback
	if err := json.Unmarshal(body, &cb); err != nil {
		return Callback{}, fmt.Errorf("invalid callback payload: %w", err)
	}
	return cb, nil
}

// InboundEvents maps every callback event, preserving order.
func (cb Callback) InboundEvents() []pipeline.InboundEvent {
	return lo.Map(cb.Events, func(e Event, _ int) pipeline.InboundEvent {
		return e.Inbound()
	})
}

// Sign returns the base64 HMAC-SHA256 of body keyed by the channel secret.
func Sign(channelSecret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(channelSecret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// ValidateSignature reports whether signature matches body.
func ValidateSignature(channelSecret, signature string, body []byte) bool {
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(channelSecret))
	mac.Write(body)
	return hmac.Equal(decoded, mac.Sum(nil))
}

// SignatureMiddleware rejects requests whose X-Line-Signature does not match
// the body. The body is restored for the next handler.
func SignatureMiddleware(channelSecret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			signature := c.Request().Header.Get(SignatureHeader)
			if signature == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing signature")
			}
			payload, err := io.ReadAll(io.LimitReader(c.Request().Body, MaxWebhookBodyBytes+1))
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("read body: %v", err))
			}
			if int64(len(payload)) > MaxWebhookBodyBytes {
				return echo.NewHTTPError(http.StatusRequestEntityTooLarge, fmt.Sprintf("payload too large: max %d bytes", MaxWebhookBodyBytes))
			}
			if !ValidateSignature(channelSecret, signature, payload) {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid signature")
			}
			c.Request().Body = io.NopCloser(bytes.NewReader(payload))
			return next(c)
		}
	}
}
