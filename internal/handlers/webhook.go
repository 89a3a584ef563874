package handlers

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Brownie44l1/leafcheck/internal/line"
	"github.com/Brownie44l1/leafcheck/internal/pipeline"
	"github.com/Brownie44l1/leafcheck/internal/reply"
)

type batchDispatcher interface {
	Dispatch(ctx context.Context, events []pipeline.InboundEvent) ([]*reply.Receipt, error)
}

// WebhookHandler receives LINE webhook callbacks and hands their events to
// the dispatcher.
type WebhookHandler struct {
	logger        *slog.Logger
	dispatcher    batchDispatcher
	path          string
	channelSecret string
}

func NewWebhookHandler(log *slog.Logger, dispatcher batchDispatcher, path, channelSecret string) *WebhookHandler {
	if log == nil {
		log = slog.Default()
	}
	return &WebhookHandler{
		logger:        log.With(slog.String("handler", "line_webhook")),
		dispatcher:    dispatcher,
		path:          path,
		channelSecret: channelSecret,
	}
}

func (h *WebhookHandler) Register(e *echo.Echo) {
	e.POST(h.path, h.Handle, line.SignatureMiddleware(h.channelSecret))
}

// Handle answers with one JSON entry per event, or 500 with an empty body if
// a reply could not be delivered.
func (h *WebhookHandler) Handle(c echo.Context) error {
	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, line.MaxWebhookBodyBytes+1))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("read body: %v", err))
	}
	if int64(len(payload)) > line.MaxWebhookBodyBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, fmt.Sprintf("payload too large: max %d bytes", line.MaxWebhookBodyBytes))
	}
	cb, err := line.ParseCallback(payload)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	batchID := uuid.NewString()
	events := cb.InboundEvents()
	h.logger.Debug("webhook received", slog.String("batch_id", batchID), slog.Int("events", len(events)))

	results, err := h.dispatcher.Dispatch(context.WithoutCancel(c.Request().Context()), events)
	if err != nil {
		h.logger.Error("webhook batch failed", slog.String("batch_id", batchID), slog.Any("error", err))
		return c.NoContent(http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, results)
}
