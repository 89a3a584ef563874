//go:generate go run go.uber.org/mock/mockgen -source=dispatcher.go -destination=../mocks/mock_pipeline.go -package=mocks

package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Brownie44l1/leafcheck/internal/model"
	"github.com/Brownie44l1/leafcheck/internal/reply"
)

const (
	EventTypeMessage = "message"
	MessageTypeImage = "image"
)

// InboundEvent is one platform event from a webhook batch.
type InboundEvent struct {
	Type        string
	MessageType string
	MediaID     string
	ReplyToken  string
}

// IsImageMessage reports whether the event carries an image to classify.
func (e InboundEvent) IsImageMessage() bool {
	return e.Type == EventTypeMessage && e.MessageType == MessageTypeImage
}

// ContentFetcher returns the complete binary content of an attachment.
type ContentFetcher interface {
	FetchContent(ctx context.Context, mediaID string) ([]byte, error)
}

// Classifier produces one probability per label.
type Classifier interface {
	Predict(ctx context.Context, input model.Tensor) ([]float32, error)
}

// Messenger delivers a reply to the conversation behind a reply token.
type Messenger interface {
	Reply(ctx context.Context, replyToken string, payload reply.Payload) (*reply.Receipt, error)
}

type Dispatcher struct {
	logger       *slog.Logger
	fetcher      ContentFetcher
	preprocessor *model.Preprocessor
	classifier   Classifier
	labels       model.LabelSet
	formatter    *reply.Formatter
	messenger    Messenger
}

type Config struct {
	Fetcher      ContentFetcher
	Preprocessor *model.Preprocessor
	Classifier   Classifier
	Labels       model.LabelSet
	Formatter    *reply.Formatter
	Messenger    Messenger
}

func NewDispatcher(log *slog.Logger, cfg Config) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		logger:       log.With(slog.String("component", "dispatcher")),
		fetcher:      cfg.Fetcher,
		preprocessor: cfg.Preprocessor,
		classifier:   cfg.Classifier,
		labels:       cfg.Labels,
		formatter:    cfg.Formatter,
		messenger:    cfg.Messenger,
	}
}

// Dispatch runs every event of a batch concurrently and waits for all of them.
// The result has one entry per event in input order: nil for skipped events,
// the delivery receipt otherwise. Stage failures become a fallback reply; only
// a failed delivery is returned as an error, after every event has settled.
func (d *Dispatcher) Dispatch(ctx context.Context, events []InboundEvent) ([]*reply.Receipt, error) {
	results := make([]*reply.Receipt, len(events))
	var g errgroup.Group
	for i, ev := range events {
		if !ev.IsImageMessage() {
			continue
		}
		g.Go(func() error {
			receipt, err := d.handle(ctx, ev)
			if err != nil {
				return err
			}
			results[i] = receipt
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

func (d *Dispatcher) handle(ctx context.Context, ev InboundEvent) (*reply.Receipt, error) {
	started := time.Now()
	outcome := d.Classify(ctx, ev)

	var payload reply.Payload
	switch outcome.Kind {
	case OutcomeSkipped:
		return nil, nil
	case OutcomePredicted:
		payload = d.formatter.Format(outcome.Prediction)
		d.logger.Info("image classified",
			slog.String("media_id", ev.MediaID),
			slog.String("label", outcome.Prediction.Label),
			slog.Int("confidence", outcome.Prediction.Confidence()),
			slog.Duration("latency", time.Since(started)),
		)
	default:
		payload = d.formatter.Fallback()
		d.logger.Warn("classification failed",
			slog.String("media_id", ev.MediaID),
			slog.Any("error", outcome.Err),
		)
	}

	receipt, err := d.messenger.Reply(ctx, ev.ReplyToken, payload)
	if err != nil {
		d.logger.Error("reply delivery failed", slog.String("media_id", ev.MediaID), slog.Any("error", err))
		return nil, fmt.Errorf("reply to %s: %w", ev.MediaID, err)
	}
	return receipt, nil
}

// Classify runs fetch, preprocess, predict and select for one event.
func (d *Dispatcher) Classify(ctx context.Context, ev InboundEvent) Outcome {
	if !ev.IsImageMessage() {
		return Skipped()
	}

	buf, err := d.fetcher.FetchContent(ctx, ev.MediaID)
	if err != nil {
		return Failed(fmt.Errorf("fetch %s: %w", ev.MediaID, err))
	}
	tensor, err := d.preprocessor.Preprocess(buf)
	if err != nil {
		return Failed(fmt.Errorf("preprocess %s: %w", ev.MediaID, err))
	}
	probs, err := d.classifier.Predict(ctx, tensor)
	if err != nil {
		return Failed(fmt.Errorf("predict %s: %w", ev.MediaID, err))
	}
	if len(probs) != len(d.labels) {
		return Failed(fmt.Errorf("predict %s: %w: %d outputs for %d labels", ev.MediaID, model.ErrInference, len(probs), len(d.labels)))
	}
	return Predicted(model.SelectBest(probs, d.labels))
}
