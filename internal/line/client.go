package line

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/Brownie44l1/leafcheck/internal/pipeline"
	"github.com/Brownie44l1/leafcheck/internal/reply"
)

const (
	DefaultAPIBaseURL      = "https://api.line.me"
	DefaultDataBaseURL     = "https://api-data.line.me"
	DefaultMaxContentBytes = 10 << 20
	DefaultTimeout         = 30 * time.Second

	replyPath = "/v2/bot/message/reply"
)

type Config struct {
	ChannelAccessToken string
	APIBaseURL         string
	DataBaseURL        string
	MaxContentBytes    int64
	Timeout            time.Duration
}

// Client talks to the LINE Messaging API. It fetches message content and
// sends replies; both calls are single-shot.
type Client struct {
	logger          *slog.Logger
	api             *resty.Client
	data            *resty.Client
	maxContentBytes int64
}

func NewClient(log *slog.Logger, cfg Config) *Client {
	if log == nil {
		log = slog.Default()
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = DefaultAPIBaseURL
	}
	if cfg.DataBaseURL == "" {
		cfg.DataBaseURL = DefaultDataBaseURL
	}
	if cfg.MaxContentBytes <= 0 {
		cfg.MaxContentBytes = DefaultMaxContentBytes
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	newREST := func(base string) *resty.Client {
		return resty.New().
			SetBaseURL(strings.TrimRight(base, "/")).
			SetAuthToken(cfg.ChannelAccessToken).
			SetTimeout(cfg.Timeout).
			SetHeader("User-Agent", "leafcheck")
	}
	return &Client{
		logger:          log.With(slog.String("component", "line")),
		api:             newREST(cfg.APIBaseURL),
		data:            newREST(cfg.DataBaseURL),
		maxContentBytes: cfg.MaxContentBytes,
	}
}

// FetchContent downloads the binary content of a message. The whole stream
// is read before returning; any failure wraps pipeline.ErrRetrieval.
func (c *Client) FetchContent(ctx context.Context, mediaID string) ([]byte, error) {
	mediaID = strings.TrimSpace(mediaID)
	if mediaID == "" {
		return nil, fmt.Errorf("%w: media id is required", pipeline.ErrRetrieval)
	}
	resp, err := c.data.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get("/v2/bot/message/" + url.PathEscape(mediaID) + "/content")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pipeline.ErrRetrieval, err)
	}
	body := resp.RawBody()
	defer func() {
		_ = body.Close()
	}()

	if resp.StatusCode() != http.StatusOK {
		_, _ = io.Copy(io.Discard, body)
		return nil, fmt.Errorf("%w: content status %d", pipeline.ErrRetrieval, resp.StatusCode())
	}
	if resp.RawResponse.ContentLength > c.maxContentBytes {
		return nil, fmt.Errorf("%w: content too large: %d bytes (limit is %d)", pipeline.ErrRetrieval, resp.RawResponse.ContentLength, c.maxContentBytes)
	}

	data, err := io.ReadAll(io.LimitReader(body, c.maxContentBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read content: %v", pipeline.ErrRetrieval, err)
	}
	if int64(len(data)) > c.maxContentBytes {
		return nil, fmt.Errorf("%w: content too large: max %d bytes", pipeline.ErrRetrieval, c.maxContentBytes)
	}
	c.logger.Debug("content fetched", slog.String("media_id", mediaID), slog.Int("bytes", len(data)))
	return data, nil
}

type replyRequest struct {
	ReplyToken string    `json:"replyToken"`
	Messages   []message `json:"messages"`
}

type apiError struct {
	Message string `json:"message"`
	Details []struct {
		Message  string `json:"message"`
		Property string `json:"property"`
	} `json:"details"`
}

// Reply sends payload to the conversation behind replyToken. Any failure
// wraps pipeline.ErrDelivery.
func (c *Client) Reply(ctx context.Context, replyToken string, payload reply.Payload) (*reply.Receipt, error) {
	if strings.TrimSpace(replyToken) == "" {
		return nil, fmt.Errorf("%w: reply token is required", pipeline.ErrDelivery)
	}
	var receipt reply.Receipt
	var failure apiError
	resp, err := c.api.R().
		SetContext(ctx).
		SetBody(replyRequest{ReplyToken: replyToken, Messages: []message{toMessage(payload)}}).
		SetResult(&receipt).
		SetError(&failure).
		Post(replyPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pipeline.ErrDelivery, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: status %d: %s", pipeline.ErrDelivery, resp.StatusCode(), failure.Message)
	}
	return &receipt, nil
}
