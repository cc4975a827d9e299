package line

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"go.uber.org/zap"

	"github.com/heartlog/rehab-api/internal/config"
	"github.com/heartlog/rehab-api/internal/observability"
	apperrors "github.com/heartlog/rehab-api/pkg/util/errorutil"
)

const (
	replyPath = "/v2/bot/message/reply"
	pushPath  = "/v2/bot/message/push"

	maxLoggedBody = 512
)

// Client sends messages through the LINE Messaging API.
type Client struct {
	baseURL     string
	accessToken string
	http        *http.Client
	logger      *zap.Logger
	metrics     *observability.Metrics
}

// NewClient builds a Messaging API client from config. Every call is bounded by
// cfg.RequestTimeout() on top of the caller's context.
func NewClient(cfg config.LineConfig, logger *zap.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		baseURL:     strings.TrimSuffix(cfg.APIBaseURL, "/"),
		accessToken: cfg.ChannelAccessToken,
		http:        &http.Client{Timeout: cfg.RequestTimeout()},
		logger:      logger,
		metrics:     metrics,
	}
}

// Reply answers a webhook event using its reply token.
func (c *Client) Reply(ctx context.Context, replyToken, text string) error {
	if replyToken == "" {
		return apperrors.NewValidationError("reply token is required", nil)
	}
	api, err := c.api(ctx)
	if err != nil {
		return err
	}
	res, _, err := api.ReplyMessageWithHttpInfo(&messaging_api.ReplyMessageRequest{
		ReplyToken: replyToken,
		Messages:   []messaging_api.MessageInterface{&messaging_api.TextMessage{Text: text}},
	})
	return c.result(replyPath, res, err)
}

// Push sends a message to a LINE user outside of a webhook exchange.
func (c *Client) Push(ctx context.Context, to, text string) error {
	if to == "" {
		return apperrors.NewValidationError("recipient is required", nil)
	}
	api, err := c.api(ctx)
	if err != nil {
		return err
	}
	res, _, err := api.PushMessageWithHttpInfo(&messaging_api.PushMessageRequest{
		To:       to,
		Messages: []messaging_api.MessageInterface{&messaging_api.TextMessage{Text: text}},
	}, "")
	return c.result(pushPath, res, err)
}

// api returns a client bound to ctx. The SDK stores the context on the client
// value, so each call gets its own.
func (c *Client) api(ctx context.Context) (*messaging_api.MessagingApiAPI, error) {
	if c.accessToken == "" {
		return nil, apperrors.NewConfigurationError("LINE channel access token is not configured")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	api, err := messaging_api.NewMessagingApiAPI(c.accessToken,
		messaging_api.WithHTTPClient(c.http),
		messaging_api.WithEndpoint(c.baseURL),
	)
	if err != nil {
		return nil, apperrors.NewConfigurationError("LINE messaging client could not be built")
	}
	return api.WithContext(ctx), nil
}

func (c *Client) result(endpoint string, res *http.Response, err error) error {
	if res == nil {
		if err == nil {
			err = errors.New("no response")
		}
		c.metrics.RecordLineCall(endpoint, 0)
		c.logger.Warn("line api request failed", zap.String("endpoint", endpoint), zap.Error(err))
		return apperrors.NewUpstreamFailure("line", 0, err)
	}

	c.metrics.RecordLineCall(endpoint, res.StatusCode)
	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		c.logger.Warn("line api returned error",
			zap.String("endpoint", endpoint),
			zap.Int("status", res.StatusCode),
			zap.String("body", readLimited(res.Body, maxLoggedBody)),
		)
		return apperrors.NewUpstreamFailure("line", res.StatusCode, nil)
	}
	if err != nil {
		// 2xx with an undecodable body still delivered the message.
		c.logger.Debug("line api response not decoded", zap.String("endpoint", endpoint), zap.Error(err))
	}
	return nil
}

func readLimited(body io.ReadCloser, n int64) string {
	if body == nil {
		return ""
	}
	defer body.Close()
	raw, _ := io.ReadAll(io.LimitReader(body, n))
	return string(raw)
}
