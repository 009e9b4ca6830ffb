// Package linebot adapts the LINE Messaging API SDK to the bot: webhook
// verification and parsing, replies, pushes, content download and the
// loading indicator.
package linebot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"line-comicbot/pkg/gallery"

	"github.com/codeGROOVE-dev/retry"
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
)

const (
	// Loading indicator bounds accepted by the API.
	MinLoadingSeconds = 5
	MaxLoadingSeconds = 60

	maxContentBytes = 20 << 20
	maxMessages     = 5
)

var (
	// ErrContentGone means the message content expired or never existed.
	ErrContentGone = errors.New("linebot: message content is gone")
	// ErrDownloadFailed wraps every other content download failure.
	ErrDownloadFailed = errors.New("linebot: content download failed")
)

// APIError is a non-2xx answer from the Messaging API.
type APIError struct {
	Endpoint   string
	Body       string
	StatusCode int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("LINE API %s HTTP %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	httpClient *http.Client
	apiBase    string
	dataBase   string
}

// WithEndpoints points the client at different hosts, for tests and proxies.
func WithEndpoints(apiBase, dataBase string) Option {
	return func(o *clientOptions) {
		o.apiBase = apiBase
		o.dataBase = dataBase
	}
}

// Client calls the Messaging API through the official SDK.
type Client struct {
	api        *messaging_api.MessagingApiAPI
	blob       *messaging_api.MessagingApiBlobAPI
	logger     *slog.Logger
	retryDelay time.Duration
}

// New creates a Messaging API client for a channel access token.
func New(token string, logger *slog.Logger, opts ...Option) (*Client, error) {
	o := clientOptions{httpClient: &http.Client{Timeout: 30 * time.Second}}
	for _, opt := range opts {
		opt(&o)
	}

	apiOpts := []messaging_api.MessagingApiAPIOption{messaging_api.WithHTTPClient(o.httpClient)}
	blobOpts := []messaging_api.MessagingApiBlobAPIOption{messaging_api.WithBlobHTTPClient(o.httpClient)}
	if o.apiBase != "" {
		apiOpts = append(apiOpts, messaging_api.WithEndpoint(o.apiBase))
	}
	if o.dataBase != "" {
		blobOpts = append(blobOpts, messaging_api.WithBlobEndpoint(o.dataBase))
	}

	api, err := messaging_api.NewMessagingApiAPI(token, apiOpts...)
	if err != nil {
		return nil, fmt.Errorf("create messaging client: %w", err)
	}
	blob, err := messaging_api.NewMessagingApiBlobAPI(token, blobOpts...)
	if err != nil {
		return nil, fmt.Errorf("create blob client: %w", err)
	}
	return &Client{api: api, blob: blob, logger: logger, retryDelay: time.Second}, nil
}

// apiFor binds ctx to a copy of the SDK client. WithContext mutates its
// receiver, so the shared client is never bound directly.
func (c *Client) apiFor(ctx context.Context) *messaging_api.MessagingApiAPI {
	api := *c.api
	return api.WithContext(ctx)
}

func (c *Client) blobFor(ctx context.Context) *messaging_api.MessagingApiBlobAPI {
	blob := *c.blob
	return blob.WithContext(ctx)
}

// Reply answers an event with its single-use reply token. Replies are never
// retried since the token may already have been consumed.
func (c *Client) Reply(ctx context.Context, replyToken string, msgs ...Message) error {
	if replyToken == "" {
		return errors.New("empty reply token")
	}
	sdkMsgs, err := toSDK(msgs)
	if err != nil {
		return err
	}
	return c.call("reply", func() (*http.Response, error) {
		res, _, err := c.apiFor(ctx).ReplyMessageWithHttpInfo(&messaging_api.ReplyMessageRequest{
			ReplyToken: replyToken,
			Messages:   sdkMsgs,
		})
		return res, err
	})
}

// Push sends messages to a user at any time. Pushes are never retried: the
// API has no idempotency guarantee without a retry key.
func (c *Client) Push(ctx context.Context, userID string, msgs ...Message) error {
	if userID == "" {
		return errors.New("empty user id")
	}
	sdkMsgs, err := toSDK(msgs)
	if err != nil {
		return err
	}
	return c.call("push", func() (*http.Response, error) {
		res, _, err := c.apiFor(ctx).PushMessageWithHttpInfo(&messaging_api.PushMessageRequest{
			To:       userID,
			Messages: sdkMsgs,
		}, "")
		return res, err
	})
}

// StartLoading shows the typing indicator in the user's chat.
func (c *Client) StartLoading(ctx context.Context, userID string, seconds int) error {
	return c.call("loading", func() (*http.Response, error) {
		res, _, err := c.apiFor(ctx).ShowLoadingAnimationWithHttpInfo(&messaging_api.ShowLoadingAnimationRequest{
			ChatId:         userID,
			LoadingSeconds: int32(ClampLoadingSeconds(seconds)),
		})
		return res, err
	})
}

// ClampLoadingSeconds forces seconds into the range the API accepts.
func ClampLoadingSeconds(seconds int) int {
	return min(max(seconds, MinLoadingSeconds), MaxLoadingSeconds)
}

func toSDK(msgs []Message) ([]messaging_api.MessageInterface, error) {
	if len(msgs) == 0 {
		return nil, errors.New("no messages")
	}
	if len(msgs) > maxMessages {
		return nil, fmt.Errorf("too many messages: %d > %d", len(msgs), maxMessages)
	}
	out := make([]messaging_api.MessageInterface, len(msgs))
	for i, m := range msgs {
		out[i] = m
	}
	return out, nil
}

// call runs one SDK request and maps its outcome onto APIError.
func (c *Client) call(endpoint string, do func() (*http.Response, error)) error {
	c.logger.Info("LINE API request starting", "endpoint", endpoint)
	startTime := time.Now()

	res, err := do()
	duration := time.Since(startTime)
	if res != nil && res.Body != nil {
		defer func() {
			if closeErr := res.Body.Close(); closeErr != nil {
				c.logger.Warn("Failed to close response body", "error", closeErr)
			}
		}()
	}
	if err != nil {
		if apiErr := statusError(endpoint, res, err); apiErr != nil {
			c.logger.Warn("LINE API returned non-2xx status",
				"endpoint", endpoint,
				"status_code", apiErr.StatusCode,
				"duration_ms", duration.Milliseconds())
			return apiErr
		}
		c.logger.Warn("LINE API request failed", "endpoint", endpoint, "duration_ms", duration.Milliseconds(), "error", err)
		return fmt.Errorf("send %s request: %w", endpoint, err)
	}

	c.logger.Info("LINE API request completed",
		"endpoint", endpoint,
		"duration_ms", duration.Milliseconds(),
		"status", "success")
	return nil
}

// statusError returns an APIError when the SDK failed on an HTTP status,
// or nil for transport failures.
func statusError(endpoint string, res *http.Response, err error) *APIError {
	if res == nil || res.StatusCode/100 == 2 {
		return nil
	}
	return &APIError{Endpoint: endpoint, StatusCode: res.StatusCode, Body: err.Error()}
}

// Content downloads the bytes of an image message. Transient failures are
// retried; the download is a read and safe to repeat.
func (c *Client) Content(ctx context.Context, messageID string) (gallery.MediaBlob, error) {
	var blob gallery.MediaBlob
	gone := false
	err := retry.Do(
		func() error {
			c.logger.Info("LINE content download starting", "message_id", messageID)
			startTime := time.Now()

			res, err := c.blobFor(ctx).GetMessageContent(messageID)
			if res != nil && res.Body != nil {
				defer func() {
					if closeErr := res.Body.Close(); closeErr != nil {
						c.logger.Warn("Failed to close response body", "error", closeErr)
					}
				}()
			}
			if err != nil {
				apiErr := statusError("content", res, err)
				switch {
				case apiErr == nil:
					c.logger.Warn("LINE content download failed, will retry", "message_id", messageID, "error", err)
					return fmt.Errorf("send request: %w", err)
				case apiErr.StatusCode == http.StatusNotFound || apiErr.StatusCode == http.StatusGone:
					gone = true
					return retry.Unrecoverable(ErrContentGone)
				case apiErr.StatusCode >= 500:
					return apiErr
				default:
					return retry.Unrecoverable(apiErr)
				}
			}

			data, err := io.ReadAll(io.LimitReader(res.Body, maxContentBytes+1))
			if err != nil {
				return fmt.Errorf("read content: %w", err)
			}
			if len(data) > maxContentBytes {
				return retry.Unrecoverable(fmt.Errorf("content exceeds %d bytes", maxContentBytes))
			}

			mt := res.Header.Get("Content-Type")
			if mt == "" {
				mt = "image/jpeg"
			}
			blob = gallery.MediaBlob{Data: data, MimeType: mt}

			c.logger.Info("LINE content download completed",
				"message_id", messageID,
				"bytes", len(data),
				"mime_type", mt,
				"duration_ms", time.Since(startTime).Milliseconds())
			return nil
		},
		retry.Attempts(3),
		retry.Delay(c.retryDelay),
		retry.MaxDelay(30*time.Second),
		retry.MaxJitter(c.retryDelay),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Info("Retrying content download after error", "attempt", n, "message_id", messageID, "error", err)
		}),
	)
	if err != nil {
		if gone {
			return gallery.MediaBlob{}, ErrContentGone
		}
		return gallery.MediaBlob{}, fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}
	return blob, nil
}
