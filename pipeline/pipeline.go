// Package pipeline runs the work behind a webhook delivery: welcoming new
// friends, answering codename lookups and converting photos.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"line-comicbot/gemini"
	"line-comicbot/linebot"
	"line-comicbot/media"
	"line-comicbot/pkg/gallery"
)

var (
	// ErrUploadFailed marks a failed write of either image.
	ErrUploadFailed = errors.New("pipeline: upload failed")
	// ErrNotifyFailed marks a failed result push. It is only logged.
	ErrNotifyFailed = errors.New("pipeline: notify failed")
)

// Messenger talks to the chat platform.
type Messenger interface {
	Reply(ctx context.Context, replyToken string, msgs ...linebot.Message) error
	Push(ctx context.Context, userID string, msgs ...linebot.Message) error
	Content(ctx context.Context, messageID string) (gallery.MediaBlob, error)
	StartLoading(ctx context.Context, userID string, seconds int) error
}

// AI analyzes and redraws photos.
type AI interface {
	Analyze(ctx context.Context, blob gallery.MediaBlob) (gallery.Analysis, error)
	Transform(ctx context.Context, blob gallery.MediaBlob, prompt string) (gallery.MediaBlob, error)
}

// Store persists images.
type Store interface {
	Upload(ctx context.Context, data []byte, mimeType string, role gallery.Role) (*gallery.StoredImage, error)
	FindByHashID(ctx context.Context, hashID string) (*gallery.StoredImage, error)
}

// Outcome is how a job ended.
type Outcome string

// Job outcomes.
const (
	OutcomeIgnored     Outcome = "ignored"
	OutcomeWelcomed    Outcome = "welcomed"
	OutcomeEchoed      Outcome = "echoed"
	OutcomeFound       Outcome = "found"
	OutcomeNotFound    Outcome = "not_found"
	OutcomeContentGone Outcome = "content_gone"
	OutcomeNotPosed    Outcome = "not_posed"
	OutcomeRateLimited Outcome = "rate_limited"
	OutcomeCompleted   Outcome = "completed"
	OutcomeFailed      Outcome = "failed"
)

const notifyTimeout = 15 * time.Second

// Config holds pipeline dependencies and policy.
type Config struct {
	Messenger Messenger
	AI        AI
	Store     Store
	Logger    *slog.Logger
	Links     gallery.Links
	// IsNotFound recognises the store's "no match" error.
	IsNotFound func(error) bool
	// Prompt overrides gemini.ComicStylePrompt.
	Prompt string
	// GateOnPoseDetection runs the pose check before transforming.
	GateOnPoseDetection bool
	// EchoText answers unrecognised text by repeating it.
	EchoText       bool
	LoadingSeconds int
	// MaxImageEdge bounds the photo sent to the model; 0 sends it untouched.
	MaxImageEdge int
	// Timeout bounds one job; 0 means no limit.
	Timeout time.Duration
}

// Pipeline executes jobs.
type Pipeline struct {
	messenger      Messenger
	ai             AI
	store          Store
	logger         *slog.Logger
	links          gallery.Links
	isNotFound     func(error) bool
	prompt         string
	gate           bool
	echo           bool
	loadingSeconds int
	maxImageEdge   int
	timeout        time.Duration
}

// New creates a pipeline.
func New(cfg *Config) *Pipeline {
	prompt := cfg.Prompt
	if prompt == "" {
		prompt = gemini.ComicStylePrompt
	}
	loading := cfg.LoadingSeconds
	if loading == 0 {
		loading = linebot.MaxLoadingSeconds
	}
	isNotFound := cfg.IsNotFound
	if isNotFound == nil {
		isNotFound = func(error) bool { return false }
	}
	return &Pipeline{
		messenger:      cfg.Messenger,
		ai:             cfg.AI,
		store:          cfg.Store,
		logger:         cfg.Logger,
		links:          cfg.Links,
		isNotFound:     isNotFound,
		prompt:         prompt,
		gate:           cfg.GateOnPoseDetection,
		echo:           cfg.EchoText,
		loadingSeconds: loading,
		maxImageEdge:   cfg.MaxImageEdge,
		timeout:        cfg.Timeout,
	}
}

// Run executes job to completion and reports how it ended. It never panics.
func (p *Pipeline) Run(ctx context.Context, job Job) (outcome Outcome) {
	logger := p.logger.With("delivery_id", job.DeliveryID, "kind", job.Kind, "user_id", job.UserID)
	start := time.Now()

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Job panicked", "panic", fmt.Sprint(r))
			outcome = OutcomeFailed
		}
		logger.Info("Job completed", "outcome", outcome, "duration_ms", time.Since(start).Milliseconds())
	}()

	logger.Info("Job starting", "message_id", job.MessageID)

	switch job.Kind {
	case KindFollow:
		return p.handleFollow(ctx, job, logger)
	case KindText:
		return p.handleText(ctx, job, logger)
	case KindImage:
		return p.handleImage(ctx, job, logger)
	default:
		return OutcomeIgnored
	}
}

func (p *Pipeline) handleFollow(ctx context.Context, job Job, logger *slog.Logger) Outcome {
	if err := p.messenger.Reply(ctx, job.ReplyToken, linebot.WelcomeCard()); err != nil {
		logger.Warn("Failed to send welcome message", "error", err)
		return OutcomeFailed
	}
	return OutcomeWelcomed
}

func (p *Pipeline) handleText(ctx context.Context, job Job, logger *slog.Logger) Outcome {
	id, ok := ParseCodename(job.Text)
	if !ok {
		if !p.echo {
			logger.Debug("Ignoring text message")
			return OutcomeIgnored
		}
		if err := p.messenger.Reply(ctx, job.ReplyToken, linebot.Text(linebot.EchoText(job.Text))); err != nil {
			logger.Warn("Failed to echo text", "error", err)
			return OutcomeFailed
		}
		return OutcomeEchoed
	}

	logger = logger.With("hash_id", id)
	lookup := strings.ToLower(id)
	var img *gallery.StoredImage
	var err error
	if gallery.ValidHashID(lookup) {
		img, err = p.store.FindByHashID(ctx, lookup)
	} else {
		err = errNotFound
	}

	switch {
	case err == nil:
		card := linebot.FoundCard(img.URL, p.links.Slideshow(lookup))
		if err := p.messenger.Reply(ctx, job.ReplyToken, linebot.Image(img.URL), card); err != nil {
			logger.Warn("Failed to send lookup result", "error", err)
			return OutcomeFailed
		}
		logger.Info("Codename resolved", "name", img.Name)
		return OutcomeFound
	case errors.Is(err, errNotFound) || p.isNotFound(err):
		if err := p.messenger.Reply(ctx, job.ReplyToken, linebot.Text(linebot.NotFoundText(id))); err != nil {
			logger.Warn("Failed to send not-found message", "error", err)
			return OutcomeFailed
		}
		return OutcomeNotFound
	default:
		logger.Error("Codename lookup failed", "error", err)
		if err := p.messenger.Reply(ctx, job.ReplyToken, linebot.Text(linebot.MsgErrorGeneric)); err != nil {
			logger.Warn("Failed to send error message", "error", err)
		}
		return OutcomeFailed
	}
}

func (p *Pipeline) handleImage(ctx context.Context, job Job, logger *slog.Logger) (outcome Outcome) {
	logger = logger.With("message_id", job.MessageID)

	blob, err := p.messenger.Content(ctx, job.MessageID)
	if err != nil {
		if errors.Is(err, linebot.ErrContentGone) {
			logger.Info("Message content is gone, dropping job")
			return OutcomeContentGone
		}
		logger.Error("Failed to download content", "error", err)
		if err := p.messenger.Reply(ctx, job.ReplyToken, linebot.Text(linebot.MsgErrorGeneric)); err != nil {
			logger.Warn("Failed to send error message", "error", err)
		}
		return OutcomeFailed
	}

	if err := p.messenger.Reply(ctx, job.ReplyToken, linebot.EditingMessages()...); err != nil {
		logger.Warn("Failed to send editing message", "error", err)
	}
	if err := p.messenger.StartLoading(ctx, job.UserID, p.loadingSeconds); err != nil {
		logger.Warn("Failed to start loading indicator", "error", err)
	}

	// The reply token is spent from here on; every failure must reach the user by push.
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Image job panicked", "panic", fmt.Sprint(r))
			p.notify(ctx, job.UserID, logger, linebot.MsgProcessingFailed)
			outcome = OutcomeFailed
		}
	}()

	aiBlob, err := media.Normalize(blob, p.maxImageEdge)
	if err != nil {
		logger.Warn("Sending photo without normalisation", "error", err)
	}

	if p.gate {
		analysis, err := p.ai.Analyze(ctx, aiBlob)
		if err != nil {
			if errors.Is(err, gemini.ErrRateLimited) {
				logger.Warn("Analysis rate limited", "error", err)
				p.notify(ctx, job.UserID, logger, linebot.MsgErrorRateLimit)
				return OutcomeRateLimited
			}
			logger.Error("Analysis failed", "error", err)
			p.notify(ctx, job.UserID, logger, linebot.MsgProcessingFailed)
			return OutcomeFailed
		}
		if !analysis.ShouldTransform() {
			logger.Info("Photo does not qualify for conversion",
				"face_detected", analysis.SubjectPresent,
				"is_pose", analysis.Posed)
			p.notify(ctx, job.UserID, logger, linebot.NotConvertedText(analysis))
			return OutcomeNotPosed
		}
	}

	comic, err := p.ai.Transform(ctx, aiBlob, p.prompt)
	if err != nil {
		if errors.Is(err, gemini.ErrRateLimited) {
			logger.Warn("Transform rate limited", "error", err)
			p.notify(ctx, job.UserID, logger, linebot.MsgErrorRateLimit)
			return OutcomeRateLimited
		}
		logger.Error("Transform failed", "error", err)
		p.notify(ctx, job.UserID, logger, linebot.MsgConversionFailed)
		return OutcomeFailed
	}

	if _, err := p.store.Upload(ctx, blob.Data, blob.MimeType, gallery.RolePreview); err != nil {
		logger.Error("Failed to store photo", "error", fmt.Errorf("%w: %w", ErrUploadFailed, err))
		p.notify(ctx, job.UserID, logger, linebot.MsgUploadFailed)
		return OutcomeFailed
	}
	stored, err := p.store.Upload(ctx, comic.Data, comic.MimeType, gallery.RoleOriginal)
	if err != nil {
		logger.Error("Failed to store converted image", "error", fmt.Errorf("%w: %w", ErrUploadFailed, err))
		p.notify(ctx, job.UserID, logger, linebot.MsgUploadFailed)
		return OutcomeFailed
	}

	hashID := gallery.HashID(stored.Name)
	slideshow := p.links.Slideshow(hashID)
	logger = logger.With("name", stored.Name, "hash_id", hashID)

	if err := p.messenger.Push(ctx, job.UserID, linebot.Image(stored.URL), linebot.ResultCard(stored.URL, slideshow)); err != nil {
		logger.Error("Failed to deliver result", "error", fmt.Errorf("%w: %w", ErrNotifyFailed, err))
		return OutcomeCompleted
	}

	logger.Info("Converted image delivered", "url", stored.URL, "slideshow_url", slideshow)
	return OutcomeCompleted
}

// notify pushes a failure notice. It survives an expired job context so a
// timeout still reaches the user.
func (p *Pipeline) notify(ctx context.Context, userID string, logger *slog.Logger, text string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	if err := p.messenger.Push(ctx, userID, linebot.Text(text)); err != nil {
		logger.Warn("Failed to push notice", "error", fmt.Errorf("%w: %w", ErrNotifyFailed, err))
	}
}
