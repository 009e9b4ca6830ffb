package server

import (
	"errors"
	"io"
	"net/http"
	"time"

	"line-comicbot/linebot"
	"line-comicbot/pipeline"
)

// maxWebhookBody bounds a webhook delivery.
const maxWebhookBody = 1 << 20

var statusByKind = map[pipeline.Kind]string{
	pipeline.KindImage:   "processing_image",
	pipeline.KindText:    "processing_text",
	pipeline.KindFollow:  "welcomed",
	pipeline.KindIgnored: "ignored",
}

// handleWebhook verifies and acknowledges a delivery. The work itself runs
// after the response through the dispatcher.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.channelSecret == "" {
		s.logger.Error("Webhook rejected: channel secret not configured")
		http.Error(w, "Server misconfigured", http.StatusInternalServerError)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody+1))
	if err != nil {
		s.logger.Warn("Failed to read webhook body", "error", err)
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	if len(body) > maxWebhookBody {
		http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
		return
	}

	if err := linebot.VerifySignature(s.channelSecret, body, r.Header.Get(linebot.SignatureHeader)); err != nil {
		s.logger.Warn("Webhook signature rejected", "error", err, "ip", clientIP(r))
		if errors.Is(err, linebot.ErrSignatureMissing) {
			http.Error(w, "Missing signature", http.StatusBadRequest)
			return
		}
		http.Error(w, "Invalid signature", http.StatusUnauthorized)
		return
	}

	events, err := linebot.ParseEvents(body)
	if err != nil {
		s.logger.Warn("Failed to parse webhook body", "error", err)
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	job := pipeline.Classify(events)
	job.DeliveryID = s.newID()
	logger := s.logger.With("delivery_id", job.DeliveryID)
	logger.Info("Webhook received", "events", len(events), "kind", job.Kind, "user_id", job.UserID)

	if job.Kind != pipeline.KindIgnored {
		start := time.Now()
		if err := s.dispatcher.Dispatch(r.Context(), job); err != nil {
			logger.Error("Failed to dispatch job", "error", err)
			writeJSON(w, s.logger, http.StatusInternalServerError, map[string]string{"error": "Failed to schedule processing"})
			return
		}
		logger.Debug("Job dispatched", "duration_ms", time.Since(start).Milliseconds())
	}

	writeJSON(w, s.logger, http.StatusOK, map[string]string{"status": statusByKind[job.Kind]})
}
