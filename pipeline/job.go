package pipeline

import (
	"errors"
	"strings"

	"line-comicbot/linebot"
)

// Kind selects the workflow for a job.
type Kind string

// Job kinds.
const (
	KindIgnored Kind = "ignored"
	KindFollow  Kind = "follow"
	KindText    Kind = "text"
	KindImage   Kind = "image"
)

// Job is the unit of work derived from one webhook delivery.
type Job struct {
	DeliveryID string `json:"delivery_id"`
	Kind       Kind   `json:"kind"`
	ReplyToken string `json:"reply_token,omitempty"`
	UserID     string `json:"user_id,omitempty"`
	MessageID  string `json:"message_id,omitempty"`
	Text       string `json:"text,omitempty"`
}

// Classify picks the one event of a delivery to act on: the first follow,
// else the first text message, else the first image message.
func Classify(events []linebot.Event) Job {
	var text *linebot.TextMessageEvent
	var image *linebot.ImageMessageEvent

	for _, ev := range events {
		switch e := ev.(type) {
		case linebot.FollowEvent:
			return Job{Kind: KindFollow, ReplyToken: e.ReplyToken, UserID: e.UserID}
		case linebot.TextMessageEvent:
			if text == nil {
				text = &e
			}
		case linebot.ImageMessageEvent:
			if image == nil {
				image = &e
			}
		}
	}

	switch {
	case text != nil:
		return Job{Kind: KindText, ReplyToken: text.ReplyToken, UserID: text.UserID, MessageID: text.MessageID, Text: text.Text}
	case image != nil:
		return Job{Kind: KindImage, ReplyToken: image.ReplyToken, UserID: image.UserID, MessageID: image.MessageID}
	}
	return Job{Kind: KindIgnored}
}

const codenamePrefix = "codename:"

// ParseCodename extracts the HashID from a "Codename:<hashId>" command.
// The prefix is case-insensitive; the id is returned as typed, trimmed.
func ParseCodename(text string) (string, bool) {
	s := strings.TrimSpace(text)
	if len(s) < len(codenamePrefix) || !strings.EqualFold(s[:len(codenamePrefix)], codenamePrefix) {
		return "", false
	}
	id := strings.TrimSpace(s[len(codenamePrefix):])
	if id == "" {
		return "", false
	}
	return id, true
}

var errNotFound = errors.New("pipeline: no image for codename")
