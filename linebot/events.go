package linebot

import (
	"encoding/json"
	"fmt"

	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"
)

// Event is one entry of a webhook delivery. The concrete type is one of
// FollowEvent, TextMessageEvent, ImageMessageEvent or IgnoredEvent.
type Event interface {
	eventType() string
}

// FollowEvent is sent when a user adds the bot as a friend.
type FollowEvent struct {
	ReplyToken string
	UserID     string
}

// TextMessageEvent is a text message from a user.
type TextMessageEvent struct {
	ReplyToken string
	UserID     string
	MessageID  string
	Text       string
}

// ImageMessageEvent is a photo from a user. The bytes must be fetched separately.
type ImageMessageEvent struct {
	ReplyToken string
	UserID     string
	MessageID  string
}

// IgnoredEvent is any event the bot does not act on.
type IgnoredEvent struct {
	Type string
}

func (FollowEvent) eventType() string       { return "follow" }
func (TextMessageEvent) eventType() string  { return "message/text" }
func (ImageMessageEvent) eventType() string { return "message/image" }
func (e IgnoredEvent) eventType() string    { return e.Type }

// ParseEvents decodes a webhook body. Call it only after VerifySignature.
func ParseEvents(body []byte) ([]Event, error) {
	var cb webhook.CallbackRequest
	if err := json.Unmarshal(body, &cb); err != nil {
		return nil, fmt.Errorf("decode webhook body: %w", err)
	}

	events := make([]Event, 0, len(cb.Events))
	for _, ev := range cb.Events {
		events = append(events, toEvent(ev))
	}
	return events, nil
}

func toEvent(ev webhook.EventInterface) Event {
	switch e := ev.(type) {
	case webhook.FollowEvent:
		return FollowEvent{ReplyToken: e.ReplyToken, UserID: sourceUserID(e.Source)}
	case webhook.MessageEvent:
		switch m := e.Message.(type) {
		case webhook.TextMessageContent:
			return TextMessageEvent{
				ReplyToken: e.ReplyToken,
				UserID:     sourceUserID(e.Source),
				MessageID:  m.Id,
				Text:       m.Text,
			}
		case webhook.ImageMessageContent:
			return ImageMessageEvent{
				ReplyToken: e.ReplyToken,
				UserID:     sourceUserID(e.Source),
				MessageID:  m.Id,
			}
		case nil:
			return IgnoredEvent{Type: e.GetType()}
		default:
			return IgnoredEvent{Type: e.GetType() + "/" + m.GetType()}
		}
	}
	return IgnoredEvent{Type: ev.GetType()}
}

func sourceUserID(src webhook.SourceInterface) string {
	switch s := src.(type) {
	case webhook.UserSource:
		return s.UserId
	case webhook.GroupSource:
		return s.UserId
	case webhook.RoomSource:
		return s.UserId
	}
	return ""
}
