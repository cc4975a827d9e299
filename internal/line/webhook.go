package line

import (
	"encoding/json"
	"fmt"

	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"
)

// Event types handled by the webhook.
const (
	EventFollow   = "follow"
	EventUnfollow = "unfollow"
	EventMessage  = "message"
	EventPostback = "postback"

	MessageText = "text"
)

// WebhookPayload is the body LINE posts to the webhook endpoint, flattened from
// the SDK's polymorphic event types into the fields link handling reads.
type WebhookPayload struct {
	Destination string
	Events      []Event
}

// Event is a single webhook event.
type Event struct {
	Type            string
	Mode            string
	Timestamp       int64
	ReplyToken      string
	WebhookEventID  string
	Source          Source
	Message         *Message
	DeliveryContext DeliveryContext
}

// Source identifies who triggered the event.
type Source struct {
	Type    string
	UserID  string
	GroupID string
	RoomID  string
}

// Message is the message object of a message event. Text is set for text messages only.
type Message struct {
	ID   string
	Type string
	Text string
}

// DeliveryContext reports whether LINE is redelivering an event.
type DeliveryContext struct {
	IsRedelivery bool
}

// IsText reports whether the event is a text message.
func (e Event) IsText() bool {
	return e.Type == EventMessage && e.Message != nil && e.Message.Type == MessageText
}

// ParseWebhook decodes a verified webhook body. Event types the SDK does not know
// are kept with only their type set, so callers can count and skip them.
func ParseWebhook(body []byte) (*WebhookPayload, error) {
	var req webhook.CallbackRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, fmt.Errorf("decode webhook payload: %w", err)
	}

	payload := &WebhookPayload{
		Destination: req.Destination,
		Events:      make([]Event, 0, len(req.Events)),
	}
	for _, raw := range req.Events {
		if raw == nil {
			continue
		}
		payload.Events = append(payload.Events, convertEvent(raw))
	}
	return payload, nil
}

func convertEvent(raw webhook.EventInterface) Event {
	switch e := raw.(type) {
	case webhook.MessageEvent:
		return messageEvent(&e)
	case *webhook.MessageEvent:
		return messageEvent(e)
	case webhook.FollowEvent:
		return followEvent(&e)
	case *webhook.FollowEvent:
		return followEvent(e)
	case webhook.UnfollowEvent:
		return unfollowEvent(&e)
	case *webhook.UnfollowEvent:
		return unfollowEvent(e)
	case webhook.PostbackEvent:
		return postbackEvent(&e)
	case *webhook.PostbackEvent:
		return postbackEvent(e)
	default:
		return Event{Type: raw.GetType()}
	}
}

func messageEvent(e *webhook.MessageEvent) Event {
	ev := Event{
		Type:            EventMessage,
		Mode:            string(e.Mode),
		Timestamp:       e.Timestamp,
		ReplyToken:      e.ReplyToken,
		WebhookEventID:  e.WebhookEventId,
		Source:          convertSource(e.Source),
		DeliveryContext: convertDelivery(e.DeliveryContext),
	}
	if e.Message != nil {
		ev.Message = convertMessage(e.Message)
	}
	return ev
}

func followEvent(e *webhook.FollowEvent) Event {
	return Event{
		Type:            EventFollow,
		Mode:            string(e.Mode),
		Timestamp:       e.Timestamp,
		ReplyToken:      e.ReplyToken,
		WebhookEventID:  e.WebhookEventId,
		Source:          convertSource(e.Source),
		DeliveryContext: convertDelivery(e.DeliveryContext),
	}
}

func unfollowEvent(e *webhook.UnfollowEvent) Event {
	return Event{
		Type:            EventUnfollow,
		Mode:            string(e.Mode),
		Timestamp:       e.Timestamp,
		WebhookEventID:  e.WebhookEventId,
		Source:          convertSource(e.Source),
		DeliveryContext: convertDelivery(e.DeliveryContext),
	}
}

func postbackEvent(e *webhook.PostbackEvent) Event {
	return Event{
		Type:            EventPostback,
		Mode:            string(e.Mode),
		Timestamp:       e.Timestamp,
		ReplyToken:      e.ReplyToken,
		WebhookEventID:  e.WebhookEventId,
		Source:          convertSource(e.Source),
		DeliveryContext: convertDelivery(e.DeliveryContext),
	}
}

func convertMessage(raw webhook.MessageContentInterface) *Message {
	switch m := raw.(type) {
	case webhook.TextMessageContent:
		return &Message{ID: m.Id, Type: MessageText, Text: m.Text}
	case *webhook.TextMessageContent:
		return &Message{ID: m.Id, Type: MessageText, Text: m.Text}
	default:
		return &Message{Type: raw.GetType()}
	}
}

func convertSource(raw webhook.SourceInterface) Source {
	switch s := raw.(type) {
	case webhook.UserSource:
		return Source{Type: "user", UserID: s.UserId}
	case *webhook.UserSource:
		return Source{Type: "user", UserID: s.UserId}
	case webhook.GroupSource:
		return Source{Type: "group", UserID: s.UserId, GroupID: s.GroupId}
	case *webhook.GroupSource:
		return Source{Type: "group", UserID: s.UserId, GroupID: s.GroupId}
	case webhook.RoomSource:
		return Source{Type: "room", UserID: s.UserId, RoomID: s.RoomId}
	case *webhook.RoomSource:
		return Source{Type: "room", UserID: s.UserId, RoomID: s.RoomId}
	case nil:
		return Source{}
	default:
		return Source{Type: raw.GetType()}
	}
}

func convertDelivery(dc *webhook.DeliveryContext) DeliveryContext {
	if dc == nil {
		return DeliveryContext{}
	}
	return DeliveryContext{IsRedelivery: dc.IsRedelivery}
}
