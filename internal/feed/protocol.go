package feed

import "github.com/fkhayef/studysync/pkg/response"

// Message types on the realtime websocket
const (
	MsgSubscribe    = "subscribe"
	MsgUnsubscribe  = "unsubscribe"
	MsgSubscribed   = "subscribed"
	MsgUnsubscribed = "unsubscribed"
	MsgEvent        = "event"
	MsgError        = "error"
)

// ClientMessage is sent by subscribers
type ClientMessage struct {
	Type   string    `json:"type"`
	Ref    string    `json:"ref,omitempty"`
	ID     string    `json:"id,omitempty"`
	Table  string    `json:"table,omitempty"`
	Event  EventType `json:"event,omitempty"`
	Filter string    `json:"filter,omitempty"`
}

// Key converts a subscribe message into a subscription key
func (m ClientMessage) Key() (Key, error) {
	filter, err := ParseFilter(m.Filter)
	if err != nil {
		return Key{}, err
	}
	key := Key{Table: m.Table, Event: m.Event, Filter: filter}
	return key, key.Validate()
}

// ServerMessage is sent to subscribers
type ServerMessage struct {
	Type  string             `json:"type"`
	Ref   string             `json:"ref,omitempty"`
	ID    string             `json:"id,omitempty"`
	Event *Event             `json:"event,omitempty"`
	Error *response.APIError `json:"error,omitempty"`
}
