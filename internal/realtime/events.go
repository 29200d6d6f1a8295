package realtime

import (
	"context"
	"encoding/json"
	"strconv"
)

// EventType tags a row-change event.
type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
)

// Tables carried on change events.
const (
	TableMessages       = "messages"
	TableChannelMembers = "channel_members"
)

// ChangeEvent is a tagged row change published by the service layer and
// delivered to subscribers. New carries the full row after INSERT/UPDATE;
// Old carries the full previous row on DELETE.
type ChangeEvent struct {
	Type  EventType       `json:"type"`
	Table string          `json:"table"`
	New   json.RawMessage `json:"new,omitempty"`
	Old   json.RawMessage `json:"old,omitempty"`
}

// MessageTopic is the per-channel topic carrying message changes. Delivery
// within one topic follows commit order; no ordering holds across topics.
func MessageTopic(channelID int64) string {
	return "chan:" + strconv.FormatInt(channelID, 10) + ":messages"
}

// MembershipTopic is the per-user topic carrying channel membership changes
// that affect that user's accessible set.
func MembershipTopic(userID int64) string {
	return "user:" + strconv.FormatInt(userID, 10) + ":membership"
}

// Status reports the state of a subscription.
type Status string

const (
	StatusSubscribed   Status = "SUBSCRIBED"
	StatusChannelError Status = "CHANNEL_ERROR"
	StatusTimedOut     Status = "TIMED_OUT"
	StatusClosed       Status = "CLOSED"
)

// Filter selects which event types a subscription receives. An empty Types
// list matches everything.
type Filter struct {
	Types []EventType
}

func (f Filter) matches(e ChangeEvent) bool {
	if len(f.Types) == 0 {
		return true
	}
	for _, t := range f.Types {
		if t == e.Type {
			return true
		}
	}
	return false
}

// Handler consumes delivered events. Handlers must not block for long; a
// panicking handler is recovered and logged without killing the dispatch
// loop.
type Handler func(ChangeEvent)

// StatusFunc receives subscription status transitions. A failed subscribe is
// reported here as CHANNEL_ERROR or TIMED_OUT, not as an error return; the
// adapter performs no retries itself.
type StatusFunc func(Status)

// Handle identifies one live subscription. Unsubscribe is idempotent.
type Handle interface {
	Topic() string
	Unsubscribe()
}

// Source is the event transport consumed by the sync engines.
type Source interface {
	Subscribe(ctx context.Context, topic string, filter Filter, handler Handler, onStatus StatusFunc) Handle
}

// Publisher is the service-side half of the transport: mutations publish
// their row changes through it after commit.
type Publisher interface {
	Publish(ctx context.Context, topic string, event ChangeEvent) error
}
