package gateway

import "encoding/json"

// Op codes for gateway payloads.
const (
	OpDispatch     = 0
	OpHeartbeat    = 1
	OpIdentify     = 2
	OpHello        = 10
	OpHeartbeatAck = 11
)

// Server-to-client dispatch events.
const (
	EventReady        = "READY"
	EventState        = "STATE"
	EventNotification = "NOTIFICATION"
)

// Client-to-server dispatch commands.
const (
	CommandSetActiveChannel  = "SET_ACTIVE_CHANNEL"
	CommandLoadMore          = "LOAD_MORE"
	CommandRefreshMembership = "REFRESH_MEMBERSHIP"
)

// GatewayPayload is the envelope for all gateway messages.
type GatewayPayload struct {
	Op       int             `json:"op"`
	Data     json.RawMessage `json:"d,omitempty"`
	Sequence *int64          `json:"s,omitempty"`
	Event    *string         `json:"t,omitempty"`
}

// IdentifyData is sent by the client in an Op 2 IDENTIFY.
type IdentifyData struct {
	Token string `json:"token"`
}

// HelloData is sent by the server after WebSocket connect.
type HelloData struct {
	HeartbeatInterval int `json:"heartbeat_interval"`
}

// ReadyData is sent by the server after successful IDENTIFY.
type ReadyData struct {
	SessionID string `json:"session_id"`
	UserID    int64  `json:"user_id,string"`
}

// SetActiveChannelData selects the channel whose messages stream to this
// connection. A null channel ID clears the active channel.
type SetActiveChannelData struct {
	ChannelID *string `json:"channel_id"`
}
