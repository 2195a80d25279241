package presence

import "encoding/json"

// Frame carries one slot update between participants. Seq is the writer's
// generation counter for the slot; a null Payload clears the slot.
type Frame struct {
	Channel       string          `json:"channel"`
	ParticipantID string          `json:"participantId"`
	Seq           uint64          `json:"seq"`
	Payload       json.RawMessage `json:"payload"`
}

// Transport hands locally accepted frames to the session layer that delivers
// them to peers. Delivery is asynchronous and unordered across participants.
type Transport interface {
	Send(f Frame) error
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(f Frame) error

func (fn TransportFunc) Send(f Frame) error { return fn(f) }

// Remote pairs a peer's current slot value with its participant id. Value is
// nil when the peer has not published or has cleared its slot.
type Remote[T any] struct {
	Value         *T
	ParticipantID string
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}
