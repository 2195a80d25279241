package presence

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// Message types multiplexed on a relay socket.
const (
	MessagePresence = "presence"
	MessageRoster   = "roster"
)

type presenceMessage struct {
	Type string `json:"type"`
	Frame
}

type rosterMessage struct {
	Type      string     `json:"type"`
	Attendees []Attendee `json:"attendees"`
}

// EncodeFrame wraps f for the relay socket.
func EncodeFrame(f Frame) ([]byte, error) {
	return json.Marshal(presenceMessage{Type: MessagePresence, Frame: f})
}

// EncodeRoster builds a roster message.
func EncodeRoster(attendees []Attendee) ([]byte, error) {
	if attendees == nil {
		attendees = []Attendee{}
	}
	return json.Marshal(rosterMessage{Type: MessageRoster, Attendees: attendees})
}

// Message is one decoded relay message. Exactly one of Frame and Attendees is
// meaningful, according to Type.
type Message struct {
	Type      string
	Frame     Frame
	Attendees []Attendee
}

// DecodeMessage parses a relay message by its "type" tag.
func DecodeMessage(data []byte) (Message, error) {
	if !gjson.ValidBytes(data) {
		return Message{}, fmt.Errorf("%w: malformed message", ErrRejected)
	}
	switch t := gjson.GetBytes(data, "type").String(); t {
	case MessagePresence:
		var m presenceMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return Message{}, fmt.Errorf("%w: %v", ErrRejected, err)
		}
		return Message{Type: t, Frame: m.Frame}, nil
	case MessageRoster:
		var m rosterMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return Message{}, fmt.Errorf("%w: %v", ErrRejected, err)
		}
		return Message{Type: t, Attendees: m.Attendees}, nil
	default:
		return Message{}, fmt.Errorf("%w: message type %q", ErrRejected, t)
	}
}
