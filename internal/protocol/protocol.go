package protocol

import "encoding/json"

const Version = "1.0"

// Message tags. The server pushes everything except TypeClick and
// TypePing, which the client emits.
const (
	TypeState               = "game:state"
	TypeEnergyUpdate        = "energy:update"
	TypeAutoClickerEarnings = "autoclicker:earnings"
	TypeClickResult         = "game:click:result"
	TypeTaskCompleted       = "task:completed"
	TypeTaskClaimed         = "task:claimed"
	TypeServicePurchased    = "service:purchased"
	TypeError               = "error"

	TypeClick = "game:click"
	TypePing  = "user:ping"
)

// BaseMessage lets us route unknown JSON messages by type.
// Unrecognized tags are dropped by the caller, never fatal.
type BaseMessage struct {
	Type string `json:"type"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}

// Envelope is the wire frame for every message on the push channel.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

func Encode(tag string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: tag, Data: raw})
}

func DecodeEnvelope(b []byte) (Envelope, error) {
	var e Envelope
	err := json.Unmarshal(b, &e)
	return e, err
}
