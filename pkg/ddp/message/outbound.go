package message

import "encoding/json"

// ProtocolVersion is the version proposed in the connect handshake.
const ProtocolVersion = "1"

// SupportedVersions lists the versions offered to the server, most preferred
// first.
var SupportedVersions = []string{"1", "pre2", "pre1"}

// Client to server message tags. Server to client tags are Kinds.
const (
	TagConnect = "connect"
	TagMethod  = "method"
	TagSub     = "sub"
	TagUnsub   = "unsub"
	TagPing    = "ping"
	TagPong    = "pong"
)

// Outbound is a client to server frame.
type Outbound struct {
	Msg        string   `json:"msg"`
	Session    string   `json:"session,omitempty"`
	Version    string   `json:"version,omitempty"`
	Support    []string `json:"support,omitempty"`
	ID         string   `json:"id,omitempty"`
	Method     string   `json:"method,omitempty"`
	Name       string   `json:"name,omitempty"`
	Params     []any    `json:"params,omitempty"`
	RandomSeed any      `json:"randomSeed,omitempty"`
}

// Marshal encodes the frame as JSON text. Method frames always carry a params
// array, even an empty one.
func (o Outbound) Marshal() ([]byte, error) {
	if o.Msg != TagMethod {
		return json.Marshal(o)
	}

	type plain Outbound
	params := o.Params
	if params == nil {
		params = []any{}
	}
	return json.Marshal(struct {
		plain
		Params []any `json:"params"`
	}{plain(o), params})
}

// ConnectFrame opens a session. session resumes a previous one when non-empty.
func ConnectFrame(session string) Outbound {
	return Outbound{
		Msg:     TagConnect,
		Session: session,
		Version: ProtocolVersion,
		Support: SupportedVersions,
	}
}

// MethodFrame invokes a remote method.
func MethodFrame(id, method string, params []any, randomSeed any) Outbound {
	return Outbound{
		Msg:        TagMethod,
		ID:         id,
		Method:     method,
		Params:     params,
		RandomSeed: randomSeed,
	}
}

// SubFrame starts a subscription.
func SubFrame(id, name string, params []any) Outbound {
	return Outbound{
		Msg:    TagSub,
		ID:     id,
		Name:   name,
		Params: params,
	}
}

// UnsubFrame stops a subscription.
func UnsubFrame(id string) Outbound {
	return Outbound{Msg: TagUnsub, ID: id}
}

func PingFrame(id string) Outbound {
	return Outbound{Msg: TagPing, ID: id}
}

func PongFrame(id string) Outbound {
	return Outbound{Msg: TagPong, ID: id}
}
