// Package message decodes server frames into a loosely typed envelope.
//
// A Message keeps every attribute of the frame it was decoded from, including
// ones this package knows nothing about, and exposes typed accessors that
// return zero values instead of failing when a field is missing or has an
// unexpected shape.
package message

import (
	"encoding/json"
	"fmt"
	"maps"
)

const (
	// ParseErrorReason is the reason carried by messages synthesized for
	// frames that are not a JSON object.
	ParseErrorReason = "Parse error"

	parseErrorDetails = "unable to parse message: %s"
)

// Attribute names used by the protocol.
const (
	AttrMsg              = "msg"
	AttrSession          = "session"
	AttrVersion          = "version"
	AttrSupport          = "support"
	AttrID               = "id"
	AttrName             = "name"
	AttrParams           = "params"
	AttrCollection       = "collection"
	AttrFields           = "fields"
	AttrCleared          = "cleared"
	AttrBefore           = "before"
	AttrMethod           = "method"
	AttrRandomSeed       = "randomSeed"
	AttrResult           = "result"
	AttrMethods          = "methods"
	AttrSubs             = "subs"
	AttrError            = "error"
	AttrReason           = "reason"
	AttrDetails          = "details"
	AttrOffendingMessage = "offendingMessage"
)

// Message is one decoded frame. It is read-only after Decode returns and safe
// to share between goroutines.
type Message struct {
	attrs map[string]any
}

// Decode parses raw as a JSON object. It never fails: text that is not a JSON
// object becomes a KindError message whose details embed raw.
func Decode(raw string) Message {
	var attrs map[string]any
	if err := json.Unmarshal([]byte(raw), &attrs); err != nil || attrs == nil {
		return Message{attrs: map[string]any{
			AttrMsg:     KindError.String(),
			AttrReason:  ParseErrorReason,
			AttrDetails: fmt.Sprintf(parseErrorDetails, raw),
		}}
	}
	return Message{attrs: attrs}
}

// New wraps an attribute map. The map must not be modified afterwards.
func New(attrs map[string]any) Message {
	if attrs == nil {
		attrs = map[string]any{}
	}
	return Message{attrs: attrs}
}

// Kind returns the kind named by the "msg" attribute.
func (m Message) Kind() Kind {
	tag, ok := m.attrs[AttrMsg].(string)
	if !ok {
		return KindUnhandled
	}
	return ParseKind(tag)
}

// IsError reports whether m is an error frame or carries an embedded error
// object, as failed method results and stopped subscriptions do.
func (m Message) IsError() bool {
	if m.Kind() == KindError {
		return true
	}
	_, ok := m.attrs[AttrError].(map[string]any)
	return ok
}

// Has reports whether name is present and not null.
func (m Message) Has(name string) bool {
	v, ok := m.attrs[name]
	return ok && v != nil
}

// Get returns the raw value of name, or nil.
func (m Message) Get(name string) any {
	return m.attrs[name]
}

// Attributes returns a shallow copy of the attribute map.
func (m Message) Attributes() map[string]any {
	return maps.Clone(m.attrs)
}

// String renders the attribute map as JSON.
func (m Message) String() string {
	data, err := json.Marshal(m.attrs)
	if err != nil {
		return fmt.Sprintf("%v", m.attrs)
	}
	return string(data)
}

func (m Message) Session() string          { return m.str(AttrSession) }
func (m Message) Version() string          { return m.str(AttrVersion) }
func (m Message) ID() string               { return m.str(AttrID) }
func (m Message) Name() string             { return m.str(AttrName) }
func (m Message) Collection() string       { return m.str(AttrCollection) }
func (m Message) Method() string           { return m.str(AttrMethod) }
func (m Message) Before() string           { return m.str(AttrBefore) }
func (m Message) Reason() string           { return m.str(AttrReason) }
func (m Message) Details() string          { return m.str(AttrDetails) }
func (m Message) OffendingMessage() string { return m.str(AttrOffendingMessage) }

func (m Message) Support() []string { return m.strings(AttrSupport) }
func (m Message) Cleared() []string { return m.strings(AttrCleared) }
func (m Message) Methods() []string { return m.strings(AttrMethods) }
func (m Message) Subs() []string    { return m.strings(AttrSubs) }

// Params returns the call or subscription parameters.
func (m Message) Params() []any {
	params, _ := m.attrs[AttrParams].([]any)
	return params
}

// Fields returns the document fields of a data message.
func (m Message) Fields() map[string]any {
	fields, _ := m.attrs[AttrFields].(map[string]any)
	return fields
}

// RandomSeed is opaque; its shape is chosen by the caller of the method.
func (m Message) RandomSeed() any {
	return m.attrs[AttrRandomSeed]
}

// Result is opaque; the caller interprets it by the method it called.
func (m Message) Result() any {
	return m.attrs[AttrResult]
}

// ProtocolError returns the embedded error object, or nil if there is none.
func (m Message) ProtocolError() *ProtocolError {
	obj, ok := m.attrs[AttrError].(map[string]any)
	if !ok {
		return nil
	}
	return NewProtocolError(obj)
}

func (m Message) str(name string) string {
	s, _ := m.attrs[name].(string)
	return s
}

// strings returns the string elements of an array attribute, skipping any
// element that is not a string.
func (m Message) strings(name string) []string {
	items, ok := m.attrs[name].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
