package message

// Kind identifies a server to client frame by its "msg" field.
type Kind int

const (
	KindUnhandled Kind = iota
	KindConnected
	KindFailed
	KindPing
	KindPong
	KindNoSub
	KindAdded
	KindChanged
	KindRemoved
	KindReady
	KindAddedBefore
	KindMovedBefore
	KindResult
	KindUpdated
	KindError
)

var kindNames = [...]string{
	KindUnhandled:   "unhandled",
	KindConnected:   "connected",
	KindFailed:      "failed",
	KindPing:        "ping",
	KindPong:        "pong",
	KindNoSub:       "nosub",
	KindAdded:       "added",
	KindChanged:     "changed",
	KindRemoved:     "removed",
	KindReady:       "ready",
	KindAddedBefore: "addedBefore",
	KindMovedBefore: "movedBefore",
	KindResult:      "result",
	KindUpdated:     "updated",
	KindError:       "error",
}

var kindsByName = func() map[string]Kind {
	m := make(map[string]Kind, len(kindNames))
	for k, name := range kindNames {
		if Kind(k) != KindUnhandled {
			m[name] = Kind(k)
		}
	}
	return m
}()

// ParseKind maps a "msg" value to its Kind. Unknown tags map to KindUnhandled.
func ParseKind(tag string) Kind {
	if k, ok := kindsByName[tag]; ok {
		return k
	}
	return KindUnhandled
}

// String returns the wire tag for k.
func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return kindNames[KindUnhandled]
	}
	return kindNames[k]
}

// IsData reports whether k carries collection data.
func (k Kind) IsData() bool {
	switch k {
	case KindAdded, KindChanged, KindRemoved, KindAddedBefore, KindMovedBefore:
		return true
	}
	return false
}
