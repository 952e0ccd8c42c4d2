package music

// ChatKind distinguishes one-to-one chats from multi-party ones.
type ChatKind int

const (
	Direct ChatKind = iota
	Group
)

func (k ChatKind) String() string {
	if k == Group {
		return "group"
	}
	return "direct"
}

// InboundMessage is the transport-neutral view of a chat message.
type InboundMessage struct {
	ChatID   int64
	ChatKind ChatKind
	Text     string
}
