package bus

import "fmt"

// InboundMessage is a command invocation received from any chat platform.
type InboundMessage struct {
	Channel  string            // source platform ("discord", "slack", "telegram")
	SenderID string            // invoking user
	ChatID   string            // chat the command was issued in
	Content  string            // raw text as typed, for platforms without structured options
	Command  string            // command name without prefix, e.g. "schedule"
	Args     map[string]string // named options, already parsed when the platform supports it
	Metadata map[string]string // platform-specific values echoed back on the reply
}

// Arg returns a named option or "".
func (m InboundMessage) Arg(name string) string {
	if m.Args == nil {
		return ""
	}
	return m.Args[name]
}

// ReplyKey identifies the conversation a reply goes back to: "channel:chatID".
func (m InboundMessage) ReplyKey() string {
	return fmt.Sprintf("%s:%s", m.Channel, m.ChatID)
}

// Outbound message types.
const (
	TypeText  = "text"
	TypeError = "error"
)

// OutboundMessage is a reply or notification sent to a chat.
type OutboundMessage struct {
	Channel  string            // target platform
	ChatID   string            // target chat
	Content  string            // text content
	Type     string            // TypeText or TypeError
	ReplyTo  string            // optional message ID to reply to
	Metadata map[string]string // e.g. "interaction_id" for deferred Discord replies
}

// Reply builds the outbound reply for an inbound command, carrying its metadata.
func (m InboundMessage) Reply(content, typ string) OutboundMessage {
	return OutboundMessage{
		Channel:  m.Channel,
		ChatID:   m.ChatID,
		Content:  content,
		Type:     typ,
		ReplyTo:  m.Metadata["message_id"],
		Metadata: m.Metadata,
	}
}
