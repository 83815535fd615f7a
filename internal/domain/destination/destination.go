// Package destination models where an owner's change notifications go:
// an optional configured chat plus the list of chats the bot has been seen
// in, so a broken configuration can fall back to something that works.
package destination

import "time"

// Known is one chat the bot has been added to on behalf of an owner.
type Known struct {
	ChatID  int64     `json:"chat_id"`
	Title   string    `json:"title,omitempty"`
	Type    string    `json:"type,omitempty"`
	AddedAt time.Time `json:"added_at"`
}

// Settings holds one owner's notification routing.
type Settings struct {
	// NotificationChatID is the explicitly configured destination; nil means
	// unconfigured (user scope falls back to direct messages, shared scope
	// skips delivery).
	NotificationChatID *int64  `json:"notification_chat_id,omitempty"`
	KnownChats         []Known `json:"known_chats,omitempty"`
}

// Document is the full persisted destination registry keyed by owner key.
type Document map[string]*Settings

// Clone returns a deep copy of the document.
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for key, s := range d {
		cp := &Settings{}
		if s.NotificationChatID != nil {
			id := *s.NotificationChatID
			cp.NotificationChatID = &id
		}
		if s.KnownChats != nil {
			cp.KnownChats = make([]Known, len(s.KnownChats))
			copy(cp.KnownChats, s.KnownChats)
		}
		out[key] = cp
	}
	return out
}
