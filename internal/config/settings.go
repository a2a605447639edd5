package config

import (
	"os"

	"github.com/BurntSushi/toml"
)

// Settings is the read side of user preferences consulted by the
// reconciliation engine. Implementations must resolve per-conversation
// overrides before falling back to defaults.
type Settings interface {
	// AutoarchiveNewChats reports whether conversations created on first
	// contact start archived and muted. Defaults to false.
	AutoarchiveNewChats() bool
	// SendReadCheckmarks reports whether opening the given conversation
	// sends a mark_as_read request. A per-conversation override beats the
	// default; the default is true.
	SendReadCheckmarks(conversationID string) bool
	// ShowTypingIndicators reports whether inbound typing indicators are
	// tracked at all. Defaults to true.
	ShowTypingIndicators() bool
}

// FileSettings reads the per-profile settings.toml.
type FileSettings struct {
	Autoarchive    *bool                           `toml:"autoarchive_new_chats"`
	ReadCheckmarks *bool                           `toml:"send_read_checkmarks_by_default"`
	Typing         *bool                           `toml:"show_typing_indicators_by_default"`
	Conversations  map[string]ConversationSettings `toml:"conversations"`
}

// ConversationSettings holds per-conversation overrides.
type ConversationSettings struct {
	SendReadCheckmarks *bool `toml:"send_read_checkmarks"`
}

// LoadSettings reads settings from the given path. A missing file yields
// all defaults rather than an error.
func LoadSettings(path string) (*FileSettings, error) {
	var s FileSettings
	_, err := toml.DecodeFile(path, &s)
	if os.IsNotExist(err) {
		return &FileSettings{}, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *FileSettings) AutoarchiveNewChats() bool {
	if s.Autoarchive != nil {
		return *s.Autoarchive
	}
	return false
}

func (s *FileSettings) SendReadCheckmarks(conversationID string) bool {
	if cs, ok := s.Conversations[conversationID]; ok && cs.SendReadCheckmarks != nil {
		return *cs.SendReadCheckmarks
	}
	if s.ReadCheckmarks != nil {
		return *s.ReadCheckmarks
	}
	return true
}

func (s *FileSettings) ShowTypingIndicators() bool {
	if s.Typing != nil {
		return *s.Typing
	}
	return true
}
