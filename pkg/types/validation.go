package types

import (
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

var roomCodeRegex = regexp.MustCompile(`^[A-Z0-9]{4,12}$`)

// DefaultUsername is substituted when a client joins without a name,
// matching the fallback the clients expect.
const DefaultUsername = "Anonymous"

// NormalizeRoomCode upper-cases and trims an externally supplied room
// code. Codes compare case-insensitively everywhere.
func NormalizeRoomCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidateRoomCode checks a normalized room code.
func ValidateRoomCode(code string) error {
	if !roomCodeRegex.MatchString(code) {
		return ErrInvalidRoomCode
	}
	return nil
}

// NormalizeUsername trims the supplied display name and falls back to
// DefaultUsername when empty.
func NormalizeUsername(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return DefaultUsername, nil
	}
	if utf8.RuneCountInString(name) > 50 {
		return "", ErrInvalidUsername
	}
	return name, nil
}

// Validate checks an outbound chat payload before it is persisted.
// maxLen is the configured text cap in runes.
func (m *ChatMessage) Validate(maxLen int) error {
	if m.Text == "" && m.ImageURL == "" {
		return ErrEmptyMessage
	}
	if utf8.RuneCountInString(m.Text) > maxLen {
		return ErrMessageTooLong
	}
	if m.ImageURL != "" {
		u, err := url.Parse(m.ImageURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return ErrInvalidImageURL
		}
	}
	return nil
}
