package types

import (
	"strings"
	"testing"
)

func TestNormalizeRoomCode(t *testing.T) {
	cases := []struct {
		in       string
		expected string
	}{
		{"ab12cd", "AB12CD"},
		{"  AB12CD  ", "AB12CD"},
		{"room42", "ROOM42"},
	}

	for _, tc := range cases {
		if got := NormalizeRoomCode(tc.in); got != tc.expected {
			t.Errorf("NormalizeRoomCode(%q) = %q, want %q", tc.in, got, tc.expected)
		}
	}
}

func TestValidateRoomCode(t *testing.T) {
	valid := []string{"AB12", "AB12CD", "ROOM42SEVEN1"}
	for _, code := range valid {
		if err := ValidateRoomCode(code); err != nil {
			t.Errorf("code %q should be valid: %v", code, err)
		}
	}

	invalid := []string{"", "ABC", "ab12cd", "AB 12", "AB12CD34EF56G", "AB-12"}
	for _, code := range invalid {
		if err := ValidateRoomCode(code); err == nil {
			t.Errorf("code %q should be invalid", code)
		}
	}
}

func TestNormalizeUsername(t *testing.T) {
	name, err := NormalizeUsername("  Alice  ")
	if err != nil || name != "Alice" {
		t.Errorf("expected Alice, got %q (%v)", name, err)
	}

	name, err = NormalizeUsername("")
	if err != nil || name != DefaultUsername {
		t.Errorf("empty name should fall back to %q, got %q (%v)", DefaultUsername, name, err)
	}

	if _, err := NormalizeUsername(strings.Repeat("x", 51)); err != ErrInvalidUsername {
		t.Errorf("expected ErrInvalidUsername for long name, got %v", err)
	}
}

func TestChatMessageValidate(t *testing.T) {
	msg := &ChatMessage{Text: "hello"}
	if err := msg.Validate(2000); err != nil {
		t.Errorf("plain text message should be valid: %v", err)
	}

	msg = &ChatMessage{}
	if err := msg.Validate(2000); err != ErrEmptyMessage {
		t.Errorf("expected ErrEmptyMessage, got %v", err)
	}

	msg = &ChatMessage{Text: strings.Repeat("a", 2001)}
	if err := msg.Validate(2000); err != ErrMessageTooLong {
		t.Errorf("expected ErrMessageTooLong, got %v", err)
	}

	msg = &ChatMessage{ImageURL: "https://cdn.example.com/img.jpg"}
	if err := msg.Validate(2000); err != nil {
		t.Errorf("image message should be valid: %v", err)
	}

	msg = &ChatMessage{ImageURL: "ftp://example.com/img.jpg"}
	if err := msg.Validate(2000); err != ErrInvalidImageURL {
		t.Errorf("expected ErrInvalidImageURL, got %v", err)
	}
}
