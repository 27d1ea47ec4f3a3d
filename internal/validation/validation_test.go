package validation

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestValidateMessageType(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"text", "text", true},
		{"sticker", "sticker", true},
		{"custom tag", "voice_note2", true},
		{"empty", "", false},
		{"uppercase", "Text", false},
		{"spaces", "my type", false},
		{"leading digit", "2fast", false},
		{"too long", strings.Repeat("a", 33), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidateMessageType(tt.input); got != tt.want {
				t.Errorf("ValidateMessageType(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestValidateChatTitle(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"simple", "General", true},
		{"empty", "", false},
		{"whitespace only", "   ", false},
		{"max length", strings.Repeat("a", MaxChatTitleLength()), true},
		{"over max", strings.Repeat("a", MaxChatTitleLength()+1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidateChatTitle(tt.input); got != tt.want {
				t.Errorf("ValidateChatTitle(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestTrimAndLimit(t *testing.T) {
	tests := []struct {
		name  string
		input string
		max   int
		want  string
	}{
		{"trims whitespace", "  hello  ", 100, "hello"},
		{"under limit", "hello", 10, "hello"},
		{"truncates", "hello world", 5, "hello"},
		{"zero max keeps all", "hello", 0, "hello"},
		{"multibyte backs up to rune boundary", "ééé", 5, "éé"},
		{"multibyte exactly fits", "éé", 4, "éé"},
		{"emoji cut mid-rune", "a\U0001F600", 3, "a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TrimAndLimit(tt.input, tt.max)
			if got != tt.want {
				t.Errorf("TrimAndLimit(%q, %d) = %q, want %q", tt.input, tt.max, got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Errorf("TrimAndLimit(%q, %d) produced invalid UTF-8 %q", tt.input, tt.max, got)
			}
		})
	}
}

func TestMaxMessageLengthFromEnv(t *testing.T) {
	t.Setenv("MAX_MESSAGE_LENGTH", "100")
	if got := MaxMessageLength(); got != 100 {
		t.Errorf("MaxMessageLength() = %d, want 100", got)
	}

	t.Setenv("MAX_MESSAGE_LENGTH", "not-a-number")
	if got := MaxMessageLength(); got != 4000 {
		t.Errorf("MaxMessageLength() with bad env = %d, want default 4000", got)
	}

	t.Setenv("MAX_MESSAGE_LENGTH", "")
	if got := MaxMessageLength(); got != 4000 {
		t.Errorf("MaxMessageLength() unset = %d, want default 4000", got)
	}
}

func TestValidateID(t *testing.T) {
	if !ValidateID("abc-123") {
		t.Error("expected valid id")
	}
	if ValidateID("") || ValidateID("   ") {
		t.Error("expected blank ids to be rejected")
	}
}
