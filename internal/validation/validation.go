package validation

import (
	"os"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

var messageTypeRe = regexp.MustCompile(`^[a-z][a-z0-9_]{0,31}$`)

func MaxMessageLength() int {
	maxStr := os.Getenv("MAX_MESSAGE_LENGTH")
	if maxStr == "" {
		return 4000
	}
	max, err := strconv.Atoi(maxStr)
	if err != nil || max < 1 {
		return 4000
	}
	return max
}

func MaxChatTitleLength() int {
	return 128
}

// TrimAndLimit trims surrounding whitespace and caps the byte length,
// backing up to a rune boundary so a multibyte character is never cut in
// half.
func TrimAndLimit(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// ValidateMessageType accepts "text" and any other short lowercase type tag;
// the set is open so clients can introduce kinds like stickers without a
// server change.
func ValidateMessageType(t string) bool {
	return messageTypeRe.MatchString(t)
}

func ValidateChatTitle(title string) bool {
	title = strings.TrimSpace(title)
	return title != "" && len(title) <= MaxChatTitleLength()
}

func ValidateID(id string) bool {
	return strings.TrimSpace(id) != ""
}
