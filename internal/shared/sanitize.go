package shared

import (
	"regexp"
	"strings"
)

const (
	// MaxNameLength caps loosely sanitized display names.
	MaxNameLength = 120
	// MaxIDLength caps strongly sanitized path identifiers.
	MaxIDLength = 64
	// DefaultID replaces identifiers that sanitize to nothing.
	DefaultID = "default"
)

var (
	unsafeChars = strings.NewReplacer(
		`\`, "_", "/", "_", ":", "_", "*", "_", "?", "_",
		`"`, "_", "<", "_", ">", "_", "|", "_",
	)
	// matches everything [strings.TrimSpace] trims, so trimming never exposes new whitespace
	whitespaceRun = regexp.MustCompile(`[\s\v\x{85}\p{Z}]+`)
	dotRun        = regexp.MustCompile(`\.+`)
)

// Sanitize makes s safe to use as a file or directory name while keeping it readable.
//
// Path separators and characters reserved on common filesystems become "_", whitespace runs collapse to a single space
// and the result is trimmed and capped at [MaxNameLength] runes.
// Applying it twice yields the same string.
func Sanitize(s string) string {
	s = unsafeChars.Replace(s)
	s = whitespaceRun.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	s = truncateRunes(s, MaxNameLength)
	return strings.TrimSpace(s)
}

// StrongSanitize reduces s to an identifier that can never name a hidden or parent directory.
//
// Dots and whitespace are replaced with "_" in addition to the characters handled by [Sanitize].
// The result is at most [MaxIDLength] runes and falls back to [DefaultID] when empty.
func StrongSanitize(s string) string {
	s = strings.TrimSpace(s)
	s = unsafeChars.Replace(s)
	s = dotRun.ReplaceAllString(s, "_")
	s = whitespaceRun.ReplaceAllString(s, "_")
	s = truncateRunes(s, MaxIDLength)
	if s == "" {
		return DefaultID
	}
	return s
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
