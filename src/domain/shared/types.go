package shared

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// Nickname is the author-supplied name a score is recorded under.
// Comparison is case-sensitive; only surrounding whitespace is insignificant.
type Nickname string

// Normalize trims surrounding whitespace.
func (n Nickname) Normalize() Nickname {
	return Nickname(strings.TrimSpace(string(n)))
}

// Validate ensures the nickname is not blank.
func (n Nickname) Validate() error {
	if strings.TrimSpace(string(n)) == "" {
		return errors.New("nickname is required")
	}
	return nil
}

// Len counts characters, not bytes.
func (n Nickname) Len() int {
	return utf8.RuneCountInString(string(n))
}

func (n Nickname) String() string {
	return string(n)
}
