package runner

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnterminatedQuote is returned by Tokenize when the input ends inside a
// double-quoted section.
var ErrUnterminatedQuote = errors.New("unterminated quote")

// Tokenize splits a shell-like argument string into discrete tokens.
//
// Whitespace outside double quotes separates tokens and a double quote toggles
// quoted mode. Inside quotes a backslash only escapes a double quote; any other
// escaped character keeps its backslash, so `\n` stays `\n`.
func Tokenize(s string) ([]string, error) {
	var (
		tokens   []string
		current  strings.Builder
		inQuotes bool
		escaped  bool
	)

	appendRune := func(c rune) {
		if escaped && c != '"' {
			current.WriteRune('\\')
		}
		current.WriteRune(c)
		escaped = false
	}

	for _, c := range s {
		switch {
		case c == '"':
			if escaped {
				appendRune(c)
			} else {
				inQuotes = !inQuotes
			}
		case c == '\\' && escaped:
			appendRune(c)
		case c == '\\' && inQuotes:
			escaped = true
		case (c == ' ' || c == '\t') && !inQuotes:
			if current.Len() > 0 {
				tokens = append(tokens, current.String())
				current.Reset()
			}
		default:
			appendRune(c)
		}
	}

	if inQuotes {
		return nil, fmt.Errorf("tokenize %q: %w", s, ErrUnterminatedQuote)
	}

	if current.Len() > 0 {
		if last := strings.TrimSpace(current.String()); last != "" {
			tokens = append(tokens, last)
		}
	}

	return tokens, nil
}
