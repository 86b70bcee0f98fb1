// Package util holds small string helpers for command lines sent by the
// engine console.
package util

import "strings"

// TrimQuotes removes leading and trailing double quotes from a string.
func TrimQuotes(s string) string {
	return strings.Trim(s, `"`)
}

// FixEscapeQuotes replaces escaped double quotes ("") with single double quotes (").
func FixEscapeQuotes(s string) string {
	return strings.ReplaceAll(s, `""`, `"`)
}

// CleanArgs trims quotes and unescapes every argument in place.
func CleanArgs(args []string) []string {
	for i, v := range args {
		args[i] = FixEscapeQuotes(TrimQuotes(v))
	}
	return args
}

// SplitCommand tokenizes a console line the way the engine does: tokens are
// separated by whitespace, a double-quoted token may contain spaces, and
// "//" starts a comment outside quotes. The first token is the command.
func SplitCommand(line string) (command string, args []string) {
	var tokens []string
	var cur strings.Builder
	inQuotes, inToken := false, false

	flush := func() {
		if inToken {
			tokens = append(tokens, cur.String())
			cur.Reset()
			inToken = false
		}
	}

	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '"':
			if inQuotes {
				inQuotes = false
				flush()
				continue
			}
			flush()
			inQuotes, inToken = true, true
		case inQuotes:
			cur.WriteByte(c)
		case c == '/' && i+1 < len(line) && line[i+1] == '/':
			flush()
			i = len(line)
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			flush()
		default:
			cur.WriteByte(c)
			inToken = true
		}
	}
	flush()

	if len(tokens) == 0 {
		return "", nil
	}
	return tokens[0], tokens[1:]
}

// Contains reports whether s is one of slice's elements.
func Contains(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}
