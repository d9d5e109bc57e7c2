package structure

import (
	"errors"
	"fmt"
)

// Common errors
var (
	ErrNoStartXref    = errors.New("no startxref found")
	ErrNoTrailer      = errors.New("no trailer dictionary found")
	ErrNoRoot         = errors.New("no Root entry in trailer")
	ErrNoPages        = errors.New("no Pages entry in catalog")
	ErrObjectNotFound = errors.New("object not found")
	ErrUnterminated   = errors.New("unterminated dictionary or array")
	ErrNoMediaBox     = errors.New("no MediaBox found")
)

// ScanDict returns the end index (exclusive) of the dictionary opening at
// start, which must point at "<<". Nested dictionaries are tracked with a
// depth counter; literal strings are skipped so that parentheses or
// delimiter characters inside them do not perturb the depth. Backslash
// escapes inside strings are skipped without interpretation.
func ScanDict(text string, start int) (int, error) {
	if start+1 >= len(text) || text[start] != '<' || text[start+1] != '<' {
		return 0, fmt.Errorf("%w: no dictionary at offset %d", ErrUnterminated, start)
	}

	depth := 0
	i := start
	for i < len(text) {
		switch text[i] {
		case '<':
			if i+1 < len(text) && text[i+1] == '<' {
				depth++
				i += 2
				continue
			}
		case '>':
			if i+1 < len(text) && text[i+1] == '>' {
				depth--
				if depth == 0 {
					return i + 2, nil
				}
				i += 2
				continue
			}
		case '(':
			end, err := skipString(text, i)
			if err != nil {
				return 0, err
			}
			i = end
			continue
		}
		i++
	}

	return 0, fmt.Errorf("%w: dictionary at offset %d", ErrUnterminated, start)
}

// ScanArray returns the end index (exclusive) of the array opening at
// start, which must point at "[". The same string-skipping rules as
// ScanDict apply; brackets belonging to nested arrays balance out.
func ScanArray(text string, start int) (int, error) {
	if start >= len(text) || text[start] != '[' {
		return 0, fmt.Errorf("%w: no array at offset %d", ErrUnterminated, start)
	}

	depth := 0
	i := start
	for i < len(text) {
		switch text[i] {
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return i + 1, nil
			}
		case '(':
			end, err := skipString(text, i)
			if err != nil {
				return 0, err
			}
			i = end
			continue
		}
		i++
	}

	return 0, fmt.Errorf("%w: array at offset %d", ErrUnterminated, start)
}

// ScanValue scans the dictionary or array value opening at start and
// returns its end index. The first byte decides which scanner applies.
func ScanValue(text string, start int) (int, error) {
	if start < len(text) && text[start] == '[' {
		return ScanArray(text, start)
	}
	return ScanDict(text, start)
}

// skipString returns the index just past the literal string opening at
// start. PDF literal strings may contain balanced unescaped parentheses.
func skipString(text string, start int) (int, error) {
	depth := 0
	i := start
	for i < len(text) {
		switch text[i] {
		case '\\':
			i += 2
			continue
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i + 1, nil
			}
		}
		i++
	}
	return 0, fmt.Errorf("%w: string at offset %d", ErrUnterminated, start)
}

func isWhitespace(c byte) bool {
	switch c {
	case ' ', '\n', '\r', '\t', '\f', 0:
		return true
	}
	return false
}

// skipSpace returns the index of the first non-whitespace byte at or
// after start.
func skipSpace(text string, start int) int {
	i := start
	for i < len(text) && isWhitespace(text[i]) {
		i++
	}
	return i
}
