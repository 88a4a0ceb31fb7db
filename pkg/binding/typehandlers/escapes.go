package typehandlers

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// escapedBackslash is written in place of a backslash that would otherwise be
// read back as the start of a \uXXXX escape
const escapedBackslash = `\u005c`

// unicodeEscapeAt returns the rune encoded by a \uXXXX sequence starting at i
func unicodeEscapeAt(s string, i int) (rune, bool) {
	if i+6 > len(s) || s[i] != '\\' || s[i+1] != 'u' {
		return 0, false
	}

	for _, c := range s[i+2 : i+6] {
		if !strings.ContainsRune("0123456789abcdefABCDEF", c) {
			return 0, false
		}
	}

	r, err := strconv.ParseUint(s[i+2:i+6], 16, 32)
	if err != nil {
		return 0, false
	}

	return rune(r), true
}

// decodeUnicodeEscapes replaces every \uXXXX sequence with the rune it encodes.
// Malformed sequences are kept as they are.
func decodeUnicodeEscapes(s string) string {
	if !strings.Contains(s, `\u`) {
		return s
	}

	var sb strings.Builder
	sb.Grow(len(s))

	for i := 0; i < len(s); {
		if r, ok := unicodeEscapeAt(s, i); ok {
			sb.WriteRune(r)
			i += 6
			continue
		}
		sb.WriteByte(s[i])
		i++
	}

	return sb.String()
}

// encodeUnicodeEscapes is the inverse of decodeUnicodeEscapes. Only backslashes
// that start a well formed \uXXXX sequence need to be escaped.
func encodeUnicodeEscapes(s string) string {
	if !strings.Contains(s, `\u`) {
		return s
	}

	var sb strings.Builder
	sb.Grow(len(s) + 5)

	for i := 0; i < len(s); i++ {
		if _, ok := unicodeEscapeAt(s, i); ok {
			sb.WriteString(escapedBackslash)
			continue
		}
		sb.WriteByte(s[i])
	}

	return sb.String()
}

// A text list is written as comma separated elements. Within an element a
// backslash makes the next character literal, and \uXXXX is a unicode escape.
// Unescaped whitespace around an element is trimmed and blank elements are
// skipped. An element that is exactly \0 is the empty string and an input that
// is exactly \- is an empty, but not nil, list.
const (
	listSeparator    = ','
	emptyElement     = `\0`
	emptyList        = `\-`
	listEscapePrefix = '\\'
)

type listRune struct {
	r       rune
	escaped bool
}

func decodeTextList(external string) ([]string, error) {
	if strings.TrimSpace(external) == emptyList {
		return []string{}, nil
	}

	var values []string
	var element []listRune

	flush := func() {
		start, end := 0, len(element)
		for start < end && !element[start].escaped && unicode.IsSpace(element[start].r) {
			start++
		}
		for end > start && !element[end-1].escaped && unicode.IsSpace(element[end-1].r) {
			end--
		}

		trimmed := element[start:end]
		element = element[:0]

		if len(trimmed) == 0 {
			return
		}

		if len(trimmed) == 1 && trimmed[0].escaped && trimmed[0].r == '0' {
			values = append(values, "")
			return
		}

		var sb strings.Builder
		for _, lr := range trimmed {
			sb.WriteRune(lr.r)
		}
		values = append(values, sb.String())
	}

	for i := 0; i < len(external); {
		if r, ok := unicodeEscapeAt(external, i); ok {
			element = append(element, listRune{r: r, escaped: true})
			i += 6
			continue
		}

		if external[i] == listEscapePrefix {
			if i+1 == len(external) {
				return nil, fmt.Errorf("text list ends with an incomplete escape")
			}
			r, size := utf8.DecodeRuneInString(external[i+1:])
			element = append(element, listRune{r: r, escaped: true})
			i += 1 + size
			continue
		}

		if external[i] == listSeparator {
			flush()
			i++
			continue
		}

		r, size := utf8.DecodeRuneInString(external[i:])
		element = append(element, listRune{r: r})
		i += size
	}

	flush()

	return values, nil
}

// FormatTextList writes a list of strings in the external form read by the
// TextList handler
func FormatTextList(native []string) string {
	if native == nil {
		return ""
	}

	if len(native) == 0 {
		return emptyList
	}

	elements := make([]string, 0, len(native))

	for _, v := range native {
		if v == "" {
			elements = append(elements, emptyElement)
			continue
		}

		runes := []rune(v)
		first, last := 0, len(runes)-1
		for first <= last && unicode.IsSpace(runes[first]) {
			first++
		}
		for last >= first && unicode.IsSpace(runes[last]) {
			last--
		}

		var sb strings.Builder
		for i, r := range runes {
			if r == listSeparator || r == listEscapePrefix || i < first || i > last {
				sb.WriteRune(listEscapePrefix)
			}
			sb.WriteRune(r)
		}
		elements = append(elements, sb.String())
	}

	return strings.Join(elements, string(listSeparator))
}
