// Package resources extracts and merges page resource dictionaries. Only
// the raw text of each resource category is handled; entries are never
// interpreted beyond the name/reference pairs needed for merging.
package resources

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/georgepadayatti/incpdf/pdf/structure"
)

// Common errors
var (
	ErrMalformed = errors.New("malformed Resources dictionary")
)

// CategoryNames is the fixed set of recognized resource categories. A
// category not on this list is dropped during merging.
var CategoryNames = []string{
	"ExtGState",
	"ColorSpace",
	"Pattern",
	"Shading",
	"XObject",
	"Font",
	"ProcSet",
}

// Categories maps a resource category name to the raw text of its value,
// either a "<<...>>" dictionary or a "[...]" array.
type Categories map[string]string

// Resolver resolves an indirect object number to its raw dictionary text.
type Resolver func(num int) (string, error)

var resourcesRegex = regexp.MustCompile(`/Resources\s*(<<|(\d+)\s+\d+\s+R)`)

// entryRegex matches a /Name N G R pair inside a resource category
// dictionary.
var entryRegex = regexp.MustCompile(`/([^\s/<>\[\]()]+)\s+(\d+\s+\d+\s+R)`)

// Parse extracts the resource categories of a page dictionary. An inline
// /Resources dictionary is scanned in place; an indirect reference is
// resolved through the supplied resolver first.
func Parse(pageDict string, resolve Resolver) (Categories, error) {
	m := resourcesRegex.FindStringSubmatchIndex(pageDict)
	if m == nil {
		return Categories{}, nil
	}

	if pageDict[m[2]:m[2]+2] == "<<" {
		end, err := structure.ScanDict(pageDict, m[2])
		if err != nil {
			return nil, fmt.Errorf("%w: Resources dictionary", ErrMalformed)
		}
		return splitCategories(pageDict[m[2]:end])
	}

	num, _ := strconv.Atoi(pageDict[m[4]:m[5]])
	dict, err := resolve(num)
	if err != nil {
		return nil, fmt.Errorf("%w: Resources object %d", ErrMalformed, num)
	}
	return splitCategories(dict)
}

// splitCategories extracts the recognized categories from the raw text of
// a resources dictionary. Each category name must be followed by
// whitespace and either an inline dictionary or an array; the balanced
// scanner finds the matching terminator, so a category name occurring as a
// substring of a nested key (a font dictionary's FontFile entry, say) is
// never mistaken for a second top-level category.
func splitCategories(dict string) (Categories, error) {
	cats := Categories{}
	for _, name := range CategoryNames {
		pattern := regexp.MustCompile(`/` + name + `\s*(<<|\[)`)
		m := pattern.FindStringSubmatchIndex(dict)
		if m == nil {
			continue
		}
		start := m[2]
		end, err := structure.ScanValue(dict, start)
		if err != nil {
			return nil, fmt.Errorf("%w: %s entry", ErrMalformed, name)
		}
		cats[name] = dict[start:end]
	}
	return cats, nil
}

// Merge unions two category maps without clobbering existing entries.
// A category present only in the additions is copied as-is. When both
// sides carry the category and the existing value is an array (ProcSet),
// the existing array is kept unchanged. When both sides carry a
// dictionary, the name/reference pairs of both are unioned with the
// additions winning on key collision, and the result is re-serialized as
// a dictionary literal.
func Merge(existing, additions Categories) Categories {
	merged := Categories{}
	for name, value := range existing {
		merged[name] = value
	}

	for name, added := range additions {
		current, ok := merged[name]
		if !ok {
			merged[name] = added
			continue
		}
		if strings.HasPrefix(current, "[") {
			continue
		}
		merged[name] = mergeDicts(current, added)
	}
	return merged
}

// mergeDicts unions the /Name N G R pairs of two dictionary literals.
// Existing key order is preserved; keys only present in the additions
// follow in their own order. On collision the addition's value wins.
func mergeDicts(existing, additions string) string {
	values := map[string]string{}
	var order []string

	for _, side := range []string{existing, additions} {
		for _, m := range entryRegex.FindAllStringSubmatch(side, -1) {
			name, ref := m[1], m[2]
			if _, seen := values[name]; !seen {
				order = append(order, name)
			}
			values[name] = ref
		}
	}

	var b strings.Builder
	b.WriteString("<<")
	for _, name := range order {
		b.WriteString(" /")
		b.WriteString(name)
		b.WriteString(" ")
		b.WriteString(values[name])
	}
	b.WriteString(" >>")
	return b.String()
}

// Replace merges additions into a page's resources and rewrites the page
// dictionary text accordingly: an inline /Resources span is replaced in
// place, an indirect /Resources reference is replaced with the merged
// inline dictionary, and when the page carries no /Resources at all a new
// entry is appended before the closing delimiter.
func Replace(pageDict string, resolve Resolver, additions Categories) (string, error) {
	existing, err := Parse(pageDict, resolve)
	if err != nil {
		return "", err
	}
	merged := Serialize(Merge(existing, additions))

	m := resourcesRegex.FindStringSubmatchIndex(pageDict)
	if m == nil {
		trimmed := strings.TrimRight(strings.TrimSuffix(pageDict, ">>"), " \n\r\t")
		return trimmed + " /Resources " + merged + " >>", nil
	}

	start := m[2]
	var end int
	if pageDict[start:start+2] == "<<" {
		end, err = structure.ScanDict(pageDict, start)
		if err != nil {
			return "", fmt.Errorf("%w: Resources dictionary", ErrMalformed)
		}
	} else {
		end = m[3]
	}
	return pageDict[:start] + merged + pageDict[end:], nil
}

// Serialize renders a category map as the body of a /Resources entry.
// Categories appear in the fixed recognition order so output is
// deterministic.
func Serialize(cats Categories) string {
	var b strings.Builder
	b.WriteString("<<")
	for _, name := range CategoryNames {
		value, ok := cats[name]
		if !ok {
			continue
		}
		b.WriteString(" /")
		b.WriteString(name)
		b.WriteString(" ")
		b.WriteString(value)
	}
	b.WriteString(" >>")
	return b.String()
}
