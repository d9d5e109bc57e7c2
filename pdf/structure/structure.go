// Package structure locates the skeleton of an existing PDF file: the
// cross-reference chain, the document catalog, the leaf pages and their raw
// dictionary text. It deliberately recovers only the handful of structural
// facts the incremental editor needs, using targeted pattern matches and a
// balanced-delimiter scanner instead of a full object-model parser.
package structure

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Field extraction patterns for trailer and catalog dictionaries. These
// are intentionally partial: they recover single entries without parsing
// the surrounding dictionary.
var (
	rootRegex   = regexp.MustCompile(`/Root\s+(\d+)\s+\d+\s+R`)
	infoRegex   = regexp.MustCompile(`/Info\s+(\d+)\s+\d+\s+R`)
	sizeRegex   = regexp.MustCompile(`/Size\s+(\d+)`)
	prevRegex   = regexp.MustCompile(`/Prev\s+(\d+)`)
	pagesRegex  = regexp.MustCompile(`/Pages\s+(\d+)\s+\d+\s+R`)
	parentRegex = regexp.MustCompile(`/Parent\s+(\d+)\s+\d+\s+R`)
	objRegex    = regexp.MustCompile(`(?:^|[^0-9])(\d+)\s+\d+\s+obj\b`)
)

// Structure holds the facts recovered from a loaded PDF. It is computed
// once at load time and never mutated afterwards.
type Structure struct {
	// XRefOffset is the offset of the base file's cross-reference section,
	// as named by the last startxref keyword.
	XRefOffset int64

	// RootObj is the object number of the document catalog.
	RootObj int

	// InfoObj is the object number of the info dictionary, or 0 if the
	// trailer carries no /Info entry.
	InfoObj int

	// Size is the next free object number. It is strictly greater than
	// any object number referenced in the base file.
	Size int

	// Prev is the /Prev offset of the newest trailer, or 0.
	Prev int64

	// PageObjs lists the leaf page object numbers in document order.
	PageObjs []int

	// RootDict is the raw dictionary text of the catalog.
	RootDict string

	// text is the base file decoded once; every structural query reuses
	// this view.
	text string
}

// Parse recovers the structure of a PDF from its raw bytes.
func Parse(data []byte) (*Structure, error) {
	s := &Structure{text: string(data)}

	if err := s.parseTrailer(); err != nil {
		return nil, err
	}

	rootDict, err := s.ObjectDict(s.RootObj)
	if err != nil {
		return nil, fmt.Errorf("%w: catalog object %d", ErrObjectNotFound, s.RootObj)
	}
	s.RootDict = rootDict

	if err := s.parsePageTree(); err != nil {
		return nil, err
	}

	return s, nil
}

// parseTrailer locates the last startxref, the cross-reference section it
// names and the trailer dictionary, then recovers the trailer fields. Both
// the classic "trailer <<...>>" layout and the PDF 1.5+ variant, where the
// trailer entries live in the cross-reference stream's dictionary, are
// supported.
func (s *Structure) parseTrailer() error {
	idx := strings.LastIndex(s.text, "startxref")
	if idx < 0 {
		return ErrNoStartXref
	}

	numStart := skipSpace(s.text, idx+len("startxref"))
	numEnd := numStart
	for numEnd < len(s.text) && s.text[numEnd] >= '0' && s.text[numEnd] <= '9' {
		numEnd++
	}
	if numEnd == numStart {
		return fmt.Errorf("%w: missing offset after startxref", ErrNoStartXref)
	}
	offset, err := strconv.ParseInt(s.text[numStart:numEnd], 10, 64)
	if err != nil || offset < 0 || offset >= int64(len(s.text)) {
		return fmt.Errorf("%w: startxref offset out of bounds", ErrNoTrailer)
	}
	s.XRefOffset = offset

	trailerDict, err := s.trailerDictAt(int(offset))
	if err != nil {
		return err
	}

	m := rootRegex.FindStringSubmatch(trailerDict)
	if m == nil {
		return ErrNoRoot
	}
	s.RootObj, _ = strconv.Atoi(m[1])

	if m := infoRegex.FindStringSubmatch(trailerDict); m != nil {
		s.InfoObj, _ = strconv.Atoi(m[1])
	}
	if m := prevRegex.FindStringSubmatch(trailerDict); m != nil {
		prev, _ := strconv.ParseInt(m[1], 10, 64)
		s.Prev = prev
	}

	if m := sizeRegex.FindStringSubmatch(trailerDict); m != nil {
		s.Size, _ = strconv.Atoi(m[1])
	}
	if s.Size == 0 {
		// Malformed trailer without /Size: derive the next free object
		// number from the object headers present in the file.
		s.Size = s.maxObjectNumber() + 1
	}

	return nil
}

// trailerDictAt returns the raw text of the trailer dictionary for the
// cross-reference section at the given offset.
func (s *Structure) trailerDictAt(offset int) (string, error) {
	pos := skipSpace(s.text, offset)

	if strings.HasPrefix(s.text[pos:], "xref") {
		// Classic table: the trailer keyword follows the subsections.
		t := strings.Index(s.text[pos:], "trailer")
		if t < 0 {
			return "", ErrNoTrailer
		}
		pos += t + len("trailer")
	}
	// Otherwise the offset names a cross-reference stream object; its
	// dictionary doubles as the trailer.

	open := strings.Index(s.text[pos:], "<<")
	if open < 0 {
		return "", ErrNoTrailer
	}
	start := pos + open
	end, err := ScanDict(s.text, start)
	if err != nil {
		return "", fmt.Errorf("%w: trailer dictionary", ErrUnterminated)
	}
	return s.text[start:end], nil
}

// ObjectDict returns the raw dictionary text (including the enclosing
// "<<" and ">>") of the indirect object with the given number. When the
// file contains several revisions of the object, the last one wins.
func (s *Structure) ObjectDict(num int) (string, error) {
	start, err := s.objectOffset(num)
	if err != nil {
		return "", err
	}

	open := strings.Index(s.text[start:], "<<")
	if open < 0 {
		return "", fmt.Errorf("%w: object %d has no dictionary", ErrObjectNotFound, num)
	}
	dictStart := start + open
	end, err := ScanDict(s.text, dictStart)
	if err != nil {
		return "", fmt.Errorf("%w: object %d", ErrUnterminated, num)
	}
	return s.text[dictStart:end], nil
}

// objectOffset finds the offset of the last "<num> <gen> obj" header in
// the file. Appended revisions override earlier ones, so the search runs
// back to front.
func (s *Structure) objectOffset(num int) (int, error) {
	marker := strconv.Itoa(num) + " 0 obj"
	from := len(s.text)
	for {
		idx := strings.LastIndex(s.text[:from], marker)
		if idx < 0 {
			return 0, fmt.Errorf("%w: object %d", ErrObjectNotFound, num)
		}
		// Reject hits that are the tail of a longer number (e.g. finding
		// "2 0 obj" inside "12 0 obj").
		if idx == 0 || !isDigit(s.text[idx-1]) {
			return idx, nil
		}
		from = idx
	}
}

// ObjectBody returns the raw text between an object's header and its
// endobj keyword. Useful for indirect objects whose value is not a
// dictionary, such as an /Annots array stored as its own object.
func (s *Structure) ObjectBody(num int) (string, error) {
	start, err := s.objectOffset(num)
	if err != nil {
		return "", err
	}
	rest := s.text[start:]
	objEnd := strings.Index(rest, "obj")
	if objEnd < 0 {
		return "", fmt.Errorf("%w: object %d", ErrObjectNotFound, num)
	}
	end := strings.Index(rest, "endobj")
	if end < 0 {
		return "", fmt.Errorf("%w: object %d", ErrUnterminated, num)
	}
	return strings.TrimSpace(rest[objEnd+3 : end]), nil
}

// maxObjectNumber scans all object headers and returns the largest object
// number present.
func (s *Structure) maxObjectNumber() int {
	max := 0
	for _, m := range objRegex.FindAllStringSubmatch(s.text, -1) {
		if n, err := strconv.Atoi(m[1]); err == nil && n > max {
			max = n
		}
	}
	return max
}

// Text returns the base file's decoded text view.
func (s *Structure) Text() string {
	return s.text
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
