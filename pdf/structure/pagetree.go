package structure

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	pageTypeRegex  = regexp.MustCompile(`/Type\s*/Page\b`)
	kidsRegex      = regexp.MustCompile(`/Kids\s*\[`)
	refRegex       = regexp.MustCompile(`(\d+)\s+\d+\s+R`)
	mediaBoxRegex  = regexp.MustCompile(`/MediaBox\s*\[([^\]]*)\]`)
	numberSplitter = regexp.MustCompile(`[\s]+`)
)

// parsePageTree follows /Root -> /Pages and flattens the page tree into
// the ordered list of leaf page object numbers.
func (s *Structure) parsePageTree() error {
	m := pagesRegex.FindStringSubmatch(s.RootDict)
	if m == nil {
		return ErrNoPages
	}
	pagesObj, _ := strconv.Atoi(m[1])

	visited := make(map[int]bool)
	return s.collectLeaves(pagesObj, visited)
}

// collectLeaves descends a page tree node. A node whose /Type is Page is a
// leaf; any other node is treated as an intermediate Pages node and every
// kid is visited. Object numbers already on the current path are skipped,
// so malformed circular trees terminate instead of recursing forever.
func (s *Structure) collectLeaves(num int, visited map[int]bool) error {
	if visited[num] {
		return nil
	}
	visited[num] = true

	dict, err := s.ObjectDict(num)
	if err != nil {
		return fmt.Errorf("%w: page tree node %d", ErrObjectNotFound, num)
	}

	if pageTypeRegex.MatchString(dict) {
		s.PageObjs = append(s.PageObjs, num)
		return nil
	}

	loc := kidsRegex.FindStringIndex(dict)
	if loc == nil {
		// An intermediate node without kids contributes nothing.
		return nil
	}
	arrStart := loc[1] - 1
	arrEnd, err := ScanArray(dict, arrStart)
	if err != nil {
		return fmt.Errorf("%w: Kids array of object %d", ErrUnterminated, num)
	}

	for _, ref := range refRegex.FindAllStringSubmatch(dict[arrStart:arrEnd], -1) {
		kid, _ := strconv.Atoi(ref[1])
		if err := s.collectLeaves(kid, visited); err != nil {
			return err
		}
	}
	return nil
}

// MediaBox resolves the media box of the given leaf page, walking the
// /Parent chain when the page does not carry one itself. The returned
// slice holds the four rectangle coordinates.
func (s *Structure) MediaBox(pageObj int) ([4]float64, error) {
	var box [4]float64

	visited := make(map[int]bool)
	num := pageObj
	for {
		if visited[num] {
			break
		}
		visited[num] = true

		dict, err := s.ObjectDict(num)
		if err != nil {
			return box, fmt.Errorf("%w: object %d", ErrObjectNotFound, num)
		}

		if m := mediaBoxRegex.FindStringSubmatch(dict); m != nil {
			return parseRectangle(m[1])
		}

		parent := parentRegex.FindStringSubmatch(dict)
		if parent == nil {
			break
		}
		num, _ = strconv.Atoi(parent[1])
	}

	return box, fmt.Errorf("%w: page object %d", ErrNoMediaBox, pageObj)
}

// parseRectangle parses the four numbers of a rectangle array body.
func parseRectangle(body string) ([4]float64, error) {
	var box [4]float64
	parts := numberSplitter.Split(strings.TrimSpace(body), -1)
	if len(parts) < 4 {
		return box, fmt.Errorf("%w: malformed MediaBox", ErrNoMediaBox)
	}
	for i := 0; i < 4; i++ {
		v, err := strconv.ParseFloat(parts[i], 64)
		if err != nil {
			return box, fmt.Errorf("%w: malformed MediaBox value %q", ErrNoMediaBox, parts[i])
		}
		box[i] = v
	}
	return box, nil
}
