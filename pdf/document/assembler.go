package document

import (
	"bytes"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/georgepadayatti/incpdf/pdf/images"
	"github.com/georgepadayatti/incpdf/pdf/resources"
	"github.com/georgepadayatti/incpdf/pdf/structure"
	"github.com/georgepadayatti/incpdf/sign/byterange"
)

// fontDict is the shared Type1 font emitted for pages that gained text.
const fontDict = "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>"

// stagedObject is one entry of the incremental update being built: the
// object's number, its textual content, and optional stream bytes.
type stagedObject struct {
	num    int
	body   string
	stream []byte
}

// assembler builds one incremental update. It is created fresh on every
// save; only the document's allocation counter survives between saves.
type assembler struct {
	doc   *Document
	byNum map[int]*stagedObject
}

func (a *assembler) stage(num int, body string, stream []byte) {
	a.byNum[num] = &stagedObject{num: num, body: body, stream: stream}
}

// stagedPageDict returns the page dictionary text staged so far, falling
// back to the original. Later rewrites of the same page amend the staged
// text instead of emitting the object twice.
func (a *assembler) stagedPageDict(p *Page) string {
	if o, ok := a.byNum[p.object]; ok {
		return o.body
	}
	return p.rawDict
}

// save builds the incremental update and appends it after the original
// bytes. With placeholder options it additionally computes and patches
// the /ByteRange array and returns it.
func (d *Document) save(opts *PlaceholderOptions) ([]byte, byterange.ByteRange, error) {
	a := &assembler{doc: d, byNum: map[int]*stagedObject{}}

	anyDirty := false
	for _, p := range d.pages {
		if p.dirty() {
			anyDirty = true
			break
		}
	}

	// Shared font, only when something will reference it.
	if anyDirty || len(d.images) > 0 {
		a.stage(d.fontObj, fontDict, nil)
	}

	// One XObject per embedded image. The stream carries the inflated
	// row data recompressed; the PNG predictor stays declared in the
	// decode parameters so the filtered rows pass through unchanged.
	for _, im := range d.images {
		data, err := images.Deflate(im.png.Pixels)
		if err != nil {
			return nil, byterange.ByteRange{}, fmt.Errorf("compressing image %d: %w", im.object, err)
		}
		dict := fmt.Sprintf(
			"<< /Type /XObject /Subtype /Image /Width %d /Height %d /ColorSpace %s /BitsPerComponent %d "+
				"/Filter /FlateDecode /DecodeParms << /Predictor 15 /Colors %d /BitsPerComponent %d /Columns %d >> /Length %d >>",
			im.png.Width, im.png.Height, im.png.ColorSpaceText(), im.png.BitDepth,
			im.png.Colors(), im.png.BitDepth, im.png.Width, len(data))
		a.stage(im.object, dict, data)
	}

	// Dirty pages get a save-state wrapper stream in front of the
	// original content and a restore-state stream carrying the new
	// operators behind it. The original content may have changed the
	// coordinate transform; restoring state first guarantees the new
	// operators run under the default coordinate system.
	for _, p := range d.pages {
		if !p.dirty() && !p.hasImages() {
			continue
		}

		pageDict := p.rawDict
		if p.dirty() {
			wrapperObj := d.allocate()
			contentObj := d.allocate()

			wrapper := []byte("q\n")
			a.stage(wrapperObj, fmt.Sprintf("<< /Length %d >>", len(wrapper)), wrapper)

			stream := append([]byte("Q\n"), p.buildContentStream()...)
			a.stage(contentObj, fmt.Sprintf("<< /Length %d >>", len(stream)), stream)

			var err error
			pageDict, err = stageContents(pageDict, wrapperObj, contentObj)
			if err != nil {
				return nil, byterange.ByteRange{}, err
			}
		}

		additions := resources.Categories{}
		if p.dirty() {
			additions["Font"] = fmt.Sprintf("<< /%s %d 0 R >>", FontResource, d.fontObj)
		}
		if p.hasImages() {
			var b strings.Builder
			b.WriteString("<<")
			for _, name := range p.xobjectOrder {
				fmt.Fprintf(&b, " /%s %d 0 R", name, p.xobject[name])
			}
			b.WriteString(" >>")
			additions["XObject"] = b.String()
		}

		pageDict, err := resources.Replace(pageDict, d.resolveDict, additions)
		if err != nil {
			return nil, byterange.ByteRange{}, err
		}
		a.stage(p.object, pageDict, nil)
	}

	if opts != nil {
		if err := d.stagePlaceholder(a, opts); err != nil {
			return nil, byterange.ByteRange{}, err
		}
	}

	buf := a.serialize()

	if opts != nil {
		br, err := patchByteRange(buf)
		if err != nil {
			return nil, byterange.ByteRange{}, err
		}
		return buf, br, nil
	}
	return buf, byterange.ByteRange{}, nil
}

// serialize writes the staged objects after the original bytes, records
// their offsets, and emits the cross-reference subsections and the
// trailer chained to the base file via /Prev.
func (a *assembler) serialize() []byte {
	d := a.doc

	var out bytes.Buffer
	out.Grow(len(d.original) + 4096)
	out.Write(d.original)
	if n := len(d.original); n > 0 && d.original[n-1] != '\n' && d.original[n-1] != '\r' {
		out.WriteByte('\n')
	}

	nums := make([]int, 0, len(a.byNum))
	for n := range a.byNum {
		nums = append(nums, n)
	}
	sort.Ints(nums)

	offsets := make(map[int]int64, len(nums))
	for _, n := range nums {
		o := a.byNum[n]
		offsets[n] = int64(out.Len())
		fmt.Fprintf(&out, "%d 0 obj\n%s\n", n, o.body)
		if o.stream != nil {
			out.WriteString("stream\n")
			out.Write(o.stream)
			out.WriteString("\nendstream\nendobj\n")
		} else {
			out.WriteString("endobj\n")
		}
	}

	xrefOffset := int64(out.Len())
	out.WriteString("xref\n")
	for i := 0; i < len(nums); {
		j := i
		for j+1 < len(nums) && nums[j+1] == nums[j]+1 {
			j++
		}
		fmt.Fprintf(&out, "%d %d\n", nums[i], j-i+1)
		for k := i; k <= j; k++ {
			fmt.Fprintf(&out, "%010d %05d n \n", offsets[nums[k]], 0)
		}
		i = j + 1
	}

	fmt.Fprintf(&out, "trailer\n<< /Size %d /Root %d 0 R", d.nextObj, d.structure.RootObj)
	if d.structure.InfoObj > 0 {
		fmt.Fprintf(&out, " /Info %d 0 R", d.structure.InfoObj)
	}
	// /Prev always names the base file's cross-reference offset, never a
	// previous in-memory increment's.
	fmt.Fprintf(&out, " /Prev %d >>\nstartxref\n%d\n%%%%EOF\n", d.structure.XRefOffset, xrefOffset)

	return out.Bytes()
}

// Page dictionary surgery. All rewrites operate on raw dictionary text;
// the balanced scanner finds value spans.

var (
	contentsKeyRegex = regexp.MustCompile(`/Contents\s*`)
	annotsKeyRegex   = regexp.MustCompile(`/Annots\s*`)
	refValueRegex    = regexp.MustCompile(`^(\d+)\s+\d+\s+R`)
)

// stageContents rewrites a page's /Contents entry to the array
// [wrapper original... new], inserting into an existing array when one is
// present and never duplicating a reference that is already there.
func stageContents(dict string, wrapperObj, contentObj int) (string, error) {
	wrapperRef := strconv.Itoa(wrapperObj) + " 0 R"
	contentRef := strconv.Itoa(contentObj) + " 0 R"

	loc := contentsKeyRegex.FindStringIndex(dict)
	if loc == nil {
		return appendEntry(dict, "/Contents ["+wrapperRef+" "+contentRef+"]"), nil
	}

	start := loc[1]
	if start < len(dict) && dict[start] == '[' {
		end, err := structure.ScanArray(dict, start)
		if err != nil {
			return "", fmt.Errorf("%w: Contents array", structure.ErrUnterminated)
		}
		inner := strings.TrimSpace(dict[start+1 : end-1])
		if !strings.Contains(inner, wrapperRef) {
			inner = wrapperRef + " " + inner
		}
		if !strings.Contains(inner, contentRef) {
			inner = inner + " " + contentRef
		}
		return dict[:start] + "[" + inner + "]" + dict[end:], nil
	}

	m := refValueRegex.FindString(dict[start:])
	if m == "" {
		return appendEntry(dict, "/Contents ["+wrapperRef+" "+contentRef+"]"), nil
	}
	replacement := "[" + wrapperRef + " " + m + " " + contentRef + "]"
	return dict[:start] + replacement + dict[start+len(m):], nil
}

// stageAnnots rewrites a page's /Annots array to include the widget
// reference, creating the array when the page has none and inlining an
// indirect array so the new entry lands in this revision.
func stageAnnots(dict string, widgetObj int, st *structure.Structure) (string, error) {
	widgetRef := strconv.Itoa(widgetObj) + " 0 R"

	loc := annotsKeyRegex.FindStringIndex(dict)
	if loc == nil {
		return appendEntry(dict, "/Annots ["+widgetRef+"]"), nil
	}

	start := loc[1]
	if start < len(dict) && dict[start] == '[' {
		end, err := structure.ScanArray(dict, start)
		if err != nil {
			return "", fmt.Errorf("%w: Annots array", structure.ErrUnterminated)
		}
		inner := strings.TrimSpace(dict[start+1 : end-1])
		if !strings.Contains(inner, widgetRef) {
			inner = strings.TrimSpace(inner + " " + widgetRef)
		}
		return dict[:start] + "[" + inner + "]" + dict[end:], nil
	}

	m := refValueRegex.FindStringSubmatch(dict[start:])
	if m == nil {
		return appendEntry(dict, "/Annots ["+widgetRef+"]"), nil
	}
	arrObj, _ := strconv.Atoi(m[1])
	body, err := st.ObjectBody(arrObj)
	if err != nil {
		return "", err
	}
	open := strings.IndexByte(body, '[')
	if open < 0 {
		return "", fmt.Errorf("%w: Annots object %d", structure.ErrUnterminated, arrObj)
	}
	arrEnd, err := structure.ScanArray(body, open)
	if err != nil {
		return "", fmt.Errorf("%w: Annots object %d", structure.ErrUnterminated, arrObj)
	}
	inner := strings.TrimSpace(body[open+1 : arrEnd-1])
	replacement := "[" + strings.TrimSpace(inner+" "+widgetRef) + "]"
	return dict[:start] + replacement + dict[start+len(m[0]):], nil
}

// stripEntry removes "/Key value" from a dictionary's raw text. The value
// may be an inline dictionary, an array, or an indirect reference;
// anything else is left alone.
func stripEntry(dict, key string) string {
	pattern := regexp.MustCompile(`/` + key + `\s*`)
	loc := pattern.FindStringIndex(dict)
	if loc == nil {
		return dict
	}

	start := loc[1]
	var end int
	switch {
	case strings.HasPrefix(dict[start:], "<<"):
		e, err := structure.ScanDict(dict, start)
		if err != nil {
			return dict
		}
		end = e
	case start < len(dict) && dict[start] == '[':
		e, err := structure.ScanArray(dict, start)
		if err != nil {
			return dict
		}
		end = e
	default:
		m := refValueRegex.FindString(dict[start:])
		if m == "" {
			return dict
		}
		end = start + len(m)
	}
	return dict[:loc[0]] + dict[end:]
}

// appendEntry inserts an entry before a dictionary's closing delimiter.
func appendEntry(dict, entry string) string {
	trimmed := strings.TrimRight(strings.TrimSuffix(dict, ">>"), " \n\r\t")
	return trimmed + " " + entry + " >>"
}
