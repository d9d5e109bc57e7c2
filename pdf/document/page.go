package document

import (
	"strconv"
	"strings"

	"github.com/georgepadayatti/incpdf/pdf/content"
)

// FontResource is the resource name of the shared font every DrawText
// call selects.
const FontResource = "F0"

// DefaultFontSize is used when DrawText is given no size.
const DefaultFontSize = 12

// Color is an RGB colour with components in [0, 1].
type Color struct {
	R, G, B float64
}

// TextOptions positions a DrawText call.
type TextOptions struct {
	X, Y  float64
	Size  float64
	Color *Color
}

// RectangleOptions describes a DrawRectangle call. The paint operator is
// chosen by which colours are supplied: fill only, stroke only, or both.
type RectangleOptions struct {
	X, Y          float64
	Width, Height float64
	FillColor     *Color
	StrokeColor   *Color
	StrokeWidth   float64
}

// ImageOptions positions a DrawImage call.
type ImageOptions struct {
	X, Y          float64
	Width, Height float64
}

// Page is the draft for one original leaf page. It accumulates content
// stream operators and image references; the original dictionary text is
// never touched until save time.
type Page struct {
	doc    *Document
	object int

	width  float64
	height float64

	// rawDict is the page's original dictionary text, immutable.
	rawDict string

	// ops is the append-only operator list. The page is dirty exactly
	// when this list is non-empty.
	ops []string

	// xobject maps assigned image resource names to object numbers, with
	// xobjectOrder preserving first-use order for deterministic output.
	xobject      map[string]int
	xobjectOrder []string
}

// Object returns the page's object number in the base file.
func (p *Page) Object() int { return p.object }

// Width returns the page width in points, resolved through MediaBox
// inheritance at load time.
func (p *Page) Width() float64 { return p.width }

// Height returns the page height in points.
func (p *Page) Height() float64 { return p.height }

// DrawText shows a string at the given position using the shared font.
func (p *Page) DrawText(text string, opts TextOptions) {
	size := opts.Size
	if size <= 0 {
		size = DefaultFontSize
	}

	if opts.Color != nil {
		p.ops = append(p.ops, content.Op(content.OpSetFillRGB, opts.Color.R, opts.Color.G, opts.Color.B))
	}
	p.ops = append(p.ops,
		string(content.OpBeginText),
		"/"+FontResource+" "+content.FmtNum(size)+" "+string(content.OpSetFont),
		content.Op(content.OpTextMove, opts.X, opts.Y),
		content.ShowText(text),
		string(content.OpEndText),
	)
}

// DrawRectangle paints a rectangle. With only a fill colour the path is
// filled, with only a stroke colour it is stroked, and with both it is
// filled and stroked in one operation.
func (p *Page) DrawRectangle(opts RectangleOptions) {
	if opts.FillColor != nil {
		p.ops = append(p.ops, content.Op(content.OpSetFillRGB, opts.FillColor.R, opts.FillColor.G, opts.FillColor.B))
	}
	if opts.StrokeColor != nil {
		p.ops = append(p.ops, content.Op(content.OpSetStrokeRGB, opts.StrokeColor.R, opts.StrokeColor.G, opts.StrokeColor.B))
	}
	if opts.StrokeWidth > 0 {
		p.ops = append(p.ops, content.Op(content.OpSetLineWidth, opts.StrokeWidth))
	}

	p.ops = append(p.ops, content.Op(content.OpRectangle, opts.X, opts.Y, opts.Width, opts.Height))

	switch {
	case opts.FillColor != nil && opts.StrokeColor != nil:
		p.ops = append(p.ops, string(content.OpFillAndStroke))
	case opts.StrokeColor != nil:
		p.ops = append(p.ops, string(content.OpStroke))
	default:
		p.ops = append(p.ops, string(content.OpFill))
	}
}

// DrawImage places an embedded image into the given rectangle. The image
// gains a page-local resource name derived from its object number; the
// transform scales the unit square the Do operator paints to the
// requested rectangle.
func (p *Page) DrawImage(im *Image, opts ImageOptions) {
	name := "Im" + strconv.Itoa(im.object)
	if _, ok := p.xobject[name]; !ok {
		p.xobject[name] = im.object
		p.xobjectOrder = append(p.xobjectOrder, name)
	}

	p.ops = append(p.ops,
		string(content.OpSaveState),
		content.Op(content.OpSetCTM, opts.Width, 0, 0, opts.Height, opts.X, opts.Y),
		"/"+name+" "+string(content.OpPaintXObject),
		string(content.OpRestoreState),
	)
}

// dirty reports whether any operators have accumulated.
func (p *Page) dirty() bool {
	return len(p.ops) > 0
}

// hasImages reports whether the page references any embedded images.
func (p *Page) hasImages() bool {
	return len(p.xobjectOrder) > 0
}

// buildContentStream joins the accumulated operators into stream bytes.
// Drawing must be finished before save calls this.
func (p *Page) buildContentStream() []byte {
	return []byte(strings.Join(p.ops, "\n"))
}
