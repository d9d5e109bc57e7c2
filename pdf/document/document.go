// Package document is the incremental-editing engine: it loads an
// existing PDF, records drawing and annotation mutations on page drafts,
// and saves a new file that appends an incremental update after the
// original bytes. It can also prepare a byte-exact placeholder for a
// detached digital signature.
package document

import (
	"errors"
	"fmt"

	"github.com/georgepadayatti/incpdf/pdf/images"
	"github.com/georgepadayatti/incpdf/pdf/structure"
)

// Common errors
var (
	ErrPageOutOfRange = errors.New("page index out of range")
	ErrNoPages        = errors.New("document has no pages")
)

// Document is the aggregate root for one loaded PDF file. All mutation is
// additive: pages are never deleted, object numbers are never reused, and
// the original byte buffer is never modified. A Document is meant for
// single-owner sequential use (load, zero or more draws, one save) and is
// not safe for concurrent mutation.
type Document struct {
	original  []byte
	structure *structure.Structure
	pages     []*Page
	images    []*Image

	// nextObj is the shared allocation counter. It starts at the base
	// file's /Size and only ever increases.
	nextObj int

	// fontObj is the object number reserved for the shared font. It is
	// allocated at load so the font resource reference is stable, but the
	// object itself is only emitted when a save needs it.
	fontObj int
}

// Image is an embedded image awaiting placement through Page.DrawImage.
type Image struct {
	object int
	png    *images.PNG
}

// Object returns the object number assigned to the image.
func (im *Image) Object() int { return im.object }

// Width returns the pixel width of the image.
func (im *Image) Width() int { return im.png.Width }

// Height returns the pixel height of the image.
func (im *Image) Height() int { return im.png.Height }

// LoadExisting parses a PDF file and returns a document ready for
// editing. The byte slice is retained and treated as immutable; the file
// is decoded to a text view exactly once, and every structural query made
// while editing and saving reuses that view.
func LoadExisting(data []byte) (*Document, error) {
	st, err := structure.Parse(data)
	if err != nil {
		return nil, err
	}

	doc := &Document{
		original:  data,
		structure: st,
		nextObj:   st.Size,
	}
	doc.fontObj = doc.allocate()

	for _, pageObj := range st.PageObjs {
		dict, err := st.ObjectDict(pageObj)
		if err != nil {
			return nil, fmt.Errorf("%w: page object %d", structure.ErrObjectNotFound, pageObj)
		}
		box, err := st.MediaBox(pageObj)
		if err != nil {
			return nil, err
		}
		doc.pages = append(doc.pages, &Page{
			doc:     doc,
			object:  pageObj,
			width:   box[2] - box[0],
			height:  box[3] - box[1],
			rawDict: dict,
			xobject: map[string]int{},
		})
	}

	return doc, nil
}

// PageCount returns the number of leaf pages discovered at load.
func (d *Document) PageCount() int {
	return len(d.pages)
}

// GetPage returns the draft for the page at the given zero-based index.
func (d *Document) GetPage(index int) (*Page, error) {
	if index < 0 || index >= len(d.pages) {
		return nil, fmt.Errorf("%w: index %d of %d pages", ErrPageOutOfRange, index, len(d.pages))
	}
	return d.pages[index], nil
}

// EmbedImage registers a PNG image with the document and returns a handle
// that can be drawn onto any page.
func (d *Document) EmbedImage(pngData []byte) (*Image, error) {
	png, err := images.ParsePNG(pngData)
	if err != nil {
		return nil, err
	}
	im := &Image{object: d.allocate(), png: png}
	d.images = append(d.images, im)
	return im, nil
}

// Save builds the incremental update and returns the complete new file:
// the original bytes followed by the appended revision.
func (d *Document) Save() ([]byte, error) {
	out, _, err := d.save(nil)
	return out, err
}

// SaveWithPlaceholder builds the incremental update including a signature
// placeholder and returns the new file together with the computed
// ByteRange. The hex placeholder is zero-filled; a detached signer hashes
// the bytes the range describes and the finished signature is embedded
// with byterange.EmbedSignature.
func (d *Document) SaveWithPlaceholder(opts PlaceholderOptions) (*SaveResult, error) {
	out, br, err := d.save(&opts)
	if err != nil {
		return nil, err
	}
	return &SaveResult{Data: out, ByteRange: br}, nil
}

// allocate hands out the next object number. Numbers are never reused and
// the counter never decreases, so repeated saves of the same document
// produce strictly increasing object numbers.
func (d *Document) allocate() int {
	n := d.nextObj
	d.nextObj++
	return n
}

// resolveDict is the resolver handed to the resources package for
// indirect /Resources references.
func (d *Document) resolveDict(num int) (string, error) {
	return d.structure.ObjectDict(num)
}
