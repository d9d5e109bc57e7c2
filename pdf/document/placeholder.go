package document

import (
	"fmt"
	"strings"
	"time"

	"github.com/georgepadayatti/incpdf/pdf/content"
	"github.com/georgepadayatti/incpdf/sign/byterange"
)

// DefaultSignatureLength is the byte capacity reserved for a detached
// signature when the caller does not specify one.
const DefaultSignatureLength = 16384

// byteRangePlaceholder is the fixed-width text the signature dictionary
// carries until the real range is known. It is patched in place after the
// whole buffer exists, padded with spaces to the same width so no byte
// offsets shift.
const byteRangePlaceholder = "[0 0000000000 0000000000 0000000000]"

// PlaceholderOptions configures SaveWithPlaceholder.
type PlaceholderOptions struct {
	// Reason, Name, Location and ContactInfo are optional display strings
	// copied into the signature dictionary.
	Reason      string
	Name        string
	Location    string
	ContactInfo string

	// SigningTime becomes the /M entry when non-zero.
	SigningTime time.Time

	// SignatureLength is the reserved capacity in bytes; the hex
	// placeholder is twice as many characters. Zero means
	// DefaultSignatureLength.
	SignatureLength int

	// DocMDPPermission declares the changes permitted after signing:
	// 1 none, 2 form filling and signing, 3 additionally annotations.
	// Zero omits the DocMDP transform. Other values are clamped.
	DocMDPPermission int

	// AppearancePage is the zero-based index of the page the signature
	// widget is attached to, clamped into range.
	AppearancePage int
}

// SaveResult is the outcome of SaveWithPlaceholder.
type SaveResult struct {
	// Data is the complete new file.
	Data []byte

	// ByteRange describes the two spans a detached signer must hash.
	ByteRange byterange.ByteRange
}

// stagePlaceholder allocates the three signature objects and stages the
// signature dictionary, the widget annotation, the AcroForm, the rewritten
// catalog, and the chosen page's /Annots rewrite.
func (d *Document) stagePlaceholder(a *assembler, opts *PlaceholderOptions) error {
	if len(d.pages) == 0 {
		return ErrNoPages
	}

	pageIdx := opts.AppearancePage
	if pageIdx < 0 {
		pageIdx = 0
	}
	if pageIdx >= len(d.pages) {
		pageIdx = len(d.pages) - 1
	}
	page := d.pages[pageIdx]

	sigObj := d.allocate()
	widgetObj := d.allocate()
	acroObj := d.allocate()

	a.stage(sigObj, buildSignatureDict(opts), nil)

	widget := fmt.Sprintf(
		"<< /Type /Annot /Subtype /Widget /FT /Sig /Rect [0 0 0 0] /V %d 0 R /T (Signature1) /F 4 /P %d 0 R >>",
		sigObj, page.object)
	a.stage(widgetObj, widget, nil)

	acro := fmt.Sprintf("<< /Type /AcroForm /SigFlags 3 /Fields [%d 0 R] >>", widgetObj)
	a.stage(acroObj, acro, nil)

	// Rewrite the catalog: any prior form or permission entries are
	// superseded by this revision's.
	cat := stripEntry(d.structure.RootDict, "AcroForm")
	cat = stripEntry(cat, "Perms")
	cat = appendEntry(cat, fmt.Sprintf("/AcroForm %d 0 R", acroObj))
	if clampDocMDP(opts.DocMDPPermission) > 0 {
		cat = appendEntry(cat, fmt.Sprintf("/Perms << /DocMDP %d 0 R >>", sigObj))
	}
	a.stage(d.structure.RootObj, cat, nil)

	// The widget joins the page's annotations, merging with any page
	// rewrite already staged for drawing on the same page.
	pageDict, err := stageAnnots(a.stagedPageDict(page), widgetObj, d.structure)
	if err != nil {
		return err
	}
	a.stage(page.object, pageDict, nil)

	return nil
}

// buildSignatureDict renders the signature dictionary with its zero-filled
// hex placeholder and fixed-width ByteRange placeholder.
func buildSignatureDict(opts *PlaceholderOptions) string {
	sigLen := opts.SignatureLength
	if sigLen <= 0 {
		sigLen = DefaultSignatureLength
	}

	var b strings.Builder
	b.WriteString("<< /Type /Sig /Filter /Adobe.PPKLite /SubFilter /adbe.pkcs7.detached")
	b.WriteString(" /ByteRange ")
	b.WriteString(byteRangePlaceholder)
	b.WriteString(" /Contents <")
	b.WriteString(strings.Repeat("0", 2*sigLen))
	b.WriteString(">")

	if opts.Reason != "" {
		b.WriteString(" /Reason (" + content.EscapeString(opts.Reason) + ")")
	}
	if !opts.SigningTime.IsZero() {
		b.WriteString(" /M (" + content.FormatDate(opts.SigningTime) + ")")
	}
	if opts.Name != "" {
		b.WriteString(" /Name (" + content.EscapeString(opts.Name) + ")")
	}
	if opts.Location != "" {
		b.WriteString(" /Location (" + content.EscapeString(opts.Location) + ")")
	}
	if opts.ContactInfo != "" {
		b.WriteString(" /ContactInfo (" + content.EscapeString(opts.ContactInfo) + ")")
	}

	if perm := clampDocMDP(opts.DocMDPPermission); perm > 0 {
		fmt.Fprintf(&b,
			" /Reference [<< /Type /SigRef /TransformMethod /DocMDP /TransformParams << /Type /TransformParams /P %d /V /1.2 >> >>]",
			perm)
	}

	b.WriteString(" >>")
	return b.String()
}

func clampDocMDP(perm int) int {
	if perm <= 0 {
		return 0
	}
	if perm > 3 {
		return 3
	}
	return perm
}

// patchByteRange locates the placeholder in the assembled buffer, derives
// the four-integer range around the hex span, and overwrites the
// fixed-width /ByteRange placeholder in place.
func patchByteRange(buf []byte) (byterange.ByteRange, error) {
	p, err := byterange.Find(buf)
	if err != nil {
		return byterange.ByteRange{}, err
	}
	if p.ByteRangeStart < 0 {
		return byterange.ByteRange{}, fmt.Errorf("%w: missing /ByteRange marker", byterange.ErrNoPlaceholder)
	}

	rendered := fmt.Sprintf("[0 %d %d %d]", p.ByteRange[1], p.ByteRange[2], p.ByteRange[3])
	if len(rendered) > len(byteRangePlaceholder) {
		return byterange.ByteRange{}, fmt.Errorf("%w: rendered range %q exceeds placeholder width",
			byterange.ErrInvalidByteRange, rendered)
	}
	rendered += strings.Repeat(" ", len(byteRangePlaceholder)-len(rendered))

	copy(buf[p.ByteRangeStart:], rendered)
	return p.ByteRange, nil
}
