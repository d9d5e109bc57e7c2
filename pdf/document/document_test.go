package document

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"regexp"
	"strings"
	"testing"

	"github.com/georgepadayatti/incpdf/pdf/images"
	"github.com/georgepadayatti/incpdf/sign/byterange"
)

// fixtureObject is one numbered object of a test PDF.
type fixtureObject struct {
	body   string
	stream string
}

// buildFixture assembles a classic-xref PDF from the given objects,
// numbered 1..n, with object 1 as the catalog.
func buildFixture(objects []fixtureObject) []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n")

	offsets := make([]int, len(objects)+1)
	for i, o := range objects {
		offsets[i+1] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\n", i+1, o.body)
		if o.stream != "" {
			fmt.Fprintf(&buf, "stream\n%s\nendstream\n", o.stream)
		}
		buf.WriteString("endobj\n")
	}

	xrefOffset := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for i := range objects {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[i+1])
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n",
		len(objects)+1, xrefOffset)

	return buf.Bytes()
}

// minimalPDF builds a document with the given number of pages, each with
// its own content stream.
func minimalPDF(pages int) []byte {
	objects := []fixtureObject{
		{body: "<< /Type /Catalog /Pages 2 0 R >>"},
		{}, // pages node, filled below
	}

	var kids strings.Builder
	for i := 0; i < pages; i++ {
		pageObj := 3 + 2*i
		contentObj := pageObj + 1
		fmt.Fprintf(&kids, " %d 0 R", pageObj)
		objects = append(objects,
			fixtureObject{body: fmt.Sprintf(
				"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents %d 0 R /Resources << /ProcSet [/PDF] >> >>",
				contentObj)},
			fixtureObject{body: "<< /Length 3 >>", stream: "q Q"},
		)
	}
	objects[1] = fixtureObject{body: fmt.Sprintf(
		"<< /Type /Pages /Kids [%s] /Count %d >>", strings.TrimSpace(kids.String()), pages)}

	return buildFixture(objects)
}

// pngFixture builds a 2x2 RGB PNG.
func pngFixture(t *testing.T) []byte {
	t.Helper()

	raw := []byte{
		0, 255, 0, 0, 0, 255, 0, // row: filter, red, green
		0, 0, 0, 255, 255, 255, 0, // row: filter, blue, yellow-ish
	}
	idat, err := images.Deflate(raw)
	if err != nil {
		t.Fatalf("Deflate failed: %v", err)
	}

	var buf bytes.Buffer
	buf.Write([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'})

	writeChunk := func(ctype string, body []byte) {
		var length [4]byte
		binary.BigEndian.PutUint32(length[:], uint32(len(body)))
		buf.Write(length[:])
		buf.WriteString(ctype)
		buf.Write(body)
		crc := crc32.NewIEEE()
		crc.Write([]byte(ctype))
		crc.Write(body)
		var sum [4]byte
		binary.BigEndian.PutUint32(sum[:], crc.Sum32())
		buf.Write(sum[:])
	}

	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:4], 2)
	binary.BigEndian.PutUint32(ihdr[4:8], 2)
	ihdr[8] = 8
	ihdr[9] = 2 // RGB
	writeChunk("IHDR", ihdr)
	writeChunk("IDAT", idat)
	writeChunk("IEND", nil)

	return buf.Bytes()
}

func TestLoadExisting(t *testing.T) {
	doc, err := LoadExisting(minimalPDF(3))
	if err != nil {
		t.Fatalf("LoadExisting failed: %v", err)
	}

	if doc.PageCount() != 3 {
		t.Fatalf("PageCount = %d, want 3", doc.PageCount())
	}
	page, err := doc.GetPage(0)
	if err != nil {
		t.Fatalf("GetPage failed: %v", err)
	}
	if page.Width() != 612 || page.Height() != 792 {
		t.Errorf("page dimensions = %vx%v, want 612x792", page.Width(), page.Height())
	}
}

func TestGetPageOutOfRange(t *testing.T) {
	doc, err := LoadExisting(minimalPDF(2))
	if err != nil {
		t.Fatalf("LoadExisting failed: %v", err)
	}
	for _, idx := range []int{-1, 2, 100} {
		if _, err := doc.GetPage(idx); !errors.Is(err, ErrPageOutOfRange) {
			t.Errorf("GetPage(%d) err = %v, want ErrPageOutOfRange", idx, err)
		}
	}
}

func TestSavePreservesOriginalBytes(t *testing.T) {
	original := minimalPDF(1)
	doc, err := LoadExisting(original)
	if err != nil {
		t.Fatalf("LoadExisting failed: %v", err)
	}
	page, _ := doc.GetPage(0)
	page.DrawText("hello", TextOptions{X: 100, Y: 700})

	out, err := doc.Save()
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if len(out) <= len(original) {
		t.Fatalf("output (%d bytes) not longer than input (%d bytes)", len(out), len(original))
	}
	if !bytes.Equal(out[:len(original)], original) {
		t.Errorf("original bytes were modified")
	}
	if !bytes.HasSuffix(out, []byte("%%EOF\n")) {
		t.Errorf("output does not end with %%%%EOF")
	}
}

func TestDrawSaveReload(t *testing.T) {
	doc, err := LoadExisting(minimalPDF(2))
	if err != nil {
		t.Fatalf("LoadExisting failed: %v", err)
	}
	page, _ := doc.GetPage(1)
	page.DrawText("Approved", TextOptions{X: 72, Y: 720, Size: 18, Color: &Color{R: 1}})
	page.DrawRectangle(RectangleOptions{X: 10, Y: 10, Width: 100, Height: 50,
		StrokeColor: &Color{B: 1}, StrokeWidth: 2})

	out, err := doc.Save()
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	for _, want := range []string{
		"(Approved) Tj",
		"10 10 100 50 re",
		"/F0 18 Tf",
		"/Prev ",
	} {
		if !bytes.Contains(out, []byte(want)) {
			t.Errorf("output missing %q", want)
		}
	}

	reloaded, err := LoadExisting(out)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if reloaded.PageCount() != 2 {
		t.Errorf("reloaded PageCount = %d, want 2", reloaded.PageCount())
	}
	repage, _ := reloaded.GetPage(1)
	if repage.Width() != 612 || repage.Height() != 792 {
		t.Errorf("reloaded dimensions = %vx%v", repage.Width(), repage.Height())
	}
}

func TestSaveWrapsOriginalContent(t *testing.T) {
	doc, err := LoadExisting(minimalPDF(1))
	if err != nil {
		t.Fatalf("LoadExisting failed: %v", err)
	}
	page, _ := doc.GetPage(0)
	page.DrawText("x", TextOptions{X: 1, Y: 1})

	out, err := doc.Save()
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// The rewritten page carries a three-element Contents array keeping
	// the original stream (object 4) in the middle.
	m := regexp.MustCompile(`/Contents \[(\d+) 0 R 4 0 R (\d+) 0 R\]`).FindSubmatch(out)
	if m == nil {
		t.Fatalf("rewritten /Contents array not found")
	}
	// The first stream saves graphics state, the last restores it before
	// the new operators run.
	if !bytes.Contains(out, []byte("stream\nq\n\nendstream")) {
		t.Errorf("wrapper stream missing")
	}
	if !bytes.Contains(out, []byte("stream\nQ\nBT")) {
		t.Errorf("restore prefix missing from new content stream")
	}
}

func TestSaveMergesResources(t *testing.T) {
	doc, err := LoadExisting(minimalPDF(1))
	if err != nil {
		t.Fatalf("LoadExisting failed: %v", err)
	}
	page, _ := doc.GetPage(0)
	page.DrawText("x", TextOptions{X: 1, Y: 1})

	out, err := doc.Save()
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// The existing ProcSet array survives and the shared font joins it.
	if !bytes.Contains(out, []byte("/ProcSet [/PDF]")) {
		t.Errorf("original ProcSet lost")
	}
	if m, _ := regexp.Match(`/Font << /F0 \d+ 0 R >>`, out); !m {
		t.Errorf("shared font resource missing")
	}
}

func TestEmbedImage(t *testing.T) {
	doc, err := LoadExisting(minimalPDF(1))
	if err != nil {
		t.Fatalf("LoadExisting failed: %v", err)
	}

	img, err := doc.EmbedImage(pngFixture(t))
	if err != nil {
		t.Fatalf("EmbedImage failed: %v", err)
	}
	if img.Width() != 2 || img.Height() != 2 {
		t.Errorf("image dimensions = %dx%d, want 2x2", img.Width(), img.Height())
	}

	page, _ := doc.GetPage(0)
	page.DrawImage(img, ImageOptions{X: 50, Y: 60, Width: 200, Height: 200})

	out, err := doc.Save()
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	for _, want := range []string{
		"/Subtype /Image",
		"/Filter /FlateDecode",
		"/Predictor 15",
		fmt.Sprintf("/Im%d Do", img.Object()),
		fmt.Sprintf("/XObject << /Im%d %d 0 R >>", img.Object(), img.Object()),
	} {
		if !bytes.Contains(out, []byte(want)) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestEmbedImageRejectsGarbage(t *testing.T) {
	doc, err := LoadExisting(minimalPDF(1))
	if err != nil {
		t.Fatalf("LoadExisting failed: %v", err)
	}
	if _, err := doc.EmbedImage([]byte("not a png")); !errors.Is(err, images.ErrInvalidPNG) {
		t.Errorf("err = %v, want ErrInvalidPNG", err)
	}
}

func TestHundredPages(t *testing.T) {
	doc, err := LoadExisting(minimalPDF(100))
	if err != nil {
		t.Fatalf("LoadExisting failed: %v", err)
	}
	if doc.PageCount() != 100 {
		t.Fatalf("PageCount = %d, want 100", doc.PageCount())
	}

	for i := 0; i < 100; i++ {
		page, err := doc.GetPage(i)
		if err != nil {
			t.Fatalf("GetPage(%d) failed: %v", i, err)
		}
		if page.Width() <= 0 || page.Height() <= 0 {
			t.Fatalf("page %d has dimensions %vx%v", i, page.Width(), page.Height())
		}
		page.DrawText(fmt.Sprintf("page %d", i), TextOptions{X: 72, Y: 72})
	}

	result, err := doc.SaveWithPlaceholder(PlaceholderOptions{})
	if err != nil {
		t.Fatalf("SaveWithPlaceholder failed: %v", err)
	}
	out := result.Data
	if len(out) <= len(minimalPDF(100)) {
		t.Fatalf("output not longer than input")
	}

	reloaded, err := LoadExisting(out)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if reloaded.PageCount() != 100 {
		t.Errorf("reloaded PageCount = %d, want 100", reloaded.PageCount())
	}
}

func TestSaveWithPlaceholder(t *testing.T) {
	original := minimalPDF(1)
	doc, err := LoadExisting(original)
	if err != nil {
		t.Fatalf("LoadExisting failed: %v", err)
	}

	result, err := doc.SaveWithPlaceholder(PlaceholderOptions{
		Reason:          "Approved",
		Name:            "Test Signer",
		SignatureLength: 2048,
	})
	if err != nil {
		t.Fatalf("SaveWithPlaceholder failed: %v", err)
	}

	br := result.ByteRange
	if br[0] != 0 {
		t.Errorf("br[0] = %d, want 0", br[0])
	}
	if br[0]+br[1] >= br[2] {
		t.Errorf("spans overlap: %v", br)
	}
	if br.TotalBytes() != int64(len(result.Data)) {
		t.Errorf("TotalBytes = %d, want file length %d", br.TotalBytes(), len(result.Data))
	}

	// The hex placeholder is exactly twice the reserved capacity, and the
	// patched /ByteRange matches what Find recovers from the bytes.
	found, err := byterange.Find(result.Data)
	if err != nil {
		t.Fatalf("Find on saved data failed: %v", err)
	}
	if found.Length != 2*2048 {
		t.Errorf("placeholder length = %d, want %d", found.Length, 2*2048)
	}
	if found.ByteRange != br {
		t.Errorf("patched range %v does not match returned range %v", found.ByteRange, br)
	}

	for _, want := range []string{
		"/Type /Sig",
		"/Filter /Adobe.PPKLite",
		"/SubFilter /adbe.pkcs7.detached",
		"/Reason (Approved)",
		"/Name (Test Signer)",
		"/Subtype /Widget",
		"/SigFlags 3",
		"/AcroForm ",
	} {
		if !bytes.Contains(result.Data, []byte(want)) {
			t.Errorf("output missing %q", want)
		}
	}
	if !bytes.Equal(result.Data[:len(original)], original) {
		t.Errorf("original bytes were modified")
	}
}

func TestSaveWithPlaceholderDefaultCapacity(t *testing.T) {
	doc, err := LoadExisting(minimalPDF(1))
	if err != nil {
		t.Fatalf("LoadExisting failed: %v", err)
	}
	result, err := doc.SaveWithPlaceholder(PlaceholderOptions{})
	if err != nil {
		t.Fatalf("SaveWithPlaceholder failed: %v", err)
	}
	found, err := byterange.Find(result.Data)
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if found.Length != 2*DefaultSignatureLength {
		t.Errorf("placeholder length = %d, want %d", found.Length, 2*DefaultSignatureLength)
	}
}

func TestPlaceholderDocMDP(t *testing.T) {
	doc, err := LoadExisting(minimalPDF(1))
	if err != nil {
		t.Fatalf("LoadExisting failed: %v", err)
	}
	result, err := doc.SaveWithPlaceholder(PlaceholderOptions{DocMDPPermission: 99})
	if err != nil {
		t.Fatalf("SaveWithPlaceholder failed: %v", err)
	}

	for _, want := range []string{
		"/TransformMethod /DocMDP",
		"/TransformParams << /Type /TransformParams /P 3 /V /1.2 >>",
		"/Perms << /DocMDP ",
	} {
		if !bytes.Contains(result.Data, []byte(want)) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestPlaceholderJoinsExistingAnnots(t *testing.T) {
	pdf := buildFixture([]fixtureObject{
		{body: "<< /Type /Catalog /Pages 2 0 R >>"},
		{body: "<< /Type /Pages /Kids [3 0 R] /Count 1 >>"},
		{body: "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Annots 4 0 R >>"},
		{body: "[5 0 R]"},
		{body: "<< /Type /Annot /Subtype /Link >>"},
	})

	doc, err := LoadExisting(pdf)
	if err != nil {
		t.Fatalf("LoadExisting failed: %v", err)
	}
	result, err := doc.SaveWithPlaceholder(PlaceholderOptions{})
	if err != nil {
		t.Fatalf("SaveWithPlaceholder failed: %v", err)
	}

	// The indirect annotation array is inlined with the widget appended.
	if m, _ := regexp.Match(`/Annots \[5 0 R \d+ 0 R\]`, result.Data); !m {
		t.Errorf("widget did not join the existing annotation array")
	}
}

func TestPlaceholderAndDrawingShareOnePageRewrite(t *testing.T) {
	doc, err := LoadExisting(minimalPDF(1))
	if err != nil {
		t.Fatalf("LoadExisting failed: %v", err)
	}
	page, _ := doc.GetPage(0)
	page.DrawText("signed here", TextOptions{X: 100, Y: 100})

	result, err := doc.SaveWithPlaceholder(PlaceholderOptions{})
	if err != nil {
		t.Fatalf("SaveWithPlaceholder failed: %v", err)
	}

	// The page object is emitted once, carrying both rewrites.
	update := result.Data[len(minimalPDF(1)):]
	if n := bytes.Count(update, []byte("\n3 0 obj")); n != 1 {
		t.Errorf("page object emitted %d times, want 1", n)
	}
	pageStart := bytes.Index(update, []byte("3 0 obj"))
	pageEnd := bytes.Index(update[pageStart:], []byte("endobj"))
	pageDict := update[pageStart : pageStart+pageEnd]
	if !bytes.Contains(pageDict, []byte("/Annots [")) {
		t.Errorf("staged page missing /Annots: %s", pageDict)
	}
	if !bytes.Contains(pageDict, []byte("/Contents [")) {
		t.Errorf("staged page missing rewritten /Contents: %s", pageDict)
	}
}

func TestPlaceholderNoPages(t *testing.T) {
	pdf := buildFixture([]fixtureObject{
		{body: "<< /Type /Catalog /Pages 2 0 R >>"},
		{body: "<< /Type /Pages /Kids [] /Count 0 >>"},
	})
	doc, err := LoadExisting(pdf)
	if err != nil {
		t.Fatalf("LoadExisting failed: %v", err)
	}
	if _, err := doc.SaveWithPlaceholder(PlaceholderOptions{}); !errors.Is(err, ErrNoPages) {
		t.Errorf("err = %v, want ErrNoPages", err)
	}
}

func TestPrepareSignEmbedRoundTrip(t *testing.T) {
	doc, err := LoadExisting(minimalPDF(1))
	if err != nil {
		t.Fatalf("LoadExisting failed: %v", err)
	}
	result, err := doc.SaveWithPlaceholder(PlaceholderOptions{SignatureLength: 64})
	if err != nil {
		t.Fatalf("SaveWithPlaceholder failed: %v", err)
	}

	signed, err := byterange.ExtractBytesToSign(result.Data, result.ByteRange)
	if err != nil {
		t.Fatalf("ExtractBytesToSign failed: %v", err)
	}
	if int64(len(signed)) != result.ByteRange[1]+result.ByteRange[3] {
		t.Errorf("signed length = %d, want %d", len(signed), result.ByteRange[1]+result.ByteRange[3])
	}

	signature := bytes.Repeat([]byte{0xAB}, 48)
	out, err := byterange.EmbedSignature(result.Data, signature)
	if err != nil {
		t.Fatalf("EmbedSignature failed: %v", err)
	}
	if int64(len(out)) != result.ByteRange.TotalBytes() {
		t.Errorf("embedding changed the file length")
	}

	// The signed spans are untouched by embedding.
	after, err := byterange.ExtractBytesToSign(out, result.ByteRange)
	if err != nil {
		t.Fatalf("ExtractBytesToSign after embed failed: %v", err)
	}
	if !bytes.Equal(signed, after) {
		t.Errorf("embedding modified signed bytes")
	}
}
