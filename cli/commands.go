package cli

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/georgepadayatti/incpdf/config"
	"github.com/georgepadayatti/incpdf/pdf/document"
	"github.com/georgepadayatti/incpdf/sign/byterange"
)

// StampCommand implements the 'stamp' command: it applies the drawing
// operations of a YAML job to an existing PDF and saves the result as an
// incremental update.
func StampCommand(args []string) {
	flags := flag.NewFlagSet("stamp", flag.ExitOnError)

	jobPath := flags.String("job", "", "YAML job description (required)")

	flags.Usage = func() {
		fmt.Printf("Usage: %s stamp -job <job.yaml> <input.pdf> <output.pdf>\n\n", os.Args[0])
		fmt.Println("Apply the drawing operations of a job description to a PDF.")
		fmt.Println("")
		fmt.Println("Options:")
		flags.PrintDefaults()
	}

	flags.Parse(args[2:])
	rest := flags.Args()
	if *jobPath == "" || len(rest) != 2 {
		flags.Usage()
		osExit(2)
		return
	}

	job, err := config.Load(*jobPath)
	if err != nil {
		fail("loading job: %v", err)
	}

	doc := loadDocument(rest[0])
	applyJob(doc, job, filepath.Dir(*jobPath))

	if job.Placeholder != nil {
		result, err := doc.SaveWithPlaceholder(placeholderOptions(job.Placeholder))
		if err != nil {
			fail("saving %s: %v", rest[1], err)
		}
		writeFile(rest[1], result.Data)
		fmt.Printf("ByteRange: %v\n", result.ByteRange)
		return
	}

	out, err := doc.Save()
	if err != nil {
		fail("saving %s: %v", rest[1], err)
	}
	writeFile(rest[1], out)
}

// PrepareCommand implements the 'prepare' command: it saves the input PDF
// with a zero-filled signature placeholder and prints the ByteRange an
// external signer must hash.
func PrepareCommand(args []string) {
	flags := flag.NewFlagSet("prepare", flag.ExitOnError)

	var opts document.PlaceholderOptions
	flags.StringVar(&opts.Reason, "reason", "", "Reason for signing")
	flags.StringVar(&opts.Name, "name", "", "Name of the signatory")
	flags.StringVar(&opts.Location, "location", "", "Location of the signatory")
	flags.StringVar(&opts.ContactInfo, "contact", "", "Contact information for signatory")
	flags.IntVar(&opts.SignatureLength, "capacity", document.DefaultSignatureLength, "Reserved signature capacity in bytes")
	flags.IntVar(&opts.DocMDPPermission, "docmdp", 0, "DocMDP permission level (1, 2 or 3; 0 omits it)")
	flags.IntVar(&opts.AppearancePage, "page", 0, "Zero-based page index for the signature widget")
	stampTime := flags.Bool("time", true, "Record the current time as the signing time")

	flags.Usage = func() {
		fmt.Printf("Usage: %s prepare [options] <input.pdf> <output.pdf>\n\n", os.Args[0])
		fmt.Println("Save a PDF with a detached-signature placeholder.")
		fmt.Println("")
		fmt.Println("Options:")
		flags.PrintDefaults()
	}

	flags.Parse(args[2:])
	rest := flags.Args()
	if len(rest) != 2 {
		flags.Usage()
		osExit(2)
		return
	}

	if *stampTime {
		opts.SigningTime = time.Now()
	}

	doc := loadDocument(rest[0])
	result, err := doc.SaveWithPlaceholder(opts)
	if err != nil {
		fail("preparing %s: %v", rest[1], err)
	}

	writeFile(rest[1], result.Data)
	fmt.Printf("ByteRange: %v\n", result.ByteRange)
}

// EmbedCommand implements the 'embed' command: it writes a detached
// signature produced by an external signer into a prepared PDF.
func EmbedCommand(args []string) {
	flags := flag.NewFlagSet("embed", flag.ExitOnError)

	flags.Usage = func() {
		fmt.Printf("Usage: %s embed <prepared.pdf> <signature.p7s> <output.pdf>\n\n", os.Args[0])
		fmt.Println("Embed a detached PKCS#7 signature into a prepared PDF.")
	}

	flags.Parse(args[2:])
	rest := flags.Args()
	if len(rest) != 3 {
		flags.Usage()
		osExit(2)
		return
	}

	buf, err := os.ReadFile(rest[0])
	if err != nil {
		fail("reading %s: %v", rest[0], err)
	}
	sig, err := os.ReadFile(rest[1])
	if err != nil {
		fail("reading %s: %v", rest[1], err)
	}

	buf, err = byterange.EmbedSignature(buf, sig)
	if err != nil {
		fail("embedding signature: %v", err)
	}
	writeFile(rest[2], buf)
}

// RangesCommand implements the 'ranges' command: it prints the ByteRange
// and placeholder capacity of a prepared PDF.
func RangesCommand(args []string) {
	flags := flag.NewFlagSet("ranges", flag.ExitOnError)

	flags.Usage = func() {
		fmt.Printf("Usage: %s ranges <prepared.pdf>\n\n", os.Args[0])
		fmt.Println("Print the ByteRange of a prepared PDF.")
	}

	flags.Parse(args[2:])
	rest := flags.Args()
	if len(rest) != 1 {
		flags.Usage()
		osExit(2)
		return
	}

	buf, err := os.ReadFile(rest[0])
	if err != nil {
		fail("reading %s: %v", rest[0], err)
	}

	placement, err := byterange.Find(buf)
	if err != nil {
		fail("locating placeholder: %v", err)
	}

	fmt.Printf("ByteRange: %v\n", placement.ByteRange)
	fmt.Printf("Placeholder capacity: %d bytes (%d hex characters)\n",
		placement.Length/2, placement.Length)
}

// writeFile writes an output file, exiting on failure.
func writeFile(path string, data []byte) {
	if err := os.WriteFile(path, data, 0644); err != nil {
		fail("writing %s: %v", path, err)
	}
}

// loadDocument reads and parses a PDF, exiting on failure.
func loadDocument(path string) *document.Document {
	data, err := os.ReadFile(path)
	if err != nil {
		fail("reading %s: %v", path, err)
	}
	doc, err := document.LoadExisting(data)
	if err != nil {
		fail("parsing %s: %v", path, err)
	}
	return doc
}

// applyJob replays the job's drawing operations onto the document. Image
// paths are resolved relative to the job file.
func applyJob(doc *document.Document, job *config.Job, baseDir string) {
	for _, pageOps := range job.Pages {
		page, err := doc.GetPage(pageOps.Index)
		if err != nil {
			fail("page %d: %v", pageOps.Index, err)
		}

		for _, op := range pageOps.Text {
			page.DrawText(op.Text, document.TextOptions{
				X: op.X, Y: op.Y, Size: op.Size, Color: toColor(op.Color),
			})
		}
		for _, op := range pageOps.Rectangles {
			page.DrawRectangle(document.RectangleOptions{
				X: op.X, Y: op.Y, Width: op.Width, Height: op.Height,
				FillColor: toColor(op.Fill), StrokeColor: toColor(op.Stroke),
				StrokeWidth: op.StrokeWidth,
			})
		}
		for _, op := range pageOps.Images {
			path := op.File
			if !filepath.IsAbs(path) {
				path = filepath.Join(baseDir, path)
			}
			pngData, err := os.ReadFile(path)
			if err != nil {
				fail("reading image %s: %v", path, err)
			}
			img, err := doc.EmbedImage(pngData)
			if err != nil {
				fail("embedding image %s: %v", path, err)
			}
			page.DrawImage(img, document.ImageOptions{
				X: op.X, Y: op.Y, Width: op.Width, Height: op.Height,
			})
		}
	}
}

// placeholderOptions converts the YAML placeholder block into save
// options.
func placeholderOptions(p *config.PlaceholderConfig) document.PlaceholderOptions {
	return document.PlaceholderOptions{
		Reason:           p.Reason,
		Name:             p.Name,
		Location:         p.Location,
		ContactInfo:      p.ContactInfo,
		SigningTime:      time.Now(),
		SignatureLength:  p.SignatureLength,
		DocMDPPermission: p.DocMDP,
		AppearancePage:   p.Page,
	}
}

func toColor(rgb *config.RGB) *document.Color {
	if rgb == nil {
		return nil
	}
	return &document.Color{R: rgb.R, G: rgb.G, B: rgb.B}
}
