// Command incpdf is a CLI tool for incremental PDF editing and
// detached-signature preparation.
//
// Usage:
//
//	incpdf <command> [options] <args>
//
// Commands:
//
//	stamp    Apply a YAML-described set of drawing operations to a PDF
//	prepare  Save a PDF with a detached-signature placeholder
//	embed    Embed a detached signature into a prepared PDF
//	ranges   Print the ByteRange of a prepared PDF
//	version  Show version information
//	help     Show help message
//
// Examples:
//
//	# Stamp a PDF with the operations described in a job file
//	incpdf stamp -job job.yaml input.pdf output.pdf
//
//	# Prepare a PDF for external signing
//	incpdf prepare -reason "Approved" input.pdf prepared.pdf
//
//	# Embed the detached signature an external signer produced
//	incpdf embed prepared.pdf signature.p7s signed.pdf
package main

import (
	"os"

	"github.com/georgepadayatti/incpdf/cli"
)

// These variables are set at build time using ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.buildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)" ./cmd/incpdf
var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	// Set version info
	cli.Version = version
	cli.BuildTime = buildTime

	// Run the CLI
	cli.Run(os.Args)
}
