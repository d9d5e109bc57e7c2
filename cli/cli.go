// Package cli provides the command-line interface for incremental PDF
// editing and signature preparation.
package cli

import (
	"fmt"
	"os"
)

// Version information
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// osExit is a variable for os.Exit to allow testing
var osExit = os.Exit

// Run executes the CLI with the given arguments.
// This is the main entry point for the CLI.
func Run(args []string) {
	if len(args) < 2 {
		Usage()
		return
	}

	command := args[1]

	switch command {
	case "stamp":
		StampCommand(args)
	case "prepare":
		PrepareCommand(args)
	case "embed":
		EmbedCommand(args)
	case "ranges":
		RangesCommand(args)
	case "version":
		VersionCommand()
	case "help", "-h", "--help":
		Usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		Usage()
	}
}

// Usage prints the CLI usage information.
func Usage() {
	fmt.Printf("incpdf - incremental PDF editing and signature preparation\n\n")
	fmt.Printf("Usage: %s <command> [options] <args>\n\n", os.Args[0])
	fmt.Println("Commands:")
	fmt.Println("  stamp    Apply a YAML-described set of drawing operations to a PDF")
	fmt.Println("  prepare  Save a PDF with a detached-signature placeholder")
	fmt.Println("  embed    Embed a detached signature into a prepared PDF")
	fmt.Println("  ranges   Print the ByteRange of a prepared PDF")
	fmt.Println("  version  Show version information")
	fmt.Println("  help     Show this help message")
	fmt.Println("")
	fmt.Printf("Use '%s <command> -h' for command-specific help\n", os.Args[0])
	fmt.Println("")
	fmt.Println("Examples:")
	fmt.Printf("  %s stamp -job job.yaml input.pdf output.pdf\n", os.Args[0])
	fmt.Printf("  %s prepare -reason \"Approved\" input.pdf prepared.pdf\n", os.Args[0])
	fmt.Printf("  %s embed prepared.pdf signature.p7s signed.pdf\n", os.Args[0])
}

// VersionCommand prints version information.
func VersionCommand() {
	fmt.Printf("incpdf version %s\n", Version)
	fmt.Printf("Build time: %s\n", BuildTime)
}

// fail prints an error and exits.
func fail(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	osExit(1)
}
