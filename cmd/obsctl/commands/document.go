// Package commands implements the obsctl CLI commands.
package commands

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/qtilities/qtilities-go/pkg/codec"
)

// Export file formats.
const (
	FormatBinary = "binary"
	FormatTree   = "tree"
)

// cborUint32 is the CBOR initial byte of a 32-bit unsigned integer, which
// every binary export starts with (the start marker).
const cborUint32 = 0x1a

// ParseFormatFlag parses a -format or -to flag value.
func ParseFormatFlag(s string) (string, error) {
	switch strings.ToLower(s) {
	case "binary", "bin", "cbor":
		return FormatBinary, nil
	case "tree", "yaml", "yml":
		return FormatTree, nil
	default:
		return "", fmt.Errorf("invalid format %q (valid: binary, tree)", s)
	}
}

// DetectFormat guesses the format of an export from its file name, falling
// back to the first byte of its content.
func DetectFormat(path string, first byte) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".qbin", ".bin", ".cbor":
		return FormatBinary
	case ".yaml", ".yml", ".qtree":
		return FormatTree
	}
	if first == cborUint32 {
		return FormatBinary
	}
	return FormatTree
}

// ReadDocument decodes and validates an export file.
func ReadDocument(path string) (*codec.Document, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open export: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	head, _ := r.Peek(1)
	var first byte
	if len(head) > 0 {
		first = head[0]
	}
	format := DetectFormat(path, first)

	var doc *codec.Document
	var res codec.Result
	if format == FormatBinary {
		doc, res, err = codec.DecodeBinary(r)
	} else {
		doc, res, err = codec.DecodeTree(r)
	}
	if err != nil {
		return nil, format, fmt.Errorf("%s: %w", res, err)
	}
	return doc, format, nil
}

// WriteDocument encodes doc in the given format.
func WriteDocument(w io.Writer, doc *codec.Document, format string) error {
	switch format {
	case FormatBinary:
		return codec.EncodeBinary(w, doc)
	case FormatTree:
		return codec.EncodeTree(w, doc)
	default:
		return fmt.Errorf("invalid format %q", format)
	}
}
