package commands

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

// ConvertOptions specifies the target of a conversion.
type ConvertOptions struct {
	// To is the output format (binary, tree). Empty keeps the input format.
	To string

	// Version is the output format version. Empty keeps the input version.
	Version string

	// Output is the output file. Empty writes to the given writer.
	Output string
}

// RunConvert rewrites an export in another format or format version.
func RunConvert(path string, opts ConvertOptions, w io.Writer) error {
	doc, format, err := ReadDocument(path)
	if err != nil {
		return err
	}

	if opts.To != "" {
		format, err = ParseFormatFlag(opts.To)
		if err != nil {
			return err
		}
	}
	if opts.Version != "" {
		if err := doc.Convert(opts.Version); err != nil {
			return err
		}
	}

	var buf bytes.Buffer
	if err := WriteDocument(&buf, doc, format); err != nil {
		return fmt.Errorf("failed to encode export: %w", err)
	}

	if opts.Output == "" {
		_, err := w.Write(buf.Bytes())
		return err
	}
	if err := os.WriteFile(opts.Output, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
