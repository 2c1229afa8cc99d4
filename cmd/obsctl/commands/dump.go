package commands

import (
	"fmt"
	"io"

	"github.com/qtilities/qtilities-go/pkg/inspect"
)

// DumpOptions controls the dump output.
type DumpOptions struct {
	ShowIDs        bool
	ShowReserved   bool
	HideProperties bool
	Stats          bool
}

// RunDump prints the observer tree stored in an export file.
func RunDump(path string, opts DumpOptions, w io.Writer) error {
	doc, format, err := ReadDocument(path)
	if err != nil {
		return err
	}

	f := inspect.NewFormatter()
	f.ShowIDs = opts.ShowIDs
	f.ShowReserved = opts.ShowReserved
	f.ShowProperties = !opts.HideProperties

	fmt.Fprintf(w, "Export: %s (%s, version %s)\n", path, format, doc.Version)
	fmt.Fprintln(w, "---")
	fmt.Fprint(w, f.FormatTree(inspect.InspectDocument(doc)))

	if opts.Stats {
		fmt.Fprintln(w, "---")
		fmt.Fprint(w, f.FormatStats(inspect.DocumentStats(doc)))
	}
	return nil
}
