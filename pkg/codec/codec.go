package codec

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/qtilities/qtilities-go/pkg/factory"
	"github.com/qtilities/qtilities-go/pkg/log"
	"github.com/qtilities/qtilities-go/pkg/observer"
	"github.com/qtilities/qtilities-go/pkg/version"
)

// ErrNilObserver is returned when no observer is given.
var ErrNilObserver = errors.New("nil observer")

// Options configure an export or import.
type Options struct {
	// Version is the format version to write. Empty means version.Current.
	Version string

	// Registry re-creates subjects on import. Nil means factory.Default().
	Registry *factory.Registry
}

type format struct {
	name   string
	encode func(io.Writer, *Document) error
	decode func(io.Reader) (*Document, error)
}

var (
	binaryFormat = format{name: "binary", encode: encodeBinary, decode: decodeBinary}
	treeFormat   = format{name: "tree", encode: encodeTree, decode: decodeTree}
)

// ExportBinary writes obs and its nested observers to w in the binary form.
// Incomplete results carry the errors of the subjects left out.
func ExportBinary(w io.Writer, obs *observer.Observer, opts Options) (Result, error) {
	return export(w, obs, opts, binaryFormat)
}

// ImportBinary reads a binary stream and attaches its subjects to target.
// Incomplete results carry the errors of the subjects that were skipped.
func ImportBinary(r io.Reader, target *observer.Observer, opts Options) (Result, error) {
	return importInto(r, target, opts, binaryFormat)
}

// ExportTree writes obs and its nested observers to w as a YAML tree.
func ExportTree(w io.Writer, obs *observer.Observer, opts Options) (Result, error) {
	return export(w, obs, opts, treeFormat)
}

// ImportTree reads a YAML tree and attaches its subjects to target.
func ImportTree(r io.Reader, target *observer.Observer, opts Options) (Result, error) {
	return importInto(r, target, opts, treeFormat)
}

// DecodeBinary decodes and validates a binary stream without importing it.
func DecodeBinary(r io.Reader) (*Document, Result, error) {
	return decodeOnly(r, binaryFormat)
}

// DecodeTree decodes and validates a YAML tree without importing it.
func DecodeTree(r io.Reader) (*Document, Result, error) {
	return decodeOnly(r, treeFormat)
}

// EncodeBinary writes a decoded document in the binary form.
func EncodeBinary(w io.Writer, doc *Document) error { return encodeBinary(w, doc) }

// EncodeTree writes a decoded document as a YAML tree.
func EncodeTree(w io.Writer, doc *Document) error { return encodeTree(w, doc) }

func export(w io.Writer, obs *observer.Observer, opts Options, f format) (Result, error) {
	if obs == nil {
		return Failed, ErrNilObserver
	}
	start := time.Now()

	v := version.CurrentVersion()
	if opts.Version != "" {
		parsed, err := version.Parse(opts.Version)
		if err != nil {
			return finish(obs, log.CodecExport, f, opts.Version, Failed, 0, start, fmt.Errorf("%w: %v", ErrUnsupportedVersion, err))
		}
		v = parsed
	}
	m, err := version.LoadManifest(v.String())
	if err != nil {
		return finish(obs, log.CodecExport, f, v.String(), Failed, 0, start, fmt.Errorf("%w: %v", ErrUnsupportedVersion, err))
	}

	doc, problems := buildDocument(obs, v)
	doc.restrict(m)
	if err := f.encode(w, doc); err != nil {
		return finish(obs, log.CodecExport, f, v.String(), Failed, 0, start, fmt.Errorf("writing %s export: %w", f.name, err))
	}
	if len(problems) > 0 {
		return finish(obs, log.CodecExport, f, v.String(), Incomplete, doc.Subjects(), start, errors.Join(problems...))
	}
	return finish(obs, log.CodecExport, f, v.String(), Complete, doc.Subjects(), start, nil)
}

func importInto(r io.Reader, target *observer.Observer, opts Options, f format) (Result, error) {
	if target == nil {
		return Failed, ErrNilObserver
	}
	start := time.Now()

	doc, res, err := decodeOnly(r, f)
	if err != nil {
		return finish(target, log.CodecImport, f, "", res, 0, start, err)
	}
	ver := doc.Version.String()

	registry := opts.Registry
	if registry == nil {
		registry = factory.Default()
	}
	if registry == nil {
		return finish(target, log.CodecImport, f, ver, Failed, 0, start, ErrNoRegistry)
	}

	im := newImporter(target.Manager(), registry)
	restored := im.run(doc, target)
	if len(im.problems) > 0 {
		return finish(target, log.CodecImport, f, ver, Incomplete, restored, start, errors.Join(im.problems...))
	}
	return finish(target, log.CodecImport, f, ver, Complete, restored, start, nil)
}

func decodeOnly(r io.Reader, f format) (*Document, Result, error) {
	doc, err := f.decode(r)
	if err != nil {
		return nil, resultOf(err), fmt.Errorf("reading %s import: %w", f.name, err)
	}
	if err := validate(doc); err != nil {
		return nil, Failed, fmt.Errorf("reading %s import: %w", f.name, err)
	}
	return doc, Complete, nil
}

func resultOf(err error) Result {
	switch {
	case errors.Is(err, version.ErrTooNew):
		return VersionTooNew
	case errors.Is(err, version.ErrTooOld):
		return VersionTooOld
	default:
		return Failed
	}
}

// finish logs and traces a run and returns its result.
func finish(o *observer.Observer, dir log.CodecDirection, f format, ver string, res Result, subjects int, start time.Time, err error) (Result, error) {
	m := o.Manager()
	cfg := m.Config()

	outcome := log.OutcomeSuccess
	switch res {
	case VersionTooNew, VersionTooOld:
		outcome = log.OutcomeRejected
	case Failed:
		outcome = log.OutcomeFailed
	}

	if err != nil {
		m.Logger().Warn("codec run finished with errors",
			"direction", dir.String(), "format", f.name, "result", res.String(), "error", err)
	} else {
		m.Logger().Debug("codec run finished",
			"direction", dir.String(), "format", f.name, "version", ver, "subjects", subjects)
	}

	cfg.TraceLogger.Log(log.Event{
		Timestamp:    time.Now(),
		SessionID:    cfg.SessionID,
		Category:     log.CategoryCodec,
		Outcome:      outcome,
		ObserverID:   o.ID(),
		ObserverName: o.ObjectName(),
		Codec: &log.CodecEvent{
			Direction: dir,
			Format:    f.name,
			Version:   ver,
			Result:    res.String(),
			Subjects:  subjects,
			Duration:  time.Since(start),
		},
	})
	return res, err
}
