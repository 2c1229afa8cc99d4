// Package codec exports an observer subtree and imports it into another
// observer, in a binary or a tree form.
//
// # Binary form
//
// The binary form is a sequence of CBOR items. Fixed 32-bit markers bracket
// the stream and every observer, subject and property record:
//
//	MarkerStart header
//	  MarkerObserverStart observer-header
//	    MarkerSubjectStart subject-header
//	      MarkerPropertyStart property MarkerPropertyEnd ...
//	      [nested observer]
//	    MarkerSubjectEnd ...
//	  MarkerObserverEnd
//	MarkerEnd
//
// # Tree form
//
// The tree form is a YAML document with the same field set as nested nodes.
//
// # Versions
//
// Each format version declares the fields it carries in an embedded manifest
// (see package version). Exports may target an older version; fields the
// target lacks are not written. Readers default fields missing from older
// streams and ignore unknown fields of newer minors.
//
// # Import
//
// Import decodes and validates the whole stream before the target is
// touched. Subjects are re-created through a factory.Registry and their
// context IDs remapped to the new observers. A subject that appears in
// several observers of the export is written once and referenced after, so
// the multi-parent graph survives the round trip.
package codec
