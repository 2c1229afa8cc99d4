// Package persistence keeps exported observer trees on disk.
//
// A SnapshotStore owns a directory holding one export file per snapshot and a
// JSON manifest describing them (name, codec format, format version, subject
// count). Exports go through the codec package, so a snapshot can be loaded
// into any manager whose factory registry knows the exported types.
package persistence
