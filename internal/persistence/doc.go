// Package persistence ties the relational store and the artifact directory
// together so a video's detection result is either fully recorded or absent.
//
// Commit writes the artifact to a temp file, inserts the summary row, renames
// the temp file into place, and only then commits the row. Any failure removes
// the temp file and rolls the video claim back. A crash between those steps
// leaves at most a temp file, an unclaimed artifact, or a placeholder row
// without a summary; Reconcile clears all three and restores artifacts that
// went missing while their row survived.
package persistence
