// Package logs reads the daemon log file for `vidsentry logs`.
//
// Last returns the final N lines with bounded memory, ReadFrom resumes at a
// byte offset, and Follow streams appended lines until the context ends,
// waking on fsnotify write events for the log file instead of polling.
package logs
