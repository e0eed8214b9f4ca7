// Package main hosts the vidsentry CLI entrypoint and command graph.
//
// "vidsentry run" starts the daemon in the foreground. The remaining commands
// work directly against the store and artifact directory described by the
// configuration, so they are usable whether or not a daemon is running;
// "reconcile" is the exception and refuses while the daemon holds its lock.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
