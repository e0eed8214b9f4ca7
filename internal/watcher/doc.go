// Package watcher observes the watch directory and reports video arrivals and
// removals.
//
// Only direct children of the directory are watched. A created or
// renamed-into-place file whose extension is on the allow-list is reported as
// FileArrived once its size has settled (see package stability). Every
// deletion or rename-away is reported as FileRemoved. Files already present
// when Run starts are picked up by an initial scan.
package watcher
