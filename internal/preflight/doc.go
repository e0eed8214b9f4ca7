// Package preflight provides readiness checks for the filesystem paths,
// decoder binaries, and inference service that vidsentry depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll on start and logs every failure as a warning.
//     Startup continues; a missing detector only fails individual videos.
//   - The CLI "vidsentry status" command renders the same results as a table.
package preflight
