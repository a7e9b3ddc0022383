// Package prepare stages the per sub-area input rasters into the
// Mercurial working copy before it is committed.
//
// For every configured raster kind the file named after the sub-area is
// copied from its source directory into the repository raster directory
// under a fixed name, so every commit only changes raster contents. When a
// schematisation SQLite file is configured its raster references are
// pointed at the staged files.
package prepare
