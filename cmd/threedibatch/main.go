// Package main provides the entry point for the threedibatch CLI.
//
// threedibatch runs 3Di rain scenarios for every sub-area of a
// schematisation: it stages the sub-area rasters, commits and pushes the
// working copy, waits for 3Di to process the new revision and submits one
// simulation per scenario.
//
// Usage:
//
//	threedibatch init
//	threedibatch run
//	threedibatch history [run-id]
//
// See --help for all available options.
package main

func main() {
	Execute()
}
