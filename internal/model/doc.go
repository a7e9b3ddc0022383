// Package model defines the result types of a batch run.
//
// A RunSummary collects one SubAreaReport per processed sub-area. A
// SubAreaReport records how far the sub-area got: the prepared rasters,
// the pushed revision, the processed model and the submitted simulations,
// or the step that failed and its error.
//
// The types serialize to JSON for the report writers and the history
// database.
package model
