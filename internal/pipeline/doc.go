// Package pipeline runs the per sub-area workflow.
//
// A Pipeline executes Steps in order against one SubAreaReport: prepare
// the working copy, commit and push, wait for the processed model and
// submit each scenario. The first failing step stops the pipeline and is
// recorded in the report.
//
// The Runner processes sub-areas one after another. A failed sub-area does
// not stop the run; the next sub-area starts with a fresh pipeline.
package pipeline
