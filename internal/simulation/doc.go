// Package simulation waits for processed 3Di models and runs simulations
// on them.
//
// The Waiter polls the processed-model listing until the model built from a
// pushed repository revision appears. The Submitter creates a simulation,
// attaches a rain event and post-processing, starts it and polls its status
// until it finishes, crashes, times out or the context is cancelled.
package simulation
