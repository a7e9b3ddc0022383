// Package rain builds the rain events attached to simulations.
//
// Intensities are configured in mm/h and sent to the 3Di API in m/s.
// A scenario either carries a constant intensity for a fixed duration or a
// time series of "offset,value" lines with values already in m/s.
package rain
