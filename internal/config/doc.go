// Package config provides the configuration of a threedibatch run.
//
// A run is described by a YAML file (.threedibatch) naming the Mercurial
// working copy, the repository slug known to the 3Di service, the sub-area
// list, optional raster sources and the rain scenarios to submit. API
// credentials are read from a dotenv file or the process environment so
// that they never have to be embedded in repository URLs or source code.
package config
