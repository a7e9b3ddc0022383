package prepare

import "errors"

var (
	// ErrMissingRaster is returned when the source raster of a sub-area
	// does not exist.
	ErrMissingRaster = errors.New("source raster not found")

	// ErrNoSettingsRow is returned when the schematisation has no global
	// settings row to update.
	ErrNoSettingsRow = errors.New("schematisation has no global settings")
)
