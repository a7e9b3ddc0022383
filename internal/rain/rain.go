package rain

import (
	"bufio"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/nao1215/threedibatch/internal/threedi"
)

// ErrInvalidTimeseries is returned for a time series line that is not an
// "offset,value" pair of numbers.
var ErrInvalidTimeseries = errors.New("invalid rain time series")

// ErrEmptyTimeseries is returned when a time series has no data lines.
var ErrEmptyTimeseries = errors.New("empty rain time series")

// MMPerHourToMPerSecond converts a rain intensity from mm/h to m/s.
func MMPerHourToMPerSecond(mmPerHour float64) float64 {
	return mmPerHour / 1000 / 3600
}

// NewConstantEvent returns a constant rain event starting at the beginning
// of the simulation.
func NewConstantEvent(intensityMMPerHour float64, durationSeconds int) threedi.ConstantRain {
	return threedi.ConstantRain{
		Offset:   0,
		Duration: durationSeconds,
		Value:    MMPerHourToMPerSecond(intensityMMPerHour),
		Units:    threedi.RainUnits,
	}
}

// ParseTimeseries parses newline separated "offset,value" pairs.
// Blank lines are ignored; "\r\n" line endings are accepted.
//
//	ParseTimeseries("0,0.00002\n3600,0") // [[0 0.00002] [3600 0]]
func ParseTimeseries(ts string) ([][2]float64, error) {
	var values [][2]float64

	scanner := bufio.NewScanner(strings.NewReader(ts))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		offset, value, ok := strings.Cut(line, ",")
		if !ok {
			return nil, fmt.Errorf("%w: line %d: %q", ErrInvalidTimeseries, lineNo, line)
		}

		o, err := strconv.ParseFloat(strings.TrimSpace(offset), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: offset %q", ErrInvalidTimeseries, lineNo, offset)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: value %q", ErrInvalidTimeseries, lineNo, value)
		}

		values = append(values, [2]float64{o, v})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rain time series: %w", err)
	}

	if len(values) == 0 {
		return nil, ErrEmptyTimeseries
	}
	return values, nil
}

// NewTimeseriesEvent parses ts and returns a time series rain event.
// The offset is truncated to whole seconds.
func NewTimeseriesEvent(ts string, offset float64) (threedi.TimeseriesRain, error) {
	values, err := ParseTimeseries(ts)
	if err != nil {
		return threedi.TimeseriesRain{}, err
	}

	return threedi.TimeseriesRain{
		Offset:      int(offset),
		Interpolate: false,
		Values:      values,
		Units:       threedi.RainUnits,
	}, nil
}

// Duration returns the length of a time series in seconds, i.e. the offset
// of its last pair.
func Duration(values [][2]float64) int {
	if len(values) == 0 {
		return 0
	}
	return int(values[len(values)-1][0])
}
