package rain

import (
	"errors"
	"math"
	"testing"

	"github.com/nao1215/threedibatch/internal/threedi"
)

// TestMMPerHourToMPerSecond tests the unit conversion.
func TestMMPerHourToMPerSecond(t *testing.T) {
	t.Parallel()

	tests := []struct {
		mmPerHour float64
		want      float64
	}{
		{70, 70.0 / 1000.0 / 3600.0},
		{90, 2.5e-5},
		{3600, 1e-3},
		{0, 0},
	}

	for _, tt := range tests {
		got := MMPerHourToMPerSecond(tt.mmPerHour)
		if math.Abs(got-tt.want) > 1e-15 {
			t.Errorf("MMPerHourToMPerSecond(%v) = %v, want %v", tt.mmPerHour, got, tt.want)
		}
	}
}

// TestNewConstantEvent tests the constant rain payload.
func TestNewConstantEvent(t *testing.T) {
	t.Parallel()

	event := NewConstantEvent(80, 7200)

	if event.Offset != 0 {
		t.Errorf("expected offset 0, got %d", event.Offset)
	}
	if event.Duration != 7200 {
		t.Errorf("expected duration 7200, got %d", event.Duration)
	}
	if math.Abs(event.Value-80.0/1000.0/3600.0) > 1e-15 {
		t.Errorf("unexpected value %v", event.Value)
	}
	if event.Units != threedi.RainUnits {
		t.Errorf("expected units %q, got %q", threedi.RainUnits, event.Units)
	}
}

// TestParseTimeseries tests time series parsing.
func TestParseTimeseries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		ts   string
		want [][2]float64
	}{
		{
			name: "two pairs",
			ts:   "0,0.00002\n3600,0",
			want: [][2]float64{{0, 0.00002}, {3600, 0}},
		},
		{
			name: "trailing newline and blank lines",
			ts:   "0,0.00001944444\n\n3600,0\n",
			want: [][2]float64{{0, 0.00001944444}, {3600, 0}},
		},
		{
			name: "windows line endings and spaces",
			ts:   "0, 1e-5\r\n300 ,2e-5\r\n600,0\r\n",
			want: [][2]float64{{0, 1e-5}, {300, 2e-5}, {600, 0}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseTimeseries(tt.ts)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d pairs, got %v", len(tt.want), got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("pair %d = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}

	errTests := []struct {
		name string
		ts   string
		want error
	}{
		{"missing comma", "0 0.00002", ErrInvalidTimeseries},
		{"non numeric offset", "a,1", ErrInvalidTimeseries},
		{"non numeric value", "0,x", ErrInvalidTimeseries},
		{"three fields", "0,1,2", ErrInvalidTimeseries},
		{"empty", "", ErrEmptyTimeseries},
		{"only blank lines", "\n \n", ErrEmptyTimeseries},
	}

	for _, tt := range errTests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := ParseTimeseries(tt.ts); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

// TestNewTimeseriesEvent tests the time series payload.
func TestNewTimeseriesEvent(t *testing.T) {
	t.Parallel()

	t.Run("builds payload", func(t *testing.T) {
		t.Parallel()

		event, err := NewTimeseriesEvent("0,0.00002\n3600,0", 300.9)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if event.Offset != 300 {
			t.Errorf("expected truncated offset 300, got %d", event.Offset)
		}
		if event.Interpolate {
			t.Error("expected interpolate to be false")
		}
		if event.Units != "m/s" {
			t.Errorf("unexpected units %q", event.Units)
		}
		if len(event.Values) != 2 || Duration(event.Values) != 3600 {
			t.Errorf("unexpected values %v", event.Values)
		}
	})

	t.Run("propagates parse errors", func(t *testing.T) {
		t.Parallel()

		if _, err := NewTimeseriesEvent("bogus", 0); !errors.Is(err, ErrInvalidTimeseries) {
			t.Errorf("expected ErrInvalidTimeseries, got %v", err)
		}
	})
}
