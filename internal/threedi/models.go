package threedi

import (
	"strconv"
	"strings"
	"time"
)

// DatetimeLayout is the layout of start_datetime in simulation requests.
const DatetimeLayout = "2006-01-02T15:04:05"

// Simulation status names reported by the status endpoint.
const (
	StatusCreated        = "created"
	StatusStarting       = "starting"
	StatusInitialized    = "initialized"
	StatusQueued         = "queued"
	StatusEnded          = "ended"
	StatusPostProcessing = "postprocessing"
	StatusFinished       = "finished"
	StatusCrashed        = "crashed"
)

// RainUnits is the only unit the rain event endpoints accept here.
const RainUnits = "m/s"

// ActionStart starts a created simulation.
const ActionStart = "start"

// page is one page of a paginated list endpoint.
type page[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

// Organisation is an organisation the user may run simulations for.
type Organisation struct {
	URL      string `json:"url,omitempty"`
	UniqueID string `json:"unique_id"`
	Name     string `json:"name"`
}

// ThreediModel is a schematisation revision processed into a model.
type ThreediModel struct {
	ID             int    `json:"id"`
	URL            string `json:"url,omitempty"`
	Name           string `json:"name"`
	Slug           string `json:"slug,omitempty"`
	RepositorySlug string `json:"repository_slug"`

	// RevisionNumber is a string in the API, e.g. "42".
	RevisionNumber string `json:"revision_number"`
	RevisionID     int    `json:"revision_id,omitempty"`
	RevisionHash   string `json:"revision_hash,omitempty"`

	Disabled bool `json:"disabled"`
	IsValid  bool `json:"is_valid"`
}

// Revision returns RevisionNumber as an integer, or -1 when it is not numeric.
func (m ThreediModel) Revision() int {
	n, err := strconv.Atoi(strings.TrimSpace(m.RevisionNumber))
	if err != nil {
		return -1
	}
	return n
}

// ModelFilter narrows the processed-model listing.
type ModelFilter struct {
	RepositorySlug string
	RevisionNumber int
	Limit          int
}

// NewSimulation is the create-simulation request body.
type NewSimulation struct {
	Name          string `json:"name"`
	ThreediModel  int    `json:"threedimodel"`
	Organisation  string `json:"organisation"`
	StartDatetime string `json:"start_datetime"`

	// Duration in seconds.
	Duration int `json:"duration"`

	Tags []string `json:"tags,omitempty"`
}

// NewSimulationAt builds a NewSimulation starting at start.
func NewSimulationAt(name string, modelID int, organisation string, start time.Time, duration int) NewSimulation {
	return NewSimulation{
		Name:          name,
		ThreediModel:  modelID,
		Organisation:  organisation,
		StartDatetime: start.Format(DatetimeLayout),
		Duration:      duration,
	}
}

// Simulation is a created simulation.
type Simulation struct {
	ID             int    `json:"id"`
	URL            string `json:"url,omitempty"`
	UUID           string `json:"uuid,omitempty"`
	Name           string `json:"name"`
	ThreediModelID int    `json:"threedimodel_id"`
	Organisation   string `json:"organisation,omitempty"`
	StartDatetime  string `json:"start_datetime,omitempty"`
	Duration       int    `json:"duration"`
}

// ConstantRain is a uniform rain event with a constant intensity.
type ConstantRain struct {
	// Offset from simulation start in seconds.
	Offset int `json:"offset"`

	// Duration in seconds.
	Duration int `json:"duration"`

	// Value is the intensity in Units.
	Value float64 `json:"value"`
	Units string  `json:"units"`
}

// TimeseriesRain is a uniform rain event following a time series.
type TimeseriesRain struct {
	Offset      int  `json:"offset"`
	Interpolate bool `json:"interpolate"`

	// Values are [seconds since offset, intensity] pairs.
	Values [][2]float64 `json:"values"`
	Units  string       `json:"units"`
}

// LizardBasicPostProcessing enables basic result processing in Lizard.
type LizardBasicPostProcessing struct {
	ScenarioName        string `json:"scenario_name"`
	ProcessBasicResults bool   `json:"process_basic_results"`
}

// Action is a simulation action such as ActionStart.
type Action struct {
	Name string `json:"name"`
}

// SimulationStatus is the current state of a simulation.
type SimulationStatus struct {
	Name    string    `json:"name"`
	Paused  bool      `json:"paused"`
	Created time.Time `json:"created"`

	// Time is the simulated time in seconds.
	Time float64 `json:"time"`
}

// SimulationProgress reports how far a running simulation is.
type SimulationProgress struct {
	Percentage float64 `json:"percentage"`
	Time       float64 `json:"time"`
}

// tokenRequest is the body of the token endpoint.
type tokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// tokenResponse is the token endpoint response.
type tokenResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}
