package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/google/uuid"

	"github.com/nao1215/threedibatch/internal/rain"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "threedibatch"

	// DefaultAPIHost is the production 3Di API.
	DefaultAPIHost = "https://api.3di.live"

	// DefaultAPITimeout is the timeout for a single API request.
	// Connection setup on the 3Di API is allowed 60 seconds in the
	// original batch scripts, so a single request gets the same budget.
	DefaultAPITimeout = 60 * time.Second

	// DefaultHgExecutable is the Mercurial binary looked up in PATH.
	DefaultHgExecutable = "hg"

	// DefaultModelPollInterval is the fixed interval between two
	// "list processed models" requests while waiting for a revision.
	DefaultModelPollInterval = 5 * time.Second

	// DefaultModelMaxWait bounds the wait for a processed model.
	DefaultModelMaxWait = 600 * time.Second

	// DefaultStatusPollInterval is the interval between status and
	// progress requests of a running simulation.
	DefaultStatusPollInterval = 500 * time.Millisecond

	// DefaultSimulationTimeout bounds the wait for a simulation to reach
	// the "finished" state. Long rain events on large models take hours.
	DefaultSimulationTimeout = 12 * time.Hour

	// DefaultStartTime is the wall-clock start time of every simulation.
	DefaultStartTime = "10:00:00"

	// DefaultRasterTargetDir is the directory inside the working copy that
	// receives staged rasters.
	DefaultRasterTargetDir = "rasters"

	// DefaultRasterExtension is the file extension of source rasters.
	DefaultRasterExtension = ".tif"

	// SubAreaPlaceholder is replaced by the sub-area name in scenario names.
	SubAreaPlaceholder = "{subarea}"

	// startTimeLayout is the layout of SimulationConfig.StartTime.
	startTimeLayout = "15:04:05"

	// startDateLayout is the layout of SimulationConfig.StartDate.
	startDateLayout = "2006-01-02"
)

// Config holds all configuration of a batch run.
// It is loaded from the YAML configuration file, completed with credentials
// from the API env file and overridden by CLI flags, then passed to the
// components that need it.
type Config struct {
	// API configures access to the 3Di web service.
	API APIConfig `yaml:"api"`

	// Repository configures the local Mercurial working copy.
	Repository RepositoryConfig `yaml:"repository"`

	// SubAreaFile is the text file listing one sub-area name per line.
	SubAreaFile string `yaml:"subareas"`

	// Rasters configures raster staging before each commit.
	// Staging is skipped when no source directory is set.
	Rasters RasterConfig `yaml:"rasters"`

	// Simulation configures waiting and polling behavior.
	Simulation SimulationConfig `yaml:"simulation"`

	// Scenarios are submitted in order for every sub-area.
	Scenarios []Scenario `yaml:"scenarios"`

	// ConfigFilePath is the file this configuration was loaded from.
	ConfigFilePath string `yaml:"-"`

	// Verbose enables debug logging.
	Verbose bool `yaml:"-"`

	// JSONReport selects the JSON summary format.
	JSONReport bool `yaml:"-"`

	// MarkdownReport selects the Markdown summary format.
	MarkdownReport bool `yaml:"-"`

	// ReportFile is the summary output path. Empty means stdout.
	ReportFile string `yaml:"-"`

	// SaveToDB stores the run in the history database.
	SaveToDB bool `yaml:"-"`

	// DBDir is the directory of the history database.
	DBDir string `yaml:"-"`

	// FailOnError makes the run exit non-zero when a sub-area failed.
	FailOnError bool `yaml:"-"`
}

// APIConfig holds 3Di API connection settings.
// Credentials should come from the env file or the process environment
// rather than from the YAML file.
type APIConfig struct {
	// Host is the API base URL without the version path.
	Host string `yaml:"host"`

	// EnvFile is a dotenv file with THREEDI_API_* credentials.
	EnvFile string `yaml:"env_file"`

	// Username and Password authenticate through the token endpoint.
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// PersonalAPIToken takes precedence over Username and Password.
	PersonalAPIToken string `yaml:"personal_api_token"`

	// OrganisationName is resolved to an organisation UUID at start-up
	// when OrganisationUUID is empty.
	OrganisationName string `yaml:"organisation_name"`

	// OrganisationUUID is the organisation that owns the simulations.
	OrganisationUUID string `yaml:"organisation_uuid"`

	// Proxy is an optional SOCKS5 proxy in "host:port" format.
	Proxy string `yaml:"proxy"`

	// Timeout is the timeout of a single API request.
	Timeout time.Duration `yaml:"timeout"`
}

// RepositoryConfig describes the Mercurial working copy.
type RepositoryConfig struct {
	// Dir is the path of the local working copy.
	Dir string `yaml:"dir"`

	// Slug is the repository slug the 3Di service uses for processed models.
	Slug string `yaml:"slug"`

	// Hg is the Mercurial executable.
	Hg string `yaml:"hg"`

	// Schematisation is the schematisation SQLite file, relative to Dir.
	// When set, raster paths in its global settings are updated after staging.
	Schematisation string `yaml:"schematisation"`
}

// RasterConfig describes where per sub-area rasters come from.
type RasterConfig struct {
	DEMDir          string `yaml:"dem_dir"`
	FrictionDir     string `yaml:"friction_dir"`
	InfiltrationDir string `yaml:"infiltration_dir"`

	// TargetDir is relative to the repository directory.
	TargetDir string `yaml:"target_dir"`

	// Extension of the source raster files, including the dot.
	Extension string `yaml:"extension"`
}

// Enabled reports whether any raster source directory is configured.
func (r RasterConfig) Enabled() bool {
	return r.DEMDir != "" || r.FrictionDir != "" || r.InfiltrationDir != ""
}

// SimulationConfig holds waiting and polling settings.
type SimulationConfig struct {
	// StartDate is the simulation start date (YYYY-MM-DD). Empty means today.
	StartDate string `yaml:"start_date"`

	// StartTime is the simulation start time of day (HH:MM:SS).
	StartTime string `yaml:"start_time"`

	ModelPollInterval  time.Duration `yaml:"model_poll_interval"`
	ModelMaxWait       time.Duration `yaml:"model_max_wait"`
	StatusPollInterval time.Duration `yaml:"status_poll_interval"`

	// Timeout bounds the wait for a single simulation to finish.
	Timeout time.Duration `yaml:"timeout"`

	// SkipPostProcessing disables Lizard basic post-processing.
	SkipPostProcessing bool `yaml:"skip_post_processing"`
}

// StartDatetime returns the simulation start timestamp for the given day.
// When StartDate is set it takes precedence over now.
func (s SimulationConfig) StartDatetime(now time.Time) (time.Time, error) {
	clock, err := time.Parse(startTimeLayout, s.StartTime)
	if err != nil {
		return time.Time{}, ErrInvalidStartTime
	}

	day := now
	if s.StartDate != "" {
		day, err = time.Parse(startDateLayout, s.StartDate)
		if err != nil {
			return time.Time{}, ErrInvalidStartDate
		}
	}

	return time.Date(day.Year(), day.Month(), day.Day(),
		clock.Hour(), clock.Minute(), clock.Second(), 0, time.UTC), nil
}

// Scenario is one rain-event simulation submitted for every sub-area.
type Scenario struct {
	// Name is the simulation name. SubAreaPlaceholder is substituted.
	Name string `yaml:"name"`

	// IntensityMMPerHour is the constant rain intensity.
	IntensityMMPerHour float64 `yaml:"intensity"`

	// RainDuration is the rain duration in seconds.
	RainDuration int `yaml:"rain_duration"`

	// Duration is the simulation duration in seconds.
	// Zero means the rain duration plus one hour.
	Duration int `yaml:"duration"`

	// Timeseries is an optional "offset,value" series in m/s, one pair per
	// line. When set it replaces the constant rain event.
	Timeseries string `yaml:"timeseries"`
}

// SimulationName returns the scenario name for the given sub-area.
func (s Scenario) SimulationName(subArea string) string {
	return strings.ReplaceAll(s.Name, SubAreaPlaceholder, subArea)
}

// SimulationDuration returns the simulation duration in seconds.
func (s Scenario) SimulationDuration() int {
	if s.Duration > 0 {
		return s.Duration
	}
	return s.rainSeconds() + 3600
}

// rainSeconds returns the rain duration: the end of the time series when
// one is set, RainDuration otherwise.
func (s Scenario) rainSeconds() int {
	if s.Timeseries == "" {
		return s.RainDuration
	}
	values, err := rain.ParseTimeseries(s.Timeseries)
	if err != nil {
		return s.RainDuration
	}
	return max(rain.Duration(values), s.RainDuration)
}

// DefaultScenarios returns the three scenarios every sub-area runs by
// default: 70 mm in one hour, 90 mm in one hour and 80 mm/h for two hours.
func DefaultScenarios() []Scenario {
	return []Scenario{
		{Name: SubAreaPlaceholder + "_70mm1u", IntensityMMPerHour: 70, RainDuration: 3600},
		{Name: SubAreaPlaceholder + "_90mm1u", IntensityMMPerHour: 90, RainDuration: 3600},
		{Name: SubAreaPlaceholder + "_160mm2u", IntensityMMPerHour: 80, RainDuration: 7200},
	}
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		API: APIConfig{
			Host:    DefaultAPIHost,
			Timeout: DefaultAPITimeout,
		},
		Repository: RepositoryConfig{
			Hg: DefaultHgExecutable,
		},
		Rasters: RasterConfig{
			TargetDir: DefaultRasterTargetDir,
			Extension: DefaultRasterExtension,
		},
		Simulation: SimulationConfig{
			StartTime:          DefaultStartTime,
			ModelPollInterval:  DefaultModelPollInterval,
			ModelMaxWait:       DefaultModelMaxWait,
			StatusPollInterval: DefaultStatusPollInterval,
			Timeout:            DefaultSimulationTimeout,
		},
		Scenarios: DefaultScenarios(),
		SaveToDB:  true,
	}
}

// XDGDataDir returns the XDG data directory, home of the history database.
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns the first problem found.
func (c *Config) Validate() error {
	if c.Repository.Dir == "" {
		return ErrNoRepositoryDir
	}
	if c.Repository.Slug == "" {
		return ErrNoRepositorySlug
	}
	if c.SubAreaFile == "" {
		return ErrNoSubAreaFile
	}
	if c.API.Host == "" {
		return ErrNoAPIHost
	}
	if c.API.PersonalAPIToken == "" && (c.API.Username == "" || c.API.Password == "") {
		return ErrNoCredentials
	}
	if c.API.OrganisationUUID == "" && c.API.OrganisationName == "" {
		return ErrNoOrganisation
	}
	if c.API.OrganisationUUID != "" {
		if _, err := uuid.Parse(c.API.OrganisationUUID); err != nil {
			return ErrInvalidOrganisationUUID
		}
	}
	if c.API.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.Simulation.ModelPollInterval <= 0 || c.Simulation.StatusPollInterval <= 0 {
		return ErrInvalidPollInterval
	}
	if c.Simulation.ModelMaxWait < 0 || c.Simulation.Timeout < 0 {
		return ErrInvalidTimeout
	}
	if _, err := c.Simulation.StartDatetime(time.Now()); err != nil {
		return err
	}
	if err := validateScenarios(c.Scenarios); err != nil {
		return err
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	return nil
}

// validateScenarios rejects empty lists, incomplete scenarios and
// duplicate names.
func validateScenarios(scenarios []Scenario) error {
	if len(scenarios) == 0 {
		return ErrNoScenarios
	}

	seen := make(map[string]struct{}, len(scenarios))
	for _, s := range scenarios {
		if s.Name == "" {
			return ErrInvalidScenario
		}
		if s.Timeseries == "" && (s.IntensityMMPerHour < 0 || s.RainDuration <= 0) {
			return ErrInvalidScenario
		}
		if s.Duration < 0 {
			return ErrInvalidScenario
		}
		if s.Timeseries != "" {
			if _, err := rain.ParseTimeseries(s.Timeseries); err != nil {
				return fmt.Errorf("%w: %s: %w", ErrInvalidScenario, s.Name, err)
			}
		}
		if _, ok := seen[s.Name]; ok {
			return ErrDuplicateScenario
		}
		seen[s.Name] = struct{}{}
	}
	return nil
}
