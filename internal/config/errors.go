package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() so callers can use
// errors.Is() while still printing a readable message.
var (
	// ErrNoRepositoryDir is returned when the working copy path is missing.
	ErrNoRepositoryDir = errors.New("no repository directory specified: set repository.dir")

	// ErrNoRepositorySlug is returned when the repository slug is missing.
	// The slug correlates a pushed revision with a processed model.
	ErrNoRepositorySlug = errors.New("no repository slug specified: set repository.slug")

	// ErrNoSubAreaFile is returned when no sub-area list is configured.
	ErrNoSubAreaFile = errors.New("no sub-area list specified: set subareas or use --subareas")

	// ErrNoAPIHost is returned when the API host is empty.
	ErrNoAPIHost = errors.New("no API host specified: set api.host or THREEDI_API_HOST")

	// ErrNoCredentials is returned when neither a personal API token nor a
	// username/password pair is available.
	ErrNoCredentials = errors.New("no API credentials: set THREEDI_API_PERSONAL_API_TOKEN or username and password")

	// ErrNoOrganisation is returned when neither organisation name nor UUID is set.
	ErrNoOrganisation = errors.New("no organisation specified: set api.organisation_uuid or api.organisation_name")

	// ErrInvalidOrganisationUUID is returned when the organisation UUID does not parse.
	ErrInvalidOrganisationUUID = errors.New("invalid organisation UUID")

	// ErrInvalidTimeout is returned when a timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidPollInterval is returned when a poll interval is not positive.
	ErrInvalidPollInterval = errors.New("invalid poll interval: must be positive")

	// ErrInvalidStartTime is returned when simulation.start_time is not HH:MM:SS.
	ErrInvalidStartTime = errors.New("invalid simulation start time: expected HH:MM:SS")

	// ErrInvalidStartDate is returned when simulation.start_date is not YYYY-MM-DD.
	ErrInvalidStartDate = errors.New("invalid simulation start date: expected YYYY-MM-DD")

	// ErrNoScenarios is returned when the scenario list is empty.
	ErrNoScenarios = errors.New("no scenarios configured")

	// ErrInvalidScenario is returned when a scenario lacks a name, a rain
	// duration or has a negative intensity.
	ErrInvalidScenario = errors.New("invalid scenario: name, intensity and rain_duration are required")

	// ErrDuplicateScenario is returned when two scenarios share a name.
	ErrDuplicateScenario = errors.New("duplicate scenario name")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrEmptySubAreaList is returned when the sub-area file has no entries.
	ErrEmptySubAreaList = errors.New("sub-area list is empty")
)
