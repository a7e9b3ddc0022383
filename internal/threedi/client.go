package threedi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
)

// apiVersionPath is appended to the configured host.
const apiVersionPath = "/v3"

// personalTokenUser is the basic-auth user name for personal API tokens.
const personalTokenUser = "__key__"

// defaultModelLimit is the page size of model listings.
const defaultModelLimit = 100

// Client is a client for the parts of the 3Di API v3 this tool uses.
// It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger

	username      string
	password      string
	personalToken string
	userAgent     string

	mu          sync.Mutex
	accessToken string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client, e.g. one from NewHTTPClient.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithCredentials authenticates with username and password through the
// token endpoint.
func WithCredentials(username, password string) Option {
	return func(c *Client) {
		c.username = username
		c.password = password
	}
}

// WithPersonalAPIToken authenticates with a personal API token.
// It takes precedence over WithCredentials.
func WithPersonalAPIToken(token string) Option {
	return func(c *Client) {
		c.personalToken = token
	}
}

// WithUserAgent sets the User-Agent header of every request.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// NewClient creates a client for the API at host, e.g. "https://api.3di.live".
func NewClient(host string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(host, "/") + apiVersionPath,
		httpClient: http.DefaultClient,
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.userAgent != "" {
		base := c.httpClient.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		wrapped := *c.httpClient
		wrapped.Transport = &userAgentTransport{base: base, userAgent: c.userAgent}
		c.httpClient = &wrapped
	}

	return c
}

// BaseURL returns the versioned API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Organisations lists organisations, optionally filtered by exact name.
func (c *Client) Organisations(ctx context.Context, name string) ([]Organisation, error) {
	query := url.Values{}
	if name != "" {
		query.Set("name", name)
	}
	return listAll[Organisation](ctx, c, "/organisations/", query)
}

// OrganisationUUID resolves an organisation name to its unique id.
// The first result wins when the name is ambiguous.
func (c *Client) OrganisationUUID(ctx context.Context, name string) (string, error) {
	orgs, err := c.Organisations(ctx, name)
	if err != nil {
		return "", err
	}
	if len(orgs) == 0 {
		return "", fmt.Errorf("%w: %q", ErrOrganisationNotFound, name)
	}
	return orgs[0].UniqueID, nil
}

// ThreediModels lists processed models matching filter.
func (c *Client) ThreediModels(ctx context.Context, filter ModelFilter) ([]ThreediModel, error) {
	query := url.Values{}
	if filter.RepositorySlug != "" {
		query.Set("revision__repository__slug", filter.RepositorySlug)
	}
	if filter.RevisionNumber > 0 {
		query.Set("revision__number", strconv.Itoa(filter.RevisionNumber))
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultModelLimit
	}
	query.Set("limit", strconv.Itoa(limit))

	return listAll[ThreediModel](ctx, c, "/threedimodels/", query)
}

// CreateSimulation creates a simulation; it does not start it.
func (c *Client) CreateSimulation(ctx context.Context, sim NewSimulation) (*Simulation, error) {
	var created Simulation
	if err := c.do(ctx, http.MethodPost, "/simulations/", nil, sim, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// CreateConstantRain adds a constant rain event to a simulation.
func (c *Client) CreateConstantRain(ctx context.Context, simulationID int, rain ConstantRain) error {
	return c.do(ctx, http.MethodPost, simulationPath(simulationID, "events/rain/constant/"), nil, rain, nil)
}

// CreateTimeseriesRain adds a time series rain event to a simulation.
func (c *Client) CreateTimeseriesRain(ctx context.Context, simulationID int, rain TimeseriesRain) error {
	return c.do(ctx, http.MethodPost, simulationPath(simulationID, "events/rain/timeseries/"), nil, rain, nil)
}

// CreateLizardBasicPostProcessing enables basic Lizard post-processing.
func (c *Client) CreateLizardBasicPostProcessing(ctx context.Context, simulationID int, pp LizardBasicPostProcessing) error {
	return c.do(ctx, http.MethodPost, simulationPath(simulationID, "results/post_processing/lizard/basic/"), nil, pp, nil)
}

// CreateAction sends an action such as ActionStart to a simulation.
func (c *Client) CreateAction(ctx context.Context, simulationID int, action Action) error {
	return c.do(ctx, http.MethodPost, simulationPath(simulationID, "actions/"), nil, action, nil)
}

// SimulationStatus returns the current status of a simulation.
func (c *Client) SimulationStatus(ctx context.Context, simulationID int) (*SimulationStatus, error) {
	var status SimulationStatus
	if err := c.do(ctx, http.MethodGet, simulationPath(simulationID, "status/"), nil, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// SimulationProgress returns the progress of a running simulation.
// The endpoint answers with an error until the simulation is initialized.
func (c *Client) SimulationProgress(ctx context.Context, simulationID int) (*SimulationProgress, error) {
	var progress SimulationProgress
	if err := c.do(ctx, http.MethodGet, simulationPath(simulationID, "progress/"), nil, nil, &progress); err != nil {
		return nil, err
	}
	return &progress, nil
}

// simulationPath returns the path of a simulation sub-resource.
func simulationPath(simulationID int, resource string) string {
	return "/simulations/" + strconv.Itoa(simulationID) + "/" + resource
}

// listAll fetches every page of a list endpoint by following "next".
func listAll[T any](ctx context.Context, c *Client, path string, query url.Values) ([]T, error) {
	var results []T
	next := path
	for next != "" {
		var p page[T]
		if err := c.do(ctx, http.MethodGet, next, query, nil, &p); err != nil {
			return nil, err
		}
		results = append(results, p.Results...)

		next = ""
		query = nil
		if p.Next != nil {
			next = *p.Next
		}
	}
	return results, nil
}

// do sends a JSON request and decodes a JSON response into out.
// path is either relative to the API root or an absolute URL returned by
// the API. A 401 on a token-authenticated request triggers one new login.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	u, err := c.resolve(path, query)
	if err != nil {
		return err
	}

	var body []byte
	if in != nil {
		body, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	resp, err := c.send(ctx, method, u, body)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusUnauthorized && c.personalToken == "" {
		drainAndClose(resp)
		c.resetToken()
		c.logger.Debug("access token rejected, logging in again", "path", u.Path)
		resp, err = c.send(ctx, method, u, body)
		if err != nil {
			return err
		}
	}
	defer drainAndClose(resp)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newAPIError(method, u.Path, resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, u.Path, err)
	}
	return nil
}

// send authorizes and sends one request.
func (c *Client) send(ctx context.Context, method string, u *url.URL, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if err := c.authorize(ctx, req); err != nil {
		return nil, err
	}

	c.logger.Debug("3di api request", "method", method, "url", u.String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s failed: %w", method, u.Path, err)
	}
	return resp, nil
}

// authorize sets the Authorization header.
func (c *Client) authorize(ctx context.Context, req *http.Request) error {
	if c.personalToken != "" {
		req.SetBasicAuth(personalTokenUser, c.personalToken)
		return nil
	}

	token, err := c.token(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

// token returns the cached access token, logging in when there is none.
func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" {
		return c.accessToken, nil
	}
	if c.username == "" || c.password == "" {
		return "", ErrNoCredentials
	}

	token, err := c.login(ctx)
	if err != nil {
		return "", err
	}
	c.accessToken = token
	return token, nil
}

// resetToken drops the cached access token.
func (c *Client) resetToken() {
	c.mu.Lock()
	c.accessToken = ""
	c.mu.Unlock()
}

// login exchanges username and password for an access token.
func (c *Client) login(ctx context.Context) (string, error) {
	u, err := c.resolve("/auth/token/", nil)
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(tokenRequest{Username: c.username, Password: c.password})
	if err != nil {
		return "", fmt.Errorf("failed to encode token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer drainAndClose(resp)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", newAPIError(http.MethodPost, u.Path, resp)
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if tok.Access == "" {
		return "", ErrEmptyToken
	}

	c.logger.Debug("obtained 3di access token", "username", c.username)
	return tok.Access, nil
}

// resolve builds the request URL for path.
func (c *Client) resolve(path string, query url.Values) (*url.URL, error) {
	raw := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		raw = c.baseURL + path
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid request url %q: %w", raw, err)
	}
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u, nil
}

// newAPIError builds an APIError from a failed response.
func newAPIError(method, path string, resp *http.Response) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody)) //nolint:errcheck // best effort
	return &APIError{
		Method:     method,
		Path:       path,
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
	}
}

// drainAndClose lets the connection be reused.
func drainAndClose(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody)) //nolint:errcheck // best effort
	_ = resp.Body.Close()
}
