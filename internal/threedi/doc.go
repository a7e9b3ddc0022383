// Package threedi is a small REST client for the 3Di API v3.
//
// It covers the resources the batch workflow needs: organisations,
// processed models, simulations and their rain events, post-processing,
// actions, status and progress. Requests are authenticated either with a
// personal API token or with a username and password exchanged for an
// access token at the token endpoint.
//
// Non-2xx responses are returned as *APIError.
package threedi
