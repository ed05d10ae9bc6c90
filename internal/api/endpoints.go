package api

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// identityQuery builds the query parameters identifying a service.
func identityQuery(id ServiceIdentity) url.Values {
	return url.Values{
		"project":      {id.Project},
		"environment":  {id.Environment},
		"service_name": {id.Service},
	}
}

// ServiceState returns the backend's current server assignment for a
// service identity.
func (c *Client) ServiceState(ctx context.Context, id ServiceIdentity) (*ServiceState, error) {
	var state ServiceState
	if err := c.GetJSON(ctx, "/services/state", identityQuery(id), &state); err != nil {
		return nil, fmt.Errorf("fetching service state for %s: %w", id, err)
	}
	return &state, nil
}

// CleanupServers asks the backend to stop a named container on each of
// the given servers. Best-effort on the backend side; the result only
// reports counts.
func (c *Client) CleanupServers(ctx context.Context, serverIPs []string, containerName string) (*CleanupResult, error) {
	body := struct {
		ServerIPs     []string `json:"server_ips"`
		ContainerName string   `json:"container_name"`
	}{ServerIPs: serverIPs, ContainerName: containerName}

	var result CleanupResult
	if err := c.PostJSON(ctx, "/services/cleanup", nil, body, &result); err != nil {
		return nil, fmt.Errorf("cleaning up servers: %w", err)
	}
	return &result, nil
}

// CheckServers probes liveness of the given servers and splits them
// into available and unavailable subsets.
func (c *Client) CheckServers(ctx context.Context, serverIPs []string) (*ServerAvailability, error) {
	query := url.Values{"server_ips": {strings.Join(serverIPs, ",")}}

	var result ServerAvailability
	if err := c.PostJSON(ctx, "/services/check-servers", query, nil, &result); err != nil {
		return nil, fmt.Errorf("checking server availability: %w", err)
	}
	return &result, nil
}

// FetchRollbackPreview lists prior deployments of a service eligible
// as rollback targets.
func (c *Client) FetchRollbackPreview(ctx context.Context, id ServiceIdentity) (*RollbackPreview, error) {
	var preview RollbackPreview
	if err := c.GetJSON(ctx, "/deployments/rollback/preview", identityQuery(id), &preview); err != nil {
		return nil, fmt.Errorf("fetching rollback candidates for %s: %w", id, err)
	}
	return &preview, nil
}
