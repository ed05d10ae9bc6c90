package api

import "fmt"

// ServerRef identifies a provisioned server in the platform inventory.
// The IP address is the identity key; everything else is display
// metadata. Servers are looked up, never owned, by this client.
type ServerRef struct {
	IP          string `json:"ip"`
	Name        string `json:"name,omitempty"`
	Region      string `json:"region,omitempty"`
	Project     string `json:"project,omitempty"`
	Environment string `json:"environment,omitempty"`
}

// ServiceIdentity is the backend's unit of "what is running where":
// a (project, environment, service) triple.
type ServiceIdentity struct {
	Project     string
	Environment string
	Service     string
}

// String renders the identity as a stable key, usable for locking and
// history lookups.
func (id ServiceIdentity) String() string {
	return fmt.Sprintf("%s/%s/%s", id.Project, id.Environment, id.Service)
}

// Valid reports whether all three components are set.
func (id ServiceIdentity) Valid() bool {
	return id.Project != "" && id.Environment != "" && id.Service != ""
}

// ServiceState is the backend's current view of where a service runs.
type ServiceState struct {
	ServerIPs []string    `json:"server_ips"`
	Servers   []ServerRef `json:"servers"`
}

// CleanupResult reports the outcome of a best-effort container cleanup
// across a set of servers.
type CleanupResult struct {
	Cleaned int `json:"cleaned"`
	Failed  int `json:"failed"`
}

// ServerAvailability splits a probed server set into reachable and
// unreachable subsets.
type ServerAvailability struct {
	Available   []ServerRef `json:"available"`
	Unavailable []ServerRef `json:"unavailable"`
}

// ServerOutcome is the per-server entry of a deploy or rollback result.
type ServerOutcome struct {
	IP            string `json:"ip"`
	Success       bool   `json:"success"`
	Error         string `json:"error,omitempty"`
	URL           string `json:"url,omitempty"`
	ContainerName string `json:"container_name,omitempty"`
}

// DeployResult is the aggregate outcome of one deploy run. Success is
// true only when every targeted server succeeded; a partial success is
// reported as Success=false with the full per-server breakdown intact.
type DeployResult struct {
	Success       bool
	Servers       []ServerOutcome
	Domain        string
	ContainerName string
	Error         string
}

// RollbackResult is the aggregate outcome of one rollback run.
type RollbackResult struct {
	Success bool
	Message string
	Servers []ServerOutcome
}

// RollbackCandidate is a prior deployment eligible as a rollback
// target, supplied entirely by the backend history API. ServerIPs is
// the server set that deployment originally targeted.
type RollbackCandidate struct {
	DeploymentID string   `json:"deployment_id"`
	Version      string   `json:"version"`
	CreatedAt    string   `json:"created_at"`
	DeployedBy   string   `json:"deployed_by"`
	Status       string   `json:"status"`
	ServerIPs    []string `json:"server_ips"`
}

// RollbackPreview is the response of the rollback candidate lookup.
type RollbackPreview struct {
	RecentDeployments []RollbackCandidate `json:"recent_deployments"`
}
