// Package rollback drives the rollback flow: candidate selection,
// orphan and availability pre-checks, partial-rollback confirmation,
// and the streaming rollback request.
package rollback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"shipdeck/internal/api"
	"shipdeck/internal/deploy"
	"shipdeck/internal/history"
	"shipdeck/internal/stream"
)

// State is the orchestrator's observable phase.
type State string

const (
	StateIdle                 State = "idle"
	StateLoadingCandidates    State = "loading_candidates"
	StateSelectingTarget      State = "selecting_target"
	StatePreChecking          State = "pre_checking"
	StateAwaitingConfirmation State = "awaiting_confirmation"
	StateStreaming            State = "streaming"
	StateCompleted            State = "completed"
	StateFailed               State = "failed"
)

// Update is one observable state change.
type Update struct {
	State   State
	Percent int
	Message string
}

// Confirmer resolves the two rollback decision points. The
// missing-servers branch strictly outranks the cleanup branch: when
// any originally targeted server is unreachable, only
// ConfirmPartialRollback is presented.
type Confirmer interface {
	ConfirmOrphanCleanup(ctx context.Context, orphans []api.ServerRef) (bool, error)
	ConfirmPartialRollback(ctx context.Context, unavailable, available []api.ServerRef) (bool, error)
}

// Orchestrator runs rollback flows. Guard is typically shared with the
// deploy orchestrator so deploys and rollbacks for one identity
// exclude each other; History is optional.
type Orchestrator struct {
	Client    *api.Client
	Confirmer Confirmer
	Guard     *deploy.Guard
	History   *history.History
	Logger    *slog.Logger
	Notify    func(Update)
}

// NewOrchestrator creates a rollback orchestrator with its own guard.
func NewOrchestrator(client *api.Client, confirmer Confirmer, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		Client:    client,
		Confirmer: confirmer,
		Guard:     deploy.NewGuard(),
		Logger:    logger,
	}
}

func (o *Orchestrator) notify(state State, percent int, message string) {
	if o.Notify != nil {
		o.Notify(Update{State: state, Percent: percent, Message: message})
	}
}

// LoadCandidates fetches prior successful deployments of the service,
// excluding the deployment currently being rolled back from. Candidates
// with a status outside the known set are dropped and logged rather
// than silently remapped.
func (o *Orchestrator) LoadCandidates(ctx context.Context, id api.ServiceIdentity, excludeDeploymentID string) ([]api.RollbackCandidate, error) {
	o.notify(StateLoadingCandidates, 0, "loading rollback candidates")

	preview, err := o.Client.FetchRollbackPreview(ctx, id)
	if err != nil {
		return nil, err
	}

	var candidates []api.RollbackCandidate
	for _, candidate := range preview.RecentDeployments {
		if candidate.DeploymentID == excludeDeploymentID {
			continue
		}
		status, known := history.ParseStatus(candidate.Status)
		if !known {
			o.Logger.Warn("Dropping rollback candidate with unknown status",
				"deployment_id", candidate.DeploymentID, "status", candidate.Status)
			continue
		}
		if status != history.StatusSucceeded {
			continue
		}
		candidates = append(candidates, candidate)
	}

	o.notify(StateSelectingTarget, 0, fmt.Sprintf("%d candidate(s) available", len(candidates)))
	return candidates, nil
}

// Run rolls the service back to the selected candidate. Like deploys,
// a stream that completes cleanly but reports failure yields a result
// with Success=false and a nil error.
func (o *Orchestrator) Run(ctx context.Context, id api.ServiceIdentity, candidate api.RollbackCandidate) (*api.RollbackResult, error) {
	if !id.Valid() {
		return nil, fmt.Errorf("incomplete service identity %q", id)
	}
	if candidate.DeploymentID == "" {
		return nil, fmt.Errorf("rollback candidate has no deployment id")
	}

	key := id.String()
	if !o.Guard.TryAcquire(key) {
		return nil, fmt.Errorf("%s: %w", key, deploy.ErrInFlight)
	}
	defer o.Guard.Release(key)

	runID := o.beginRun(ctx, id)

	result, err := o.execute(ctx, id, candidate)
	o.completeRun(ctx, runID, candidate.DeploymentID, result, err)
	return result, err
}

func (o *Orchestrator) execute(ctx context.Context, id api.ServiceIdentity, candidate api.RollbackCandidate) (*api.RollbackResult, error) {
	allowlist, err := o.preCheck(ctx, id, candidate)
	if err != nil {
		o.notify(StateFailed, 0, err.Error())
		return nil, err
	}

	result, err := o.streamRollback(ctx, id, candidate, allowlist)
	if err != nil {
		o.notify(StateFailed, 0, err.Error())
		return nil, err
	}

	if result.Success {
		o.notify(StateCompleted, 100, result.Message)
	} else {
		o.notify(StateFailed, 100, result.Message)
	}
	return result, nil
}

// preCheck runs the two independent checks for a selected candidate:
// the orphan diff against the candidate's recorded server set, and a
// liveness probe of every server the candidate originally targeted. It
// returns a non-nil allowlist when the user chose a partial rollback.
func (o *Orchestrator) preCheck(ctx context.Context, id api.ServiceIdentity, candidate api.RollbackCandidate) ([]string, error) {
	o.notify(StatePreChecking, 0, "checking target servers")

	var orphans []api.ServerRef
	state, err := o.Client.ServiceState(ctx, id)
	if err != nil {
		var apiErr *api.APIError
		if !errors.As(err, &apiErr) || apiErr.StatusCode != 404 {
			return nil, err
		}
		// No live state recorded; nothing can be orphaned.
	} else {
		orphans = api.OrphanedServers(state.ServerIPs, state.Servers, candidate.ServerIPs)
	}

	availability, err := o.Client.CheckServers(ctx, candidate.ServerIPs)
	if err != nil {
		return nil, err
	}

	// Missing-servers outranks cleanup; the two branches are mutually
	// exclusive.
	if len(availability.Unavailable) > 0 {
		// Nothing to confirm when every target is down; a partial
		// rollback needs at least one reachable server.
		if len(availability.Available) == 0 {
			return nil, fmt.Errorf("no target server of this deployment is reachable")
		}

		o.notify(StateAwaitingConfirmation, 0,
			fmt.Sprintf("%d of %d target server(s) unreachable",
				len(availability.Unavailable), len(candidate.ServerIPs)))

		proceed, err := o.Confirmer.ConfirmPartialRollback(ctx, availability.Unavailable, availability.Available)
		if err != nil {
			return nil, err
		}
		if !proceed {
			return nil, deploy.ErrCancelled
		}
		return api.ServerIPs(availability.Available), nil
	}

	if len(orphans) > 0 {
		o.notify(StateAwaitingConfirmation, 0,
			fmt.Sprintf("%d server(s) running the service are not part of this deployment", len(orphans)))

		proceed, err := o.Confirmer.ConfirmOrphanCleanup(ctx, orphans)
		if err != nil {
			return nil, err
		}
		if !proceed {
			return nil, deploy.ErrCancelled
		}
		o.cleanupOrphans(ctx, id, orphans)
	}

	return nil, nil
}

// cleanupOrphans is best-effort, mirroring the deploy flow: failures
// are logged, never fatal.
func (o *Orchestrator) cleanupOrphans(ctx context.Context, id api.ServiceIdentity, orphans []api.ServerRef) {
	containerName := fmt.Sprintf("%s-%s-%s", id.Project, id.Environment, id.Service)
	result, err := o.Client.CleanupServers(ctx, api.ServerIPs(orphans), containerName)
	if err != nil {
		o.Logger.Warn("Orphan cleanup request failed", "container", containerName, "error", err)
		return
	}
	o.Logger.Info("Orphan cleanup finished",
		"container", containerName, "cleaned", result.Cleaned, "failed", result.Failed)
}

// rollbackBody is the rollback request. ServerIPs, when set, overrides
// the candidate's recorded server set for a partial rollback.
type rollbackBody struct {
	DeploymentID string   `json:"deployment_id"`
	ServerIPs    []string `json:"server_ips,omitempty"`
}

// streamRollback issues the rollback request and folds the event
// stream into a RollbackResult.
func (o *Orchestrator) streamRollback(ctx context.Context, id api.ServiceIdentity, candidate api.RollbackCandidate, allowlist []string) (*api.RollbackResult, error) {
	o.notify(StateStreaming, 0, "rolling back")

	query := url.Values{
		"project":      {id.Project},
		"environment":  {id.Environment},
		"service_name": {id.Service},
	}
	body := rollbackBody{DeploymentID: candidate.DeploymentID, ServerIPs: allowlist}

	var servers []api.ServerOutcome
	var complete *api.CompleteEvent

	err := o.Client.Stream(ctx, "POST", "/deployments/rollback", query, body, func(event stream.Event) error {
		switch event.Type {
		case api.EventStart:
			o.notify(StateStreaming, 0, "rollback started")
		case api.EventLog:
			var log api.LogEvent
			if api.DecodePayload(event, &log) == nil {
				o.notify(StateStreaming, -1, log.Message)
			}
		case api.EventProgress:
			var progress api.ProgressEvent
			if api.DecodePayload(event, &progress) == nil {
				o.notify(StateStreaming, progress.Percent, progress.Message)
			}
		case api.EventServerComplete:
			var server api.ServerCompleteEvent
			if err := api.DecodePayload(event, &server); err != nil {
				return err
			}
			servers = append(servers, api.ServerOutcome{
				IP: server.IP, Success: server.Success, Error: server.Error,
			})
		case api.EventError:
			var failure api.ErrorEvent
			if api.DecodePayload(event, &failure) == nil {
				o.notify(StateStreaming, -1, failure.Message)
			}
		case api.EventComplete:
			var payload api.CompleteEvent
			if err := api.DecodePayload(event, &payload); err != nil {
				return err
			}
			complete = &payload
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if complete == nil {
		return nil, fmt.Errorf("rollback stream ended without a terminal event")
	}

	result := &api.RollbackResult{
		Success: complete.Success,
		Message: complete.Message,
		Servers: servers,
	}
	if len(complete.Servers) > 0 {
		result.Servers = complete.Servers
	}
	return result, nil
}

func (o *Orchestrator) beginRun(ctx context.Context, id api.ServiceIdentity) int64 {
	if o.History == nil {
		return 0
	}
	runID, err := o.History.BeginRun(ctx, &history.Run{
		Kind:        history.KindRollback,
		Project:     id.Project,
		Environment: id.Environment,
		Service:     id.Service,
	})
	if err != nil {
		o.Logger.Warn("Could not record run start", "error", err)
		return 0
	}
	return runID
}

func (o *Orchestrator) completeRun(ctx context.Context, runID int64, deploymentID string, result *api.RollbackResult, runErr error) {
	if o.History == nil || runID == 0 {
		return
	}

	status := history.StatusFailed
	var errorMessage string
	switch {
	case runErr != nil:
		errorMessage = runErr.Error()
	case result.Success:
		status = history.StatusSucceeded
	default:
		errorMessage = result.Message
	}

	if err := o.History.CompleteRun(ctx, runID, status, deploymentID, "", errorMessage); err != nil {
		o.Logger.Warn("Could not record run completion", "error", err)
	}
}
