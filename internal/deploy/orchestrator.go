// Package deploy drives the multi-server deployment flow: validation,
// orphan pre-check, cleanup confirmation, packaging, and the streaming
// deploy request, aggregating per-server results as events arrive.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"

	"shipdeck/internal/api"
	"shipdeck/internal/archive"
	"shipdeck/internal/gitsource"
	"shipdeck/internal/history"
	"shipdeck/internal/stream"
	"shipdeck/pkg/templates"
)

// State is the orchestrator's observable phase.
type State string

const (
	StateIdle                 State = "idle"
	StateValidating           State = "validating"
	StatePreChecking          State = "pre_checking"
	StateAwaitingConfirmation State = "awaiting_confirmation"
	StatePackaging            State = "packaging"
	StateStreaming            State = "streaming"
	StateCompleted            State = "completed"
	StateFailed               State = "failed"
)

// Progress sub-ranges. Pre-deploy steps occupy 0-15 so in-stream
// progress is visually distinct from local preparation.
const (
	percentValidating  = 2
	percentPreChecking = 5
	percentPackaging   = 10
	streamFloor        = 15
)

// Update is one observable state change, delivered through the Notify
// callback. Percent is -1 for log lines that carry no progress change.
type Update struct {
	State   State
	Percent int
	Message string
}

// Confirmer resolves the orphan-cleanup decision point. The flow stays
// suspended until the user proceeds (true) or cancels (false); there
// is no timeout.
type Confirmer interface {
	ConfirmOrphanCleanup(ctx context.Context, orphans []api.ServerRef) (bool, error)
}

// ErrCancelled is returned when the user declines a confirmation.
var ErrCancelled = errors.New("cancelled by user")

// ErrInFlight is returned when another deploy or rollback for the same
// service identity is already running.
var ErrInFlight = errors.New("operation already in progress for this service")

// Orchestrator runs deploy flows. Resolver and History are optional;
// Guard may be shared with the rollback orchestrator so deploys and
// rollbacks for the same identity exclude each other.
type Orchestrator struct {
	Client    *api.Client
	Confirmer Confirmer
	Guard     *Guard
	Resolver  *gitsource.Resolver
	History   *history.History
	Logger    *slog.Logger
	Notify    func(Update)
}

// NewOrchestrator creates a deploy orchestrator with its own guard.
func NewOrchestrator(client *api.Client, confirmer Confirmer, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		Client:    client,
		Confirmer: confirmer,
		Guard:     NewGuard(),
		Logger:    logger,
	}
}

func (o *Orchestrator) notify(state State, percent int, message string) {
	if o.Notify != nil {
		o.Notify(Update{State: state, Percent: percent, Message: message})
	}
}

// Run executes one deploy. Validation and transport failures are
// returned as errors; a stream that completes cleanly but reports
// failure is not an error - it yields a result with Success=false and
// the per-server breakdown intact.
func (o *Orchestrator) Run(ctx context.Context, req *Request) (*api.DeployResult, error) {
	o.notify(StateValidating, percentValidating, "validating request")
	if err := req.Validate(); err != nil {
		o.notify(StateFailed, percentValidating, err.Error())
		return nil, err
	}

	key := req.Identity.String()
	if !o.Guard.TryAcquire(key) {
		return nil, fmt.Errorf("%s: %w", key, ErrInFlight)
	}
	defer o.Guard.Release(key)

	runID := o.beginRun(ctx, req)

	result, err := o.execute(ctx, req)
	o.completeRun(ctx, runID, result, err)
	return result, err
}

// execute is the flow after the guard is held.
func (o *Orchestrator) execute(ctx context.Context, req *Request) (*api.DeployResult, error) {
	if err := o.preCheck(ctx, req); err != nil {
		o.notify(StateFailed, percentPreChecking, err.Error())
		return nil, err
	}

	payload, err := o.packageRequest(ctx, req)
	if err != nil {
		o.notify(StateFailed, percentPackaging, err.Error())
		return nil, err
	}

	result, err := o.streamDeploy(ctx, req, payload)
	if err != nil {
		o.notify(StateFailed, streamFloor, err.Error())
		return nil, err
	}

	if result.Success {
		o.notify(StateCompleted, 100, "deployment complete")
	} else {
		o.notify(StateFailed, 100, result.Error)
	}
	return result, nil
}

// preCheck queries the current server assignment for the service
// identity, computes the orphan set, and runs the confirmation and
// best-effort cleanup when orphans exist.
func (o *Orchestrator) preCheck(ctx context.Context, req *Request) error {
	o.notify(StatePreChecking, percentPreChecking, "checking current server assignment")

	state, err := o.Client.ServiceState(ctx, req.Identity)
	if err != nil {
		var apiErr *api.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == 404 {
			// First deploy of this service, nothing can be orphaned.
			return nil
		}
		return err
	}

	orphans := api.OrphanedServers(state.ServerIPs, state.Servers, req.ServerIPs)
	if len(orphans) == 0 {
		return nil
	}

	o.notify(StateAwaitingConfirmation, percentPreChecking,
		fmt.Sprintf("%d server(s) will keep running the old version", len(orphans)))

	proceed, err := o.Confirmer.ConfirmOrphanCleanup(ctx, orphans)
	if err != nil {
		return err
	}
	if !proceed {
		return ErrCancelled
	}

	o.cleanupOrphans(ctx, orphans, req.ContainerName())
	return nil
}

// cleanupOrphans stops the old containers on orphaned servers. The
// outcome is logged but never blocks the deploy - the new deployment
// must proceed even if some orphans could not be cleaned.
func (o *Orchestrator) cleanupOrphans(ctx context.Context, orphans []api.ServerRef, containerName string) {
	result, err := o.Client.CleanupServers(ctx, api.ServerIPs(orphans), containerName)
	if err != nil {
		o.Logger.Warn("Orphan cleanup request failed", "container", containerName, "error", err)
		return
	}
	if result.Failed > 0 {
		o.Logger.Warn("Orphan cleanup partially failed",
			"container", containerName, "cleaned", result.Cleaned, "failed", result.Failed)
		return
	}
	o.Logger.Info("Orphan servers cleaned", "container", containerName, "cleaned", result.Cleaned)
}

// packageRequest builds the multipart payload: form fields for all
// deployment parameters plus the binary archive for code and
// image-file sources.
func (o *Orchestrator) packageRequest(ctx context.Context, req *Request) (*api.MultipartPayload, error) {
	o.notify(StatePackaging, percentPackaging, "packaging deployment")

	payload := &api.MultipartPayload{
		Fields: []api.FormField{
			{Name: "name", Value: req.Name},
			{Name: "port", Value: strconv.Itoa(req.Port)},
			{Name: "source_type", Value: req.SourceType()},
			{Name: "env_vars", Value: encodeJSONField(req.Env)},
			{Name: "tags", Value: encodeJSONField(req.Tags)},
			{Name: "server_ips", Value: encodeJSONField(req.ServerIPs)},
			{Name: "exclude_patterns", Value: encodeJSONField(req.Excludes)},
		},
	}

	addField := func(name, value string) {
		if value != "" {
			payload.Fields = append(payload.Fields, api.FormField{Name: name, Value: value})
		}
	}

	switch req.SourceType() {
	case SourceCode:
		descriptor, err := o.buildDescriptor(req)
		if err != nil {
			return nil, err
		}
		archiveBytes, err := archive.Build(archive.BuildInput{
			Folders:    req.Code.Folders,
			Excludes:   req.Excludes,
			Descriptor: descriptor,
		})
		if err != nil {
			return nil, fmt.Errorf("packaging code source: %w", err)
		}
		payload.Files = append(payload.Files, api.FormFile{
			Field: "archive", Filename: "source.tar.gz", Content: archiveBytes,
		})

	case SourceGit:
		addField("git_url", req.Git.URL)
		addField("git_branch", req.Git.Branch)
		addField("git_token", req.Git.Token)
		if len(req.Git.Folders) > 0 {
			addField("git_folders", encodeJSONField(req.Git.Folders))
		}
		if o.Resolver != nil {
			commit, err := o.Resolver.Resolve(ctx, req.Git.URL, req.Git.Branch, req.Git.Token)
			if err != nil {
				// Pinning is advisory; the backend clones the branch
				// tip either way.
				o.Logger.Warn("Could not pin git source to a commit", "url", req.Git.URL, "error", err)
			}
			addField("git_commit", commit)
		}

	case SourceImage:
		addField("image_ref", req.Image.Reference)

	case SourceImageFile:
		content, err := os.ReadFile(req.ImageFile.Path)
		if err != nil {
			return nil, fmt.Errorf("reading image tarball: %w", err)
		}
		addField("image_name", req.ImageFile.ImageName)
		addField("port_mapping", req.ImageFile.PortMapping)
		payload.Files = append(payload.Files, api.FormFile{
			Field: "image_file", Filename: "image.tar", Content: content,
		})
	}

	if req.Provision != nil && req.Provision.Count > 0 {
		addField("snapshot_id", req.Provision.SnapshotID)
		addField("region", req.Provision.Region)
		addField("size", req.Provision.Size)
		addField("count", strconv.Itoa(req.Provision.Count))
	}
	if req.SetupDomain {
		addField("setup_domain", "true")
		addField("domain", req.Domain)
	}

	return payload, nil
}

// buildDescriptor returns the Dockerfile to insert at the archive
// root: the user-edited one verbatim, or a generated one when multiple
// folders are combined into a single build.
func (o *Orchestrator) buildDescriptor(req *Request) (string, error) {
	if req.Code.Descriptor != "" {
		return req.Code.Descriptor, nil
	}
	if len(req.Code.Folders) < 2 {
		// A single folder ships its own Dockerfile.
		return "", nil
	}
	descriptor, err := templates.RenderDockerfile(templates.DescriptorSpec{
		Runtime:      req.Code.Runtime,
		Port:         req.Port,
		StartCommand: req.Code.StartCommand,
	})
	if err != nil {
		return "", fmt.Errorf("generating build descriptor: %w", err)
	}
	return descriptor, nil
}

// streamDeploy issues the multipart deploy request and folds the event
// stream into a DeployResult.
func (o *Orchestrator) streamDeploy(ctx context.Context, req *Request, payload *api.MultipartPayload) (*api.DeployResult, error) {
	o.notify(StateStreaming, streamFloor, "deploying")

	query := url.Values{
		"project":      {req.Identity.Project},
		"environment":  {req.Identity.Environment},
		"service_name": {req.Identity.Service},
	}

	var done *api.DoneEvent
	err := o.Client.StreamMultipart(ctx, "/deploy/multipart", query, payload, func(event stream.Event) error {
		switch event.Type {
		case api.EventLog:
			var log api.LogEvent
			if api.DecodePayload(event, &log) == nil {
				o.notify(StateStreaming, -1, log.Message)
			}
		case api.EventProgress:
			var progress api.ProgressEvent
			if api.DecodePayload(event, &progress) == nil {
				o.notify(StateStreaming, mapStreamPercent(progress.Percent), progress.Message)
			}
		case api.EventDone:
			var payload api.DoneEvent
			if err := api.DecodePayload(event, &payload); err != nil {
				return err
			}
			done = &payload
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if done == nil {
		return nil, fmt.Errorf("deploy stream ended without a terminal event")
	}

	return aggregateDeploy(done), nil
}

// aggregateDeploy applies the all-servers-must-succeed rule: the
// overall result fails if the backend reports failure or any single
// server failed, while keeping every per-server entry visible.
func aggregateDeploy(done *api.DoneEvent) *api.DeployResult {
	result := &api.DeployResult{
		Success:       done.Success,
		Servers:       done.Servers,
		Domain:        done.Domain,
		ContainerName: done.ContainerName,
		Error:         done.Error,
	}
	for _, server := range done.Servers {
		if !server.Success {
			result.Success = false
			if result.Error == "" {
				result.Error = fmt.Sprintf("server %s failed: %s", server.IP, server.Error)
			}
		}
	}
	return result
}

// mapStreamPercent maps backend progress (0-100) into the reserved
// streaming sub-range above the pre-deploy steps.
func mapStreamPercent(percent int) int {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	return streamFloor + percent*(100-streamFloor)/100
}

// beginRun records the run start; history is best-effort and never
// fails a deploy.
func (o *Orchestrator) beginRun(ctx context.Context, req *Request) int64 {
	if o.History == nil {
		return 0
	}
	id, err := o.History.BeginRun(ctx, &history.Run{
		Kind:        history.KindDeploy,
		Project:     req.Identity.Project,
		Environment: req.Identity.Environment,
		Service:     req.Identity.Service,
	})
	if err != nil {
		o.Logger.Warn("Could not record run start", "error", err)
		return 0
	}
	return id
}

func (o *Orchestrator) completeRun(ctx context.Context, runID int64, result *api.DeployResult, runErr error) {
	if o.History == nil || runID == 0 {
		return
	}

	status := history.StatusFailed
	var serversJSON, errorMessage string
	switch {
	case runErr != nil:
		errorMessage = runErr.Error()
	case result.Success:
		status = history.StatusSucceeded
		serversJSON = encodeJSONField(result.Servers)
	default:
		if anySucceeded(result.Servers) {
			status = history.StatusPartial
		}
		serversJSON = encodeJSONField(result.Servers)
		errorMessage = result.Error
	}

	if err := o.History.CompleteRun(ctx, runID, status, "", serversJSON, errorMessage); err != nil {
		o.Logger.Warn("Could not record run completion", "error", err)
	}
}

func anySucceeded(servers []api.ServerOutcome) bool {
	for _, server := range servers {
		if server.Success {
			return true
		}
	}
	return false
}
