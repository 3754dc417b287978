package mcpserver

import (
	"context"
	"time"

	"github.com/scooter-lacroix/swiss-sandbox-sub000/internal/artifact"
	"github.com/scooter-lacroix/swiss-sandbox-sub000/internal/engine"
	"github.com/scooter-lacroix/swiss-sandbox-sub000/internal/health"
	"github.com/scooter-lacroix/swiss-sandbox-sub000/internal/limits"
	"github.com/scooter-lacroix/swiss-sandbox-sub000/internal/sberrors"
	"github.com/scooter-lacroix/swiss-sandbox-sub000/internal/security"
	"github.com/scooter-lacroix/swiss-sandbox-sub000/internal/workspace"
)

// recordBreakerOutcome feeds an Engine result's success/failure into the
// shared circuit breaker (spec §4.6/§7) via the Connection Manager, the
// one component both the Dispatcher and the reaper's health sweep already
// share a breaker reference through.
func (s *Server) recordBreakerOutcome(success bool, kind sberrors.Kind) {
	if s.deps.Conns == nil {
		return
	}
	if success {
		s.deps.Conns.RecordOperationSuccess()
		return
	}
	s.deps.Conns.RecordOperationFailure(kind)
}

// ExecutionResultOutput mirrors spec §3's Execution Result record.
type ExecutionResultOutput struct {
	Success    bool            `json:"success"`
	Output     string          `json:"output"`
	Error      string          `json:"error,omitempty"`
	ErrorKind  string          `json:"error_kind,omitempty"`
	DurationMS int64           `json:"duration_ms"`
	Artifacts  []string        `json:"artifacts,omitempty"`
	Metadata   map[string]any  `json:"metadata,omitempty"`
	Recovery   *RecoveryOutput `json:"recovery,omitempty"`
}

// RecoveryOutput reports the best-effort recovery strategy applied, if any
// (spec §7's "recovery outcomes recorded alongside the Error Record").
type RecoveryOutput struct {
	Applied     bool   `json:"applied"`
	Description string `json:"description,omitempty"`
}

func toExecutionResultOutput(r engine.Result) ExecutionResultOutput {
	return ExecutionResultOutput{
		Success:    r.Success,
		Output:     r.Output,
		Error:      r.Error,
		ErrorKind:  string(r.ErrorKind),
		DurationMS: r.DurationMS,
		Artifacts:  r.Artifacts,
		Metadata:   r.Metadata,
	}
}

func (s *Server) workspaceContext(workspaceID, tier string) (*workspace.Context, error) {
	t := security.Tier(tier)
	if tier == "" || !t.Valid() {
		t = security.TierModerate
	}
	return s.deps.Workspaces.GetOrCreate(workspaceID, t)
}

// withTimeoutOverride temporarily overrides a context's CPU-second budget
// for a single call when the caller supplies a tool-level timeout, per
// spec §6's execute_* "timeout?: int" input field, then restores it.
func withTimeoutOverride(ctx *workspace.Context, timeoutSeconds int, run func()) {
	if timeoutSeconds <= 0 {
		run()
		return
	}
	original := ctx.ResourceLimits
	ctx.ResourceLimits = original.WithOverrides(limits.Resources{CPUSeconds: timeoutSeconds})
	defer func() { ctx.ResourceLimits = original }()
	run()
}

func (s *Server) recoveryFor(result engine.Result, ctx *workspace.Context) *RecoveryOutput {
	if result.Success || result.ErrorKind == "" {
		return nil
	}
	outcome := engine.Recover(result.ErrorKind, ctx)
	if !outcome.Applied {
		return nil
	}
	return &RecoveryOutput{Applied: outcome.Applied, Description: outcome.Description}
}

// ExecutePythonInput is execute_python's input (spec §6).
type ExecutePythonInput struct {
	Code        string `json:"code"`
	WorkspaceID string `json:"workspace_id"`
	Timeout     int    `json:"timeout,omitempty"`
	Tier        string `json:"security_tier,omitempty"`
	APIKey      string `json:"api_key,omitempty"`
}

func (in ExecutePythonInput) apiKey() string { return in.APIKey }

func (s *Server) executePython(_ context.Context, in ExecutePythonInput) (ExecutionResultOutput, error) {
	ctx, err := s.workspaceContext(in.WorkspaceID, in.Tier)
	if err != nil {
		return ExecutionResultOutput{}, errInternal(err.Error())
	}
	var result engine.Result
	withTimeoutOverride(ctx, in.Timeout, func() {
		result = s.deps.Engine.ExecutePython(in.Code, ctx)
	})
	s.recordBreakerOutcome(result.Success, result.ErrorKind)
	out := toExecutionResultOutput(result)
	out.Recovery = s.recoveryFor(result, ctx)
	return out, nil
}

// ExecuteShellInput is execute_shell's input (spec §6).
type ExecuteShellInput struct {
	Command     string `json:"command"`
	WorkspaceID string `json:"workspace_id"`
	Timeout     int    `json:"timeout,omitempty"`
	Tier        string `json:"security_tier,omitempty"`
	APIKey      string `json:"api_key,omitempty"`
}

func (in ExecuteShellInput) apiKey() string { return in.APIKey }

func (s *Server) executeShell(_ context.Context, in ExecuteShellInput) (ExecutionResultOutput, error) {
	ctx, err := s.workspaceContext(in.WorkspaceID, in.Tier)
	if err != nil {
		return ExecutionResultOutput{}, errInternal(err.Error())
	}
	var result engine.Result
	withTimeoutOverride(ctx, in.Timeout, func() {
		result = s.deps.Engine.ExecuteShell(in.Command, ctx)
	})
	s.recordBreakerOutcome(result.Success, result.ErrorKind)
	out := toExecutionResultOutput(result)
	out.Recovery = s.recoveryFor(result, ctx)
	return out, nil
}

// ExecuteAnimationInput is execute_animation's input (spec §6).
type ExecuteAnimationInput struct {
	Script      string `json:"script"`
	WorkspaceID string `json:"workspace_id"`
	Quality     string `json:"quality"`
	SceneName   string `json:"scene_name,omitempty"`
	Tier        string `json:"security_tier,omitempty"`
	APIKey      string `json:"api_key,omitempty"`
}

func (in ExecuteAnimationInput) apiKey() string { return in.APIKey }

func (s *Server) executeAnimation(_ context.Context, in ExecuteAnimationInput) (ExecutionResultOutput, error) {
	ctx, err := s.workspaceContext(in.WorkspaceID, in.Tier)
	if err != nil {
		return ExecutionResultOutput{}, errInternal(err.Error())
	}
	result := s.deps.Engine.ExecuteAnimation(in.Script, ctx, in.Quality, in.SceneName)
	s.recordBreakerOutcome(result.Success, result.ErrorKind)
	out := toExecutionResultOutput(result)
	out.Recovery = s.recoveryFor(result, ctx)
	return out, nil
}

// StoreArtifactInput is store_artifact's input (spec §6).
type StoreArtifactInput struct {
	FilePath    string   `json:"file_path"`
	WorkspaceID string   `json:"workspace_id,omitempty"`
	UserID      string   `json:"user_id,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Description string   `json:"description,omitempty"`
	APIKey      string   `json:"api_key,omitempty"`
}

func (in StoreArtifactInput) apiKey() string { return in.APIKey }

// StoreArtifactOutput is store_artifact's output (spec §6: {artifact_id}).
type StoreArtifactOutput struct {
	ArtifactID string `json:"artifact_id"`
}

func (s *Server) storeArtifact(_ context.Context, in StoreArtifactInput) (StoreArtifactOutput, error) {
	if in.FilePath == "" {
		return StoreArtifactOutput{}, errInvalidParams("file_path is required")
	}
	meta, err := s.deps.Store.StoreFile(in.FilePath, artifact.StoreOptions{
		WorkspaceID: in.WorkspaceID,
		UserID:      in.UserID,
		Tags:        in.Tags,
		Description: in.Description,
	})
	if err != nil {
		s.recordBreakerOutcome(false, sberrors.Classify(err))
		return StoreArtifactOutput{}, errInternal(err.Error())
	}
	s.recordBreakerOutcome(true, "")
	return StoreArtifactOutput{ArtifactID: meta.ArtifactID}, nil
}

// ListArtifactsInput is list_artifacts's input (spec §6: "filter fields").
type ListArtifactsInput struct {
	Category    string   `json:"category,omitempty"`
	WorkspaceID string   `json:"workspace_id,omitempty"`
	UserID      string   `json:"user_id,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	APIKey      string   `json:"api_key,omitempty"`
}

func (in ListArtifactsInput) apiKey() string { return in.APIKey }

// ListArtifactsOutput is list_artifacts's output.
type ListArtifactsOutput struct {
	Artifacts []artifact.Metadata `json:"artifacts"`
}

func (s *Server) listArtifacts(_ context.Context, in ListArtifactsInput) (ListArtifactsOutput, error) {
	list, err := s.deps.Store.List(artifact.Filter{
		Category:    artifact.Category(in.Category),
		WorkspaceID: in.WorkspaceID,
		UserID:      in.UserID,
		Tags:        in.Tags,
	})
	if err != nil {
		s.recordBreakerOutcome(false, sberrors.Classify(err))
		return ListArtifactsOutput{}, errInternal(err.Error())
	}
	s.recordBreakerOutcome(true, "")
	return ListArtifactsOutput{Artifacts: list}, nil
}

// RetrieveArtifactInput is retrieve_artifact's input (spec §6).
type RetrieveArtifactInput struct {
	ArtifactID string `json:"artifact_id"`
	APIKey     string `json:"api_key,omitempty"`
}

func (in RetrieveArtifactInput) apiKey() string { return in.APIKey }

// RetrieveArtifactOutput is retrieve_artifact's output (spec §6).
type RetrieveArtifactOutput struct {
	Metadata    artifact.Metadata `json:"metadata"`
	StoragePath string            `json:"storage_path"`
	Exists      bool              `json:"exists"`
	SizeBytes   int64             `json:"size_bytes"`
}

func (s *Server) retrieveArtifact(_ context.Context, in RetrieveArtifactInput) (RetrieveArtifactOutput, error) {
	meta, err := s.deps.Store.Retrieve(in.ArtifactID)
	if err != nil {
		return RetrieveArtifactOutput{Exists: false}, nil
	}
	return RetrieveArtifactOutput{
		Metadata:    meta,
		StoragePath: meta.StoragePath,
		Exists:      true,
		SizeBytes:   meta.SizeBytes,
	}, nil
}

// GetArtifactContentInput is get_artifact_content's input (spec §6).
type GetArtifactContentInput struct {
	ArtifactID string `json:"artifact_id"`
	AsText     bool   `json:"as_text"`
	APIKey     string `json:"api_key,omitempty"`
}

func (in GetArtifactContentInput) apiKey() string { return in.APIKey }

// GetArtifactContentOutput is get_artifact_content's output (spec §6).
type GetArtifactContentOutput struct {
	Content     string            `json:"content"`
	ContentType string            `json:"content_type"`
	Size        int64             `json:"size"`
	Metadata    artifact.Metadata `json:"metadata"`
}

func (s *Server) getArtifactContent(_ context.Context, in GetArtifactContentInput) (GetArtifactContentOutput, error) {
	meta, err := s.deps.Store.Retrieve(in.ArtifactID)
	if err != nil {
		return GetArtifactContentOutput{}, errInternal(err.Error())
	}
	content, _, err := s.deps.Store.GetContent(in.ArtifactID, in.AsText)
	if err != nil {
		s.recordBreakerOutcome(false, sberrors.Classify(err))
		return GetArtifactContentOutput{}, errInternal(err.Error())
	}
	s.recordBreakerOutcome(true, "")
	return GetArtifactContentOutput{
		Content:     content,
		ContentType: meta.ContentType,
		Size:        meta.SizeBytes,
		Metadata:    meta,
	}, nil
}

// CleanupArtifactsInput is cleanup_artifacts's input (spec §6: "retention
// policy fields").
type CleanupArtifactsInput struct {
	MaxAgeDays              int      `json:"max_age_days,omitempty"`
	MaxTotalSizeMiB         int64    `json:"max_total_size_mib,omitempty"`
	MaxArtifactsPerCategory int      `json:"max_artifacts_per_category,omitempty"`
	CategoriesToClean       []string `json:"categories_to_clean,omitempty"`
	PreserveTags            []string `json:"preserve_tags,omitempty"`
	APIKey                  string   `json:"api_key,omitempty"`
}

func (in CleanupArtifactsInput) apiKey() string { return in.APIKey }

func (s *Server) cleanupArtifacts(_ context.Context, in CleanupArtifactsInput) (artifact.CleanupResult, error) {
	categories := make([]artifact.Category, 0, len(in.CategoriesToClean))
	for _, c := range in.CategoriesToClean {
		categories = append(categories, artifact.Category(c))
	}
	result, err := s.deps.Store.Cleanup(artifact.RetentionPolicy{
		MaxAgeDays:              in.MaxAgeDays,
		MaxTotalSizeMiB:         in.MaxTotalSizeMiB,
		MaxArtifactsPerCategory: in.MaxArtifactsPerCategory,
		CategoriesToClean:       categories,
		PreserveTags:            in.PreserveTags,
	})
	if err != nil {
		s.recordBreakerOutcome(false, sberrors.Classify(err))
		return artifact.CleanupResult{}, errInternal(err.Error())
	}
	s.recordBreakerOutcome(true, "")
	return result, nil
}

// GetStorageStatsInput is get_storage_stats's input (spec §6: "—").
type GetStorageStatsInput struct {
	APIKey string `json:"api_key,omitempty"`
}

func (in GetStorageStatsInput) apiKey() string { return in.APIKey }

func (s *Server) getStorageStats(_ context.Context, _ GetStorageStatsInput) (artifact.StorageStats, error) {
	stats, err := s.deps.Store.StorageStats()
	if err != nil {
		s.recordBreakerOutcome(false, sberrors.Classify(err))
		return artifact.StorageStats{}, errInternal(err.Error())
	}
	s.recordBreakerOutcome(true, "")
	return stats, nil
}

// CheckArtifactConsistencyInput is the supplemental consistency-check
// tool's input (SPEC_FULL.md §3 item 3).
type CheckArtifactConsistencyInput struct {
	APIKey string `json:"api_key,omitempty"`
}

func (in CheckArtifactConsistencyInput) apiKey() string { return in.APIKey }

// CheckArtifactConsistencyOutput reports orphans found.
type CheckArtifactConsistencyOutput struct {
	OrphanedIndexEntries []string `json:"orphaned_index_entries"`
	OrphanedBlobs        []string `json:"orphaned_blobs"`
}

func (s *Server) checkArtifactConsistency(_ context.Context, _ CheckArtifactConsistencyInput) (CheckArtifactConsistencyOutput, error) {
	orphanedEntries, orphanedBlobs, err := s.deps.Store.CheckConsistency()
	if err != nil {
		s.recordBreakerOutcome(false, sberrors.Classify(err))
		return CheckArtifactConsistencyOutput{}, errInternal(err.Error())
	}
	s.recordBreakerOutcome(true, "")
	return CheckArtifactConsistencyOutput{OrphanedIndexEntries: orphanedEntries, OrphanedBlobs: orphanedBlobs}, nil
}

// ServerInfoInput is server_info's input (spec §6: "—").
type ServerInfoInput struct {
	APIKey string `json:"api_key,omitempty"`
}

func (in ServerInfoInput) apiKey() string { return in.APIKey }

// ServerInfoOutput is server_info's output (spec §6: "server identity +
// feature flags").
type ServerInfoOutput struct {
	Name         string   `json:"name"`
	Version      string   `json:"version"`
	UptimeSecs   float64  `json:"uptime_seconds"`
	Transports   []string `json:"transports"`
	Tools        int      `json:"tool_count"`
	AuthEnabled  bool     `json:"auth_enabled"`
	FeatureFlags []string `json:"feature_flags"`
}

func (s *Server) serverInfo(_ context.Context, _ ServerInfoInput) (ServerInfoOutput, error) {
	return ServerInfoOutput{
		Name:         "swiss-sandbox",
		Version:      serverVersion,
		UptimeSecs:   time.Since(s.startedAt).Seconds(),
		Transports:   []string{"stdio", "http"},
		Tools:        16,
		AuthEnabled:  s.deps.Auth != nil,
		FeatureFlags: []string{"artifact_store", "rate_limiter", "circuit_breaker", "health_monitor", "docker_isolation_optional"},
	}, nil
}

// HealthCheckInput is health_check's input (spec §6: "—").
type HealthCheckInput struct {
	APIKey string `json:"api_key,omitempty"`
}

func (in HealthCheckInput) apiKey() string { return in.APIKey }

func (s *Server) healthCheck(_ context.Context, _ HealthCheckInput) (health.Snapshot, error) {
	if s.deps.Health == nil {
		return health.Snapshot{}, errInternal("health monitor not configured")
	}
	return s.deps.Health.Check(), nil
}

// GetExecutionHistoryInput is the supplemental history tool's input
// (SPEC_FULL.md §3 item 5).
type GetExecutionHistoryInput struct {
	WorkspaceID string `json:"workspace_id,omitempty"`
	Limit       int    `json:"limit,omitempty"`
	APIKey      string `json:"api_key,omitempty"`
}

func (in GetExecutionHistoryInput) apiKey() string { return in.APIKey }

// GetExecutionHistoryOutput wraps the matching execution records.
type GetExecutionHistoryOutput struct {
	Records []engine.Record `json:"records"`
	Stats   engine.Stats    `json:"stats"`
}

func (s *Server) getExecutionHistory(_ context.Context, in GetExecutionHistoryInput) (GetExecutionHistoryOutput, error) {
	history := s.deps.Engine.History()
	var records []engine.Record
	if in.WorkspaceID != "" {
		records = history.ForWorkspace(in.WorkspaceID)
	} else {
		records = history.Recent(in.Limit)
	}
	return GetExecutionHistoryOutput{Records: records, Stats: history.Stats()}, nil
}

// ReconnectInput is the supplemental reconnect tool's input (SPEC_FULL.md
// §3 item 5, adapting connection_manager.py's attempt_reconnection).
type ReconnectInput struct {
	ConnectionID string `json:"connection_id"`
	ClientIP     string `json:"client_ip"`
	UserAgent    string `json:"user_agent,omitempty"`
	SessionID    string `json:"session_id,omitempty"`
	APIKey       string `json:"api_key,omitempty"`
}

func (in ReconnectInput) apiKey() string { return in.APIKey }

// ReconnectOutput reports the reconnect admission decision.
type ReconnectOutput struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

func (s *Server) reconnect(_ context.Context, in ReconnectInput) (ReconnectOutput, error) {
	result := s.deps.Conns.AttemptReconnect(in.ConnectionID, in.ClientIP, in.UserAgent, in.SessionID)
	return ReconnectOutput{OK: result.OK, Reason: result.Reason}, nil
}

// DisconnectInput is the supplemental disconnect tool's input.
type DisconnectInput struct {
	ConnectionID string `json:"connection_id"`
	Reason       string `json:"reason,omitempty"`
	APIKey       string `json:"api_key,omitempty"`
}

func (in DisconnectInput) apiKey() string { return in.APIKey }

// DisconnectOutput reports whether a connection was removed.
type DisconnectOutput struct {
	Removed bool `json:"removed"`
}

func (s *Server) disconnect(_ context.Context, in DisconnectInput) (DisconnectOutput, error) {
	reason := in.Reason
	if reason == "" {
		reason = "client_requested"
	}
	return DisconnectOutput{Removed: s.deps.Conns.Remove(in.ConnectionID, reason)}, nil
}

// CleanupContextInput is the cleanup_context tool's input (spec §8 Scenario
// 1 step 3, invariant 5): destroy a workspace's persistent context and its
// artifacts directory.
type CleanupContextInput struct {
	WorkspaceID string `json:"workspace_id"`
	APIKey      string `json:"api_key,omitempty"`
}

func (in CleanupContextInput) apiKey() string { return in.APIKey }

// CleanupContextOutput reports whether the cleanup completed.
type CleanupContextOutput struct {
	WorkspaceID string `json:"workspace_id"`
	CleanedUp   bool   `json:"cleaned_up"`
}

func (s *Server) cleanupContext(_ context.Context, in CleanupContextInput) (CleanupContextOutput, error) {
	if err := s.deps.Workspaces.Cleanup(in.WorkspaceID); err != nil {
		s.recordBreakerOutcome(false, sberrors.Classify(err))
		return CleanupContextOutput{}, errInternal(err.Error())
	}
	s.recordBreakerOutcome(true, "")
	return CleanupContextOutput{WorkspaceID: in.WorkspaceID, CleanedUp: true}, nil
}
