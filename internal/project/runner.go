package project

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/cutbench/cutbench-agent/internal/export"
	"github.com/cutbench/cutbench-agent/internal/inference"
	"github.com/cutbench/cutbench-agent/internal/overlay"
)

// ExportResult is the stored result of a completed export job. Path points
// at the artifact written under the exports directory.
type ExportResult struct {
	Filename    string `json:"filename"`
	Path        string `json:"path"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

// AnalysisResult is the stored result of a completed analysis job.
type AnalysisResult struct {
	InsightsBytes int `json:"insightsBytes"`
}

// Runner processes queued jobs one at a time. Export jobs render an
// artifact into the exports directory; analysis jobs call the inference
// service and persist the returned insights document.
type Runner struct {
	service      *Service
	repo         Repository
	inference    inference.Client
	exportDir    string
	logger       *slog.Logger
	pollInterval time.Duration
	running      atomic.Bool
	paused       atomic.Bool

	// OnInsights, when set, is called after an analysis job persists a new
	// insights document. The session layer uses it to refresh open editors.
	OnInsights func(projectID string, document []byte)

	// OnJobDone, when set, is called with the job's final state after it
	// completes or fails, so connected editors can be notified.
	OnJobDone func(job *Job)
}

func NewRunner(service *Service, repo Repository, client inference.Client, exportDir string, logger *slog.Logger) *Runner {
	return &Runner{
		service:      service,
		repo:         repo,
		inference:    client,
		exportDir:    exportDir,
		logger:       logger,
		pollInterval: 5 * time.Second,
	}
}

func (r *Runner) Start(ctx context.Context) {
	if r.running.Swap(true) {
		return
	}

	r.logger.Info("job runner started")

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("job runner stopping")
			r.running.Store(false)
			return
		case <-ticker.C:
			if !r.paused.Load() {
				r.processNextJob(ctx)
			}
		}
	}
}

func (r *Runner) Pause() {
	r.paused.Store(true)
	r.logger.Info("job runner paused")
}

func (r *Runner) Resume() {
	r.paused.Store(false)
	r.logger.Info("job runner resumed")
}

func (r *Runner) IsPaused() bool {
	return r.paused.Load()
}

func (r *Runner) IsRunning() bool {
	return r.running.Load()
}

func (r *Runner) GetActiveJobCount(ctx context.Context) int {
	count, err := r.repo.CountActiveJobs(ctx)
	if err != nil {
		return 0
	}
	return count
}

func (r *Runner) processNextJob(ctx context.Context) {
	jobs, err := r.repo.ListQueuedJobs(ctx)
	if err != nil {
		r.logger.Error("failed to list queued jobs", "error", err)
		return
	}

	if len(jobs) == 0 {
		return
	}

	job := jobs[0]
	r.logger.Info("processing job", "job_id", job.ID, "type", job.Type)

	switch job.Type {
	case JobTypeExport:
		r.processExportJob(ctx, job)

	case JobTypeAnalysis:
		r.processAnalysisJob(ctx, job)

	default:
		r.logger.Warn("unknown job type", "type", job.Type)
		r.repo.UpdateJobStatus(ctx, job.ID, JobStatusFailed, "unknown job type")
	}

	r.notifyJobDone(ctx, job.ID)
}

// notifyJobDone delivers the job's stored final state to the OnJobDone hook.
func (r *Runner) notifyJobDone(ctx context.Context, jobID string) {
	if r.OnJobDone == nil {
		return
	}
	job, err := r.repo.GetJob(ctx, jobID)
	if err != nil || job == nil {
		return
	}
	r.OnJobDone(job)
}

func (r *Runner) processExportJob(ctx context.Context, job *Job) {
	var req export.Request
	if err := json.Unmarshal(job.Payload, &req); err != nil {
		r.repo.UpdateJobStatus(ctx, job.ID, JobStatusFailed, fmt.Sprintf("bad export payload: %v", err))
		return
	}

	r.repo.UpdateJobStatus(ctx, job.ID, JobStatusRunning, "")

	in, err := r.service.BuildExportInput(ctx, job.ProjectID)
	if err != nil {
		r.repo.UpdateJobStatus(ctx, job.ID, JobStatusFailed, fmt.Sprintf("assemble export input: %v", err))
		return
	}

	// The accepted list reflects review state at generation time, not at
	// enqueue time.
	if req.Kind == export.KindReport {
		accepted, err := r.service.AcceptedSuggestionIDs(ctx, job.ProjectID)
		if err != nil {
			r.repo.UpdateJobStatus(ctx, job.ID, JobStatusFailed, fmt.Sprintf("load suggestion statuses: %v", err))
			return
		}
		if req.Report == nil {
			req.Report = &export.ReportSpec{}
		}
		req.Report.AcceptedSuggestionIDs = accepted
	}

	artifact, err := export.Build(req, *in)
	if err != nil {
		r.repo.UpdateJobStatus(ctx, job.ID, JobStatusFailed, fmt.Sprintf("build export: %v", err))
		return
	}
	r.repo.UpdateJobProgress(ctx, job.ID, 50)

	jobDir := filepath.Join(r.exportDir, job.ID)
	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		r.repo.UpdateJobStatus(ctx, job.ID, JobStatusFailed, fmt.Sprintf("create export dir: %v", err))
		return
	}
	outPath := filepath.Join(jobDir, artifact.Filename)
	if err := os.WriteFile(outPath, artifact.Bytes, 0o644); err != nil {
		r.repo.UpdateJobStatus(ctx, job.ID, JobStatusFailed, fmt.Sprintf("write artifact: %v", err))
		return
	}

	result, err := json.Marshal(ExportResult{
		Filename:    artifact.Filename,
		Path:        outPath,
		ContentType: artifact.ContentType,
		Size:        int64(len(artifact.Bytes)),
	})
	if err != nil {
		r.repo.UpdateJobStatus(ctx, job.ID, JobStatusFailed, fmt.Sprintf("marshal result: %v", err))
		return
	}
	if err := r.repo.SetJobResult(ctx, job.ID, result); err != nil {
		r.repo.UpdateJobStatus(ctx, job.ID, JobStatusFailed, fmt.Sprintf("store result: %v", err))
		return
	}

	r.repo.UpdateJobProgress(ctx, job.ID, 100)
	r.repo.UpdateJobStatus(ctx, job.ID, JobStatusCompleted, "")
	r.logger.Info("export job completed", "job_id", job.ID, "artifact", artifact.Filename, "bytes", len(artifact.Bytes))
}

func (r *Runner) processAnalysisJob(ctx context.Context, job *Job) {
	if r.inference == nil {
		r.repo.UpdateJobStatus(ctx, job.ID, JobStatusFailed, "inference client not configured")
		return
	}

	var payload AnalysisPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		r.repo.UpdateJobStatus(ctx, job.ID, JobStatusFailed, fmt.Sprintf("bad analysis payload: %v", err))
		return
	}

	video, err := r.repo.GetVideo(ctx, payload.VideoID)
	if err != nil || video == nil {
		r.repo.UpdateJobStatus(ctx, job.ID, JobStatusFailed, "video not found")
		return
	}

	r.repo.UpdateJobStatus(ctx, job.ID, JobStatusRunning, "")

	req := inference.AnalyzeRequest{
		Media: inference.MediaRef{
			VideoID:  video.ID,
			Path:     video.Path,
			Duration: video.Duration,
		},
		Captions: r.captionCues(ctx, job.ProjectID),
	}
	if doc, err := r.repo.GetTimeline(ctx, job.ProjectID); err == nil && doc != nil {
		req.Timeline = json.RawMessage(doc)
	}
	r.repo.UpdateJobProgress(ctx, job.ID, 25)

	insights, err := r.inference.AnalyzeContent(ctx, req)
	if err != nil {
		r.repo.UpdateJobStatus(ctx, job.ID, JobStatusFailed, fmt.Sprintf("content analysis failed: %v", err))
		return
	}
	r.repo.UpdateJobProgress(ctx, job.ID, 75)

	if err := r.service.SaveInsights(ctx, job.ProjectID, insights); err != nil {
		r.repo.UpdateJobStatus(ctx, job.ID, JobStatusFailed, fmt.Sprintf("store insights: %v", err))
		return
	}

	result, err := json.Marshal(AnalysisResult{InsightsBytes: len(insights)})
	if err == nil {
		r.repo.SetJobResult(ctx, job.ID, result)
	}

	r.repo.UpdateJobProgress(ctx, job.ID, 100)
	r.repo.UpdateJobStatus(ctx, job.ID, JobStatusCompleted, "")
	r.logger.Info("analysis job completed", "job_id", job.ID, "video_id", video.ID, "insights_bytes", len(insights))

	if r.OnInsights != nil {
		r.OnInsights(job.ProjectID, insights)
	}
}

// captionCues collects the project's caption overlays as analysis context.
// Persistence errors degrade to an empty cue list rather than failing the
// job.
func (r *Runner) captionCues(ctx context.Context, projectID string) []inference.Caption {
	items, err := r.repo.ListOverlays(ctx, projectID)
	if err != nil {
		r.logger.Warn("failed to load overlays for analysis", "project_id", projectID, "error", err)
		return nil
	}
	var cues []inference.Caption
	for _, item := range items {
		if item.Kind != overlay.KindCaption {
			continue
		}
		cues = append(cues, inference.Caption{
			Start: item.Start,
			End:   item.End,
			Text:  item.Text,
		})
	}
	return cues
}
