package project

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/cutbench/cutbench-agent/internal/export"
	"github.com/cutbench/cutbench-agent/internal/media"
	"github.com/cutbench/cutbench-agent/internal/timeline"
)

// AnalysisPayload is the stored payload of an analysis job.
type AnalysisPayload struct {
	VideoID string `json:"videoId"`
}

// Service is the catalog layer over the repository: projects, imported
// videos, persisted editor state, and the job queue.
type Service struct {
	repo   Repository
	prober media.Prober
	logger *slog.Logger
}

func NewService(repo Repository, prober media.Prober, logger *slog.Logger) *Service {
	return &Service{repo: repo, prober: prober, logger: logger}
}

func (s *Service) CreateProject(ctx context.Context, name string) (*Project, error) {
	if name == "" {
		name = "Untitled Project"
	}
	now := time.Now().UTC()
	p := &Project{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateProject(ctx, p); err != nil {
		return nil, err
	}
	if s.logger != nil {
		s.logger.Info("project created", "project_id", p.ID, "name", p.Name)
	}
	return p, nil
}

func (s *Service) GetProject(ctx context.Context, id string) (*Project, error) {
	return s.repo.GetProject(ctx, id)
}

func (s *Service) ListProjects(ctx context.Context) ([]*Project, error) {
	return s.repo.ListProjects(ctx)
}

func (s *Service) RenameProject(ctx context.Context, id, name string) (*Project, error) {
	if name == "" {
		return nil, fmt.Errorf("project name is required")
	}
	if err := s.repo.RenameProject(ctx, id, name); err != nil {
		return nil, err
	}
	return s.repo.GetProject(ctx, id)
}

// DeleteProject removes the project row; videos, timeline, overlays,
// insights, statuses and jobs go with it through foreign key cascade.
func (s *Service) DeleteProject(ctx context.Context, id string) error {
	if err := s.repo.DeleteProject(ctx, id); err != nil {
		return err
	}
	if s.logger != nil {
		s.logger.Info("project deleted", "project_id", id)
	}
	return nil
}

// ImportVideo registers a media file in place and probes its metadata.
// Importing the same path twice returns the existing record.
func (s *Service) ImportVideo(ctx context.Context, projectID, path string) (*SourceVideo, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("media file does not exist: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory, not a media file")
	}
	if !IsVideoFile(absPath) {
		return nil, fmt.Errorf("unsupported media type: %s", filepath.Ext(absPath))
	}

	existing, err := s.repo.GetVideoByPath(ctx, projectID, absPath)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	probe, err := s.prober.Probe(ctx, absPath)
	if err != nil {
		return nil, fmt.Errorf("probe media: %w", err)
	}

	v := &SourceVideo{
		ID:         uuid.NewString(),
		ProjectID:  projectID,
		Filename:   filepath.Base(absPath),
		Path:       absPath,
		Duration:   probe.Duration,
		Width:      probe.Width,
		Height:     probe.Height,
		FrameRate:  probe.FrameRate,
		HasAudio:   probe.HasAudio,
		SizeBytes:  info.Size(),
		ImportedAt: time.Now().UTC(),
	}
	if err := s.repo.CreateVideo(ctx, v); err != nil {
		return nil, err
	}
	if err := s.repo.TouchProject(ctx, projectID); err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.Info("video imported", "project_id", projectID, "video_id", v.ID,
			"filename", v.Filename, "duration", v.Duration)
	}
	return v, nil
}

func (s *Service) GetVideo(ctx context.Context, id string) (*SourceVideo, error) {
	return s.repo.GetVideo(ctx, id)
}

func (s *Service) ListVideos(ctx context.Context, projectID string) ([]*SourceVideo, error) {
	return s.repo.ListVideos(ctx, projectID)
}

func (s *Service) DeleteVideo(ctx context.Context, id string) error {
	return s.repo.DeleteVideo(ctx, id)
}

// SaveTimeline persists the document and bumps the project's updated time.
func (s *Service) SaveTimeline(ctx context.Context, projectID string, doc timeline.Data) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal timeline: %w", err)
	}
	if err := s.repo.SaveTimeline(ctx, projectID, raw); err != nil {
		return err
	}
	return s.repo.TouchProject(ctx, projectID)
}

// LoadTimeline returns the persisted document, or nil when the project has
// none yet.
func (s *Service) LoadTimeline(ctx context.Context, projectID string) (*timeline.Data, error) {
	raw, err := s.repo.GetTimeline(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	var doc timeline.Data
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal timeline: %w", err)
	}
	return &doc, nil
}

func (s *Service) ClearTimeline(ctx context.Context, projectID string) error {
	if err := s.repo.DeleteTimeline(ctx, projectID); err != nil {
		return err
	}
	return s.repo.TouchProject(ctx, projectID)
}

// SaveInsights stores the raw analysis document byte for byte.
func (s *Service) SaveInsights(ctx context.Context, projectID string, document []byte) error {
	if !json.Valid(document) {
		return fmt.Errorf("insights document is not valid JSON")
	}
	return s.repo.SaveInsights(ctx, projectID, document)
}

func (s *Service) GetInsights(ctx context.Context, projectID string) ([]byte, error) {
	return s.repo.GetInsights(ctx, projectID)
}

// EnqueueExport validates and queues an export request for the runner.
func (s *Service) EnqueueExport(ctx context.Context, projectID string, req export.Request) (*Job, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal export request: %w", err)
	}
	return s.enqueue(ctx, projectID, JobTypeExport, payload)
}

// EnqueueAnalysis queues a content analysis job for an imported video.
func (s *Service) EnqueueAnalysis(ctx context.Context, projectID, videoID string) (*Job, error) {
	v, err := s.repo.GetVideo(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if v == nil || v.ProjectID != projectID {
		return nil, fmt.Errorf("video %s not found in project", videoID)
	}
	payload, err := json.Marshal(AnalysisPayload{VideoID: videoID})
	if err != nil {
		return nil, err
	}
	return s.enqueue(ctx, projectID, JobTypeAnalysis, payload)
}

func (s *Service) enqueue(ctx context.Context, projectID, jobType string, payload []byte) (*Job, error) {
	now := time.Now().UTC()
	j := &Job{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Type:      jobType,
		Status:    JobStatusQueued,
		Payload:   payload,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateJob(ctx, j); err != nil {
		return nil, err
	}
	if s.logger != nil {
		s.logger.Info("job queued", "job_id", j.ID, "project_id", projectID, "type", jobType)
	}
	return j, nil
}

func (s *Service) GetJob(ctx context.Context, id string) (*Job, error) {
	return s.repo.GetJob(ctx, id)
}

func (s *Service) ListJobs(ctx context.Context, projectID string, limit int) ([]*Job, error) {
	return s.repo.ListJobs(ctx, projectID, limit)
}

// BuildExportInput assembles the project snapshot an export runs against:
// the persisted timeline, imported media, and the suggestion review tally.
func (s *Service) BuildExportInput(ctx context.Context, projectID string) (*export.Input, error) {
	p, err := s.repo.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("project %s not found", projectID)
	}

	doc, err := s.LoadTimeline(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		empty := timeline.NewData(projectID, timeline.DefaultSettings())
		doc = &empty
	}

	videos, err := s.repo.ListVideos(ctx, projectID)
	if err != nil {
		return nil, err
	}
	mediaList := make([]export.SourceMedia, 0, len(videos))
	for _, v := range videos {
		mediaList = append(mediaList, export.SourceMedia{
			ID:        v.ID,
			Filename:  v.Filename,
			Path:      v.Path,
			Duration:  v.Duration,
			Width:     v.Width,
			Height:    v.Height,
			FrameRate: v.FrameRate,
			HasAudio:  v.HasAudio,
		})
	}

	statuses, err := s.repo.GetSuggestionStatuses(ctx, projectID)
	if err != nil {
		return nil, err
	}
	var tally export.SuggestionTally
	for _, status := range statuses {
		tally.Total++
		switch status {
		case "applied":
			tally.Applied++
		case "ignored":
			tally.Ignored++
		default:
			tally.Pending++
		}
	}

	return &export.Input{
		ProjectID:   projectID,
		ProjectName: p.Name,
		Timeline:    *doc,
		Media:       mediaList,
		Suggestions: tally,
	}, nil
}

// AcceptedSuggestionIDs returns ids marked applied, for the review report.
func (s *Service) AcceptedSuggestionIDs(ctx context.Context, projectID string) ([]string, error) {
	statuses, err := s.repo.GetSuggestionStatuses(ctx, projectID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(statuses))
	for id, status := range statuses {
		if status == "applied" {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}
