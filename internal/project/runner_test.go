package project

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cutbench/cutbench-agent/internal/export"
	"github.com/cutbench/cutbench-agent/internal/inference"
	"github.com/cutbench/cutbench-agent/internal/media"
	"github.com/cutbench/cutbench-agent/internal/timeline"
)

type fakeInference struct {
	analyzeCalled atomic.Int32
	analyzeFn     func(ctx context.Context, req inference.AnalyzeRequest) (json.RawMessage, error)
	lastRequest   inference.AnalyzeRequest
}

func (f *fakeInference) DetectScenes(ctx context.Context, req inference.SceneRequest) (*inference.SceneResponse, error) {
	return &inference.SceneResponse{Scenes: []inference.Scene{}}, nil
}

func (f *fakeInference) GenerateCaptions(ctx context.Context, req inference.CaptionRequest) (*inference.CaptionResponse, error) {
	return &inference.CaptionResponse{Captions: []inference.Caption{}}, nil
}

func (f *fakeInference) AnalyzeContent(ctx context.Context, req inference.AnalyzeRequest) (json.RawMessage, error) {
	f.analyzeCalled.Add(1)
	f.lastRequest = req
	if f.analyzeFn != nil {
		return f.analyzeFn(ctx, req)
	}
	return json.RawMessage(`{"suggestions":[{"id":"s1","type":"cut","startTime":1.0,"endTime":2.0}]}`), nil
}

func setupRunnerTest(t *testing.T, client inference.Client) (*Runner, *Service, Repository, string) {
	t.Helper()

	_, repo := setupTestDB(t)
	svc := NewService(repo, media.NewStubProber(nil), nil)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	exportDir := t.TempDir()
	runner := NewRunner(svc, repo, client, exportDir, logger)
	return runner, svc, repo, exportDir
}

func TestProcessExportJob(t *testing.T) {
	runner, svc, repo, _ := setupRunnerTest(t, &fakeInference{})
	ctx := context.Background()

	p := createTestProject(t, svc)
	v, err := svc.ImportVideo(ctx, p.ID, writeTestVideo(t, "intro.mp4"))
	if err != nil {
		t.Fatalf("ImportVideo() error = %v", err)
	}

	doc := timeline.NewData(p.ID, timeline.Settings{FPS: 30, Width: 1920, Height: 1080})
	doc.Clips = []timeline.Clip{
		{ID: "c1", SourceVideoID: v.ID, SourceFilename: "intro.mp4", InPoint: 0, OutPoint: 5, Speed: 1.0, Label: "Intro"},
	}
	doc.Duration = 5
	if err := svc.SaveTimeline(ctx, p.ID, doc); err != nil {
		t.Fatalf("SaveTimeline() error = %v", err)
	}

	job, err := svc.EnqueueExport(ctx, p.ID, export.Request{
		Kind: export.KindData,
		Data: &export.DataSpec{Format: export.FormatEDL},
	})
	if err != nil {
		t.Fatalf("EnqueueExport() error = %v", err)
	}

	var notified *Job
	runner.OnJobDone = func(j *Job) { notified = j }

	runner.processNextJob(ctx)

	if notified == nil {
		t.Fatal("OnJobDone was not called")
	}
	if notified.ID != job.ID || notified.Status != JobStatusCompleted {
		t.Errorf("OnJobDone job = %s/%s, want %s/%s", notified.ID, notified.Status, job.ID, JobStatusCompleted)
	}

	done, err := repo.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	if done.Status != JobStatusCompleted {
		t.Fatalf("job status = %s (%s), want %s", done.Status, done.Error, JobStatusCompleted)
	}
	if done.Progress != 100 {
		t.Errorf("job progress = %d, want 100", done.Progress)
	}

	var result ExportResult
	if err := json.Unmarshal(done.Result, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if result.Filename != "Test Project.edl" {
		t.Errorf("result.Filename = %s, want Test Project.edl", result.Filename)
	}

	artifact, err := os.ReadFile(result.Path)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if !strings.Contains(string(artifact), "TITLE: Test Project") {
		t.Errorf("artifact missing EDL title:\n%s", artifact)
	}
	if int64(len(artifact)) != result.Size {
		t.Errorf("artifact size = %d, result.Size = %d", len(artifact), result.Size)
	}
}

func TestProcessExportJob_BadPayload(t *testing.T) {
	runner, svc, repo, _ := setupRunnerTest(t, &fakeInference{})
	ctx := context.Background()

	p := createTestProject(t, svc)
	now := time.Now().UTC()
	job := &Job{
		ID:        "job-bad",
		ProjectID: p.ID,
		Type:      JobTypeExport,
		Status:    JobStatusQueued,
		Payload:   json.RawMessage(`{"kind":"data"}`),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := repo.CreateJob(ctx, job); err != nil {
		t.Fatalf("CreateJob() error = %v", err)
	}

	runner.processNextJob(ctx)

	done, _ := repo.GetJob(ctx, job.ID)
	if done.Status != JobStatusFailed {
		t.Errorf("job status = %s, want %s", done.Status, JobStatusFailed)
	}
	if done.Error == "" {
		t.Error("failed job has no error message")
	}
}

func TestProcessAnalysisJob(t *testing.T) {
	fake := &fakeInference{}
	runner, svc, repo, _ := setupRunnerTest(t, fake)
	ctx := context.Background()

	var notifiedProject string
	var notifiedDoc []byte
	runner.OnInsights = func(projectID string, document []byte) {
		notifiedProject = projectID
		notifiedDoc = document
	}

	p := createTestProject(t, svc)
	v, err := svc.ImportVideo(ctx, p.ID, writeTestVideo(t, "clip.mp4"))
	if err != nil {
		t.Fatalf("ImportVideo() error = %v", err)
	}
	job, err := svc.EnqueueAnalysis(ctx, p.ID, v.ID)
	if err != nil {
		t.Fatalf("EnqueueAnalysis() error = %v", err)
	}

	runner.processNextJob(ctx)

	if fake.analyzeCalled.Load() != 1 {
		t.Errorf("AnalyzeContent called %d times, want 1", fake.analyzeCalled.Load())
	}
	if fake.lastRequest.Media.VideoID != v.ID {
		t.Errorf("analyze request video = %s, want %s", fake.lastRequest.Media.VideoID, v.ID)
	}

	done, _ := repo.GetJob(ctx, job.ID)
	if done.Status != JobStatusCompleted {
		t.Fatalf("job status = %s (%s), want %s", done.Status, done.Error, JobStatusCompleted)
	}

	insights, err := svc.GetInsights(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetInsights() error = %v", err)
	}
	if !strings.Contains(string(insights), `"id":"s1"`) {
		t.Errorf("persisted insights = %s, want the analysis document", insights)
	}

	if notifiedProject != p.ID {
		t.Errorf("OnInsights project = %s, want %s", notifiedProject, p.ID)
	}
	if string(notifiedDoc) != string(insights) {
		t.Error("OnInsights document differs from persisted insights")
	}
}

func TestProcessAnalysisJob_InferenceError(t *testing.T) {
	fake := &fakeInference{
		analyzeFn: func(ctx context.Context, req inference.AnalyzeRequest) (json.RawMessage, error) {
			return nil, fmt.Errorf("inference service unavailable")
		},
	}
	runner, svc, repo, _ := setupRunnerTest(t, fake)
	ctx := context.Background()

	p := createTestProject(t, svc)
	v, _ := svc.ImportVideo(ctx, p.ID, writeTestVideo(t, "clip.mp4"))
	job, err := svc.EnqueueAnalysis(ctx, p.ID, v.ID)
	if err != nil {
		t.Fatalf("EnqueueAnalysis() error = %v", err)
	}

	runner.processNextJob(ctx)

	done, _ := repo.GetJob(ctx, job.ID)
	if done.Status != JobStatusFailed {
		t.Errorf("job status = %s, want %s", done.Status, JobStatusFailed)
	}
	if !strings.Contains(done.Error, "unavailable") {
		t.Errorf("job error = %q, want the inference failure", done.Error)
	}

	insights, _ := svc.GetInsights(ctx, p.ID)
	if insights != nil {
		t.Error("failed analysis should not persist insights")
	}
}

func TestProcessAnalysisJob_NoClient(t *testing.T) {
	runner, svc, repo, _ := setupRunnerTest(t, nil)
	ctx := context.Background()

	p := createTestProject(t, svc)
	v, _ := svc.ImportVideo(ctx, p.ID, writeTestVideo(t, "clip.mp4"))
	job, err := svc.EnqueueAnalysis(ctx, p.ID, v.ID)
	if err != nil {
		t.Fatalf("EnqueueAnalysis() error = %v", err)
	}

	runner.processNextJob(ctx)

	done, _ := repo.GetJob(ctx, job.ID)
	if done.Status != JobStatusFailed {
		t.Errorf("job status = %s, want %s", done.Status, JobStatusFailed)
	}
}

func TestProcessNextJob_TakesOldestFirst(t *testing.T) {
	runner, svc, repo, _ := setupRunnerTest(t, &fakeInference{})
	ctx := context.Background()

	p := createTestProject(t, svc)
	payload, _ := json.Marshal(export.Request{
		Kind: export.KindData,
		Data: &export.DataSpec{Format: export.FormatJSON},
	})

	older := &Job{
		ID: "job-older", ProjectID: p.ID, Type: JobTypeExport, Status: JobStatusQueued,
		Payload: payload, CreatedAt: time.Now().UTC().Add(-time.Minute), UpdatedAt: time.Now().UTC(),
	}
	newer := &Job{
		ID: "job-newer", ProjectID: p.ID, Type: JobTypeExport, Status: JobStatusQueued,
		Payload: payload, CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
	}
	if err := repo.CreateJob(ctx, newer); err != nil {
		t.Fatalf("CreateJob() error = %v", err)
	}
	if err := repo.CreateJob(ctx, older); err != nil {
		t.Fatalf("CreateJob() error = %v", err)
	}

	runner.processNextJob(ctx)

	first, _ := repo.GetJob(ctx, "job-older")
	second, _ := repo.GetJob(ctx, "job-newer")
	if first.Status != JobStatusCompleted {
		t.Errorf("older job status = %s, want %s", first.Status, JobStatusCompleted)
	}
	if second.Status != JobStatusQueued {
		t.Errorf("newer job status = %s, want still %s", second.Status, JobStatusQueued)
	}
}

func TestRunner_PauseResume(t *testing.T) {
	runner, _, _, _ := setupRunnerTest(t, &fakeInference{})

	if runner.IsPaused() {
		t.Error("runner starts paused")
	}
	runner.Pause()
	if !runner.IsPaused() {
		t.Error("Pause() did not pause the runner")
	}
	runner.Resume()
	if runner.IsPaused() {
		t.Error("Resume() did not resume the runner")
	}
}

func TestRunner_GetActiveJobCount(t *testing.T) {
	runner, svc, _, _ := setupRunnerTest(t, &fakeInference{})
	ctx := context.Background()

	p := createTestProject(t, svc)
	if _, err := svc.EnqueueExport(ctx, p.ID, export.Request{
		Kind: export.KindData,
		Data: &export.DataSpec{Format: export.FormatJSON},
	}); err != nil {
		t.Fatalf("EnqueueExport() error = %v", err)
	}

	if got := runner.GetActiveJobCount(ctx); got != 1 {
		t.Errorf("GetActiveJobCount() = %d, want 1", got)
	}

	runner.processNextJob(ctx)

	if got := runner.GetActiveJobCount(ctx); got != 0 {
		t.Errorf("GetActiveJobCount() after processing = %d, want 0", got)
	}
}
