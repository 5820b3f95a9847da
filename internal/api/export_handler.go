package api

import (
	"encoding/json"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/cutbench/cutbench-agent/internal/export"
	"github.com/cutbench/cutbench-agent/internal/project"
)

// exportTimelineHandler builds a document export synchronously and serves
// the artifact as a download. Report and video exports go through the job
// queue; this path covers the editor's "download timeline" action.
func exportTimelineHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projectID := chi.URLParam(r, "id")

		format := export.Format(strings.ToLower(r.URL.Query().Get("format")))
		if format == "" {
			format = export.FormatJSON
		}

		req := export.Request{Kind: export.KindData, Data: &export.DataSpec{Format: format}}
		if err := req.Validate(); err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}

		p, err := cfg.Service.GetProject(r.Context(), projectID)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if p == nil {
			WriteError(w, http.StatusNotFound, "project not found", "NOT_FOUND")
			return
		}

		in, err := cfg.Service.BuildExportInput(r.Context(), projectID)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}

		artifact, err := export.Build(req, *in)
		if err != nil {
			WriteError(w, http.StatusUnprocessableEntity, err.Error(), "EXPORT_FAILED")
			return
		}

		w.Header().Set("Content-Type", artifact.ContentType)
		w.Header().Set("Content-Disposition", `attachment; filename="`+artifact.Filename+`"`)
		w.WriteHeader(http.StatusOK)
		w.Write(artifact.Bytes)
	}
}

func enqueueExportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req export.Request
		if !decodeBody(w, r, &req) {
			return
		}
		if err := req.Validate(); err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}

		job, err := cfg.Service.EnqueueExport(r.Context(), chi.URLParam(r, "id"), req)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}
		WriteJSON(w, http.StatusAccepted, job)
	}
}

func listJobsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobs, err := cfg.Service.ListJobs(r.Context(), chi.URLParam(r, "id"), 50)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list jobs", "INTERNAL_ERROR")
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
	}
}

func getJobHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, err := cfg.Service.GetJob(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if job == nil {
			WriteError(w, http.StatusNotFound, "job not found", "NOT_FOUND")
			return
		}
		WriteJSON(w, http.StatusOK, job)
	}
}

func downloadArtifactHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, err := cfg.Service.GetJob(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if job == nil {
			WriteError(w, http.StatusNotFound, "job not found", "NOT_FOUND")
			return
		}
		if job.Type != project.JobTypeExport {
			WriteError(w, http.StatusBadRequest, "job has no downloadable artifact", "BAD_REQUEST")
			return
		}
		if job.Status != project.JobStatusCompleted {
			WriteError(w, http.StatusConflict, "job is not completed", "JOB_NOT_COMPLETED")
			return
		}

		var result project.ExportResult
		if err := json.Unmarshal(job.Result, &result); err != nil || result.Path == "" {
			WriteError(w, http.StatusInternalServerError, "artifact record is unreadable", "INTERNAL_ERROR")
			return
		}

		f, err := os.Open(result.Path)
		if err != nil {
			WriteError(w, http.StatusNotFound, "artifact file is missing", "NOT_FOUND")
			return
		}
		defer f.Close()

		w.Header().Set("Content-Type", result.ContentType)
		w.Header().Set("Content-Disposition", `attachment; filename="`+result.Filename+`"`)
		http.ServeContent(w, r, result.Filename, job.UpdatedAt, f)
	}
}
