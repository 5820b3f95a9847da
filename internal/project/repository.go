package project

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cutbench/cutbench-agent/internal/overlay"
)

type Repository interface {
	CreateProject(ctx context.Context, p *Project) error
	GetProject(ctx context.Context, id string) (*Project, error)
	ListProjects(ctx context.Context) ([]*Project, error)
	RenameProject(ctx context.Context, id, name string) error
	TouchProject(ctx context.Context, id string) error
	DeleteProject(ctx context.Context, id string) error
	CountProjects(ctx context.Context) (int, error)

	CreateVideo(ctx context.Context, v *SourceVideo) error
	GetVideo(ctx context.Context, id string) (*SourceVideo, error)
	GetVideoByPath(ctx context.Context, projectID, path string) (*SourceVideo, error)
	ListVideos(ctx context.Context, projectID string) ([]*SourceVideo, error)
	DeleteVideo(ctx context.Context, id string) error
	CountVideos(ctx context.Context) (int, error)

	SaveTimeline(ctx context.Context, projectID string, document []byte) error
	GetTimeline(ctx context.Context, projectID string) ([]byte, error)
	DeleteTimeline(ctx context.Context, projectID string) error

	SaveOverlays(ctx context.Context, projectID string, items []overlay.Item) error
	ListOverlays(ctx context.Context, projectID string) ([]overlay.Item, error)

	SaveInsights(ctx context.Context, projectID string, document []byte) error
	GetInsights(ctx context.Context, projectID string) ([]byte, error)
	DeleteInsights(ctx context.Context, projectID string) error

	SaveSuggestionStatuses(ctx context.Context, projectID string, statuses map[string]string) error
	GetSuggestionStatuses(ctx context.Context, projectID string) (map[string]string, error)

	CreateJob(ctx context.Context, j *Job) error
	GetJob(ctx context.Context, id string) (*Job, error)
	ListJobs(ctx context.Context, projectID string, limit int) ([]*Job, error)
	ListQueuedJobs(ctx context.Context) ([]*Job, error)
	CountActiveJobs(ctx context.Context) (int, error)
	UpdateJobStatus(ctx context.Context, id, status, errorMsg string) error
	UpdateJobProgress(ctx context.Context, id string, progress int) error
	SetJobResult(ctx context.Context, id string, result []byte) error

	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) CreateProject(ctx context.Context, p *Project) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO projects (id, name, created_at, updated_at)
		VALUES (?, ?, ?, ?)
	`, p.ID, p.Name, p.CreatedAt.Format(time.RFC3339), p.UpdatedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) GetProject(ctx context.Context, id string) (*Project, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, created_at, updated_at FROM projects WHERE id = ?
	`, id)

	var p Project
	var createdAt, updatedAt string
	err := row.Scan(&p.ID, &p.Name, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	p.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &p, nil
}

func (r *SQLiteRepository) ListProjects(ctx context.Context) ([]*Project, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, created_at, updated_at FROM projects ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []*Project
	for rows.Next() {
		var p Project
		var createdAt, updatedAt string
		if err := rows.Scan(&p.ID, &p.Name, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		p.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		projects = append(projects, &p)
	}
	return projects, rows.Err()
}

func (r *SQLiteRepository) RenameProject(ctx context.Context, id, name string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE projects SET name = ?, updated_at = ? WHERE id = ?
	`, name, time.Now().UTC().Format(time.RFC3339), id)
	return err
}

func (r *SQLiteRepository) TouchProject(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE projects SET updated_at = ? WHERE id = ?
	`, time.Now().UTC().Format(time.RFC3339), id)
	return err
}

func (r *SQLiteRepository) DeleteProject(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM projects WHERE id = ?", id)
	return err
}

func (r *SQLiteRepository) CountProjects(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM projects").Scan(&count)
	return count, err
}

func (r *SQLiteRepository) CreateVideo(ctx context.Context, v *SourceVideo) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO source_videos (id, project_id, filename, path, duration_sec, width, height, fps, has_audio, size_bytes, imported_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, v.ID, v.ProjectID, v.Filename, v.Path, v.Duration, v.Width, v.Height,
		v.FrameRate, boolToInt(v.HasAudio), v.SizeBytes, v.ImportedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) GetVideo(ctx context.Context, id string) (*SourceVideo, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, project_id, filename, path, duration_sec, width, height, fps, has_audio, size_bytes, imported_at
		FROM source_videos WHERE id = ?
	`, id)
	return r.scanVideo(row)
}

func (r *SQLiteRepository) GetVideoByPath(ctx context.Context, projectID, path string) (*SourceVideo, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, project_id, filename, path, duration_sec, width, height, fps, has_audio, size_bytes, imported_at
		FROM source_videos WHERE project_id = ? AND path = ?
	`, projectID, path)
	return r.scanVideo(row)
}

func (r *SQLiteRepository) scanVideo(row *sql.Row) (*SourceVideo, error) {
	var v SourceVideo
	var hasAudio int
	var importedAt string

	err := row.Scan(&v.ID, &v.ProjectID, &v.Filename, &v.Path, &v.Duration,
		&v.Width, &v.Height, &v.FrameRate, &hasAudio, &v.SizeBytes, &importedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	v.HasAudio = hasAudio == 1
	v.ImportedAt, _ = time.Parse(time.RFC3339, importedAt)
	return &v, nil
}

func (r *SQLiteRepository) ListVideos(ctx context.Context, projectID string) ([]*SourceVideo, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, project_id, filename, path, duration_sec, width, height, fps, has_audio, size_bytes, imported_at
		FROM source_videos WHERE project_id = ? ORDER BY imported_at ASC
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var videos []*SourceVideo
	for rows.Next() {
		var v SourceVideo
		var hasAudio int
		var importedAt string
		if err := rows.Scan(&v.ID, &v.ProjectID, &v.Filename, &v.Path, &v.Duration,
			&v.Width, &v.Height, &v.FrameRate, &hasAudio, &v.SizeBytes, &importedAt); err != nil {
			return nil, err
		}
		v.HasAudio = hasAudio == 1
		v.ImportedAt, _ = time.Parse(time.RFC3339, importedAt)
		videos = append(videos, &v)
	}
	return videos, rows.Err()
}

func (r *SQLiteRepository) DeleteVideo(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM source_videos WHERE id = ?", id)
	return err
}

func (r *SQLiteRepository) CountVideos(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM source_videos").Scan(&count)
	return count, err
}

func (r *SQLiteRepository) SaveTimeline(ctx context.Context, projectID string, document []byte) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO timelines (project_id, document, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(project_id) DO UPDATE SET
			document = excluded.document,
			updated_at = excluded.updated_at
	`, projectID, string(document), time.Now().UTC().Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) GetTimeline(ctx context.Context, projectID string) ([]byte, error) {
	var document string
	err := r.db.QueryRowContext(ctx,
		"SELECT document FROM timelines WHERE project_id = ?", projectID).Scan(&document)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []byte(document), nil
}

func (r *SQLiteRepository) DeleteTimeline(ctx context.Context, projectID string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM timelines WHERE project_id = ?", projectID)
	return err
}

// SaveOverlays replaces the project's persisted overlay set wholesale.
// Items are stored marshaled so schema changes in the overlay package do
// not require a migration.
func (r *SQLiteRepository) SaveOverlays(ctx context.Context, projectID string, items []overlay.Item) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM overlays WHERE project_id = ?", projectID); err != nil {
		return err
	}
	for i, item := range items {
		doc, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("marshal overlay %s: %w", item.ID, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO overlays (id, project_id, kind, item, sort_order) VALUES (?, ?, ?, ?, ?)
		`, item.ID, projectID, item.Kind, string(doc), i); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *SQLiteRepository) ListOverlays(ctx context.Context, projectID string) ([]overlay.Item, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT item FROM overlays WHERE project_id = ? ORDER BY sort_order ASC
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []overlay.Item
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var item overlay.Item
		if err := json.Unmarshal([]byte(doc), &item); err != nil {
			return nil, fmt.Errorf("unmarshal overlay: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *SQLiteRepository) SaveInsights(ctx context.Context, projectID string, document []byte) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO insights (project_id, document, received_at) VALUES (?, ?, ?)
		ON CONFLICT(project_id) DO UPDATE SET
			document = excluded.document,
			received_at = excluded.received_at
	`, projectID, document, time.Now().UTC().Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) GetInsights(ctx context.Context, projectID string) ([]byte, error) {
	var document []byte
	err := r.db.QueryRowContext(ctx,
		"SELECT document FROM insights WHERE project_id = ?", projectID).Scan(&document)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return document, nil
}

func (r *SQLiteRepository) DeleteInsights(ctx context.Context, projectID string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM insights WHERE project_id = ?", projectID)
	return err
}

func (r *SQLiteRepository) SaveSuggestionStatuses(ctx context.Context, projectID string, statuses map[string]string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM suggestion_status WHERE project_id = ?", projectID); err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339)
	for id, status := range statuses {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO suggestion_status (project_id, suggestion_id, status, updated_at)
			VALUES (?, ?, ?, ?)
		`, projectID, id, status, now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *SQLiteRepository) GetSuggestionStatuses(ctx context.Context, projectID string) (map[string]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT suggestion_id, status FROM suggestion_status WHERE project_id = ?
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	statuses := make(map[string]string)
	for rows.Next() {
		var id, status string
		if err := rows.Scan(&id, &status); err != nil {
			return nil, err
		}
		statuses[id] = status
	}
	return statuses, rows.Err()
}

func (r *SQLiteRepository) CreateJob(ctx context.Context, j *Job) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO jobs (id, project_id, type, status, progress, payload, result, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, j.ID, j.ProjectID, j.Type, j.Status, j.Progress,
		nullString(string(j.Payload)), nullString(string(j.Result)), nullString(j.Error),
		j.CreatedAt.Format(time.RFC3339), j.UpdatedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) GetJob(ctx context.Context, id string) (*Job, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, project_id, type, status, progress, payload, result, error, created_at, updated_at
		FROM jobs WHERE id = ?
	`, id)
	return r.scanJob(row)
}

func (r *SQLiteRepository) scanJob(row *sql.Row) (*Job, error) {
	var j Job
	var payload, result, errMsg sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(&j.ID, &j.ProjectID, &j.Type, &j.Status, &j.Progress, &payload, &result, &errMsg, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if payload.Valid {
		j.Payload = json.RawMessage(payload.String)
	}
	if result.Valid {
		j.Result = json.RawMessage(result.String)
	}
	j.Error = errMsg.String
	j.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	j.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &j, nil
}

func (r *SQLiteRepository) ListJobs(ctx context.Context, projectID string, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, project_id, type, status, progress, payload, result, error, created_at, updated_at
		FROM jobs WHERE project_id = ? ORDER BY created_at DESC LIMIT ?
	`, projectID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanJobs(rows)
}

func (r *SQLiteRepository) ListQueuedJobs(ctx context.Context) ([]*Job, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, project_id, type, status, progress, payload, result, error, created_at, updated_at
		FROM jobs WHERE status = 'queued' ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanJobs(rows)
}

func (r *SQLiteRepository) scanJobs(rows *sql.Rows) ([]*Job, error) {
	var jobs []*Job
	for rows.Next() {
		var j Job
		var payload, result, errMsg sql.NullString
		var createdAt, updatedAt string

		if err := rows.Scan(&j.ID, &j.ProjectID, &j.Type, &j.Status, &j.Progress, &payload, &result, &errMsg, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		if payload.Valid {
			j.Payload = json.RawMessage(payload.String)
		}
		if result.Valid {
			j.Result = json.RawMessage(result.String)
		}
		j.Error = errMsg.String
		j.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		j.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		jobs = append(jobs, &j)
	}
	return jobs, rows.Err()
}

func (r *SQLiteRepository) CountActiveJobs(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM jobs WHERE status IN ('queued', 'running')").Scan(&count)
	return count, err
}

func (r *SQLiteRepository) UpdateJobStatus(ctx context.Context, id, status, errorMsg string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET status = ?, error = ?, updated_at = datetime('now') WHERE id = ?
	`, status, nullString(errorMsg), id)
	return err
}

func (r *SQLiteRepository) UpdateJobProgress(ctx context.Context, id string, progress int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET progress = ?, updated_at = datetime('now') WHERE id = ?
	`, progress, id)
	return err
}

func (r *SQLiteRepository) SetJobResult(ctx context.Context, id string, result []byte) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET result = ?, updated_at = datetime('now') WHERE id = ?
	`, nullString(string(result)), id)
	return err
}

func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
