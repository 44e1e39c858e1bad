package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/musix/internal/models"
	"github.com/desertthunder/musix/internal/shared"
)

const downloadColumns = `id, sequence, job_id, profile_id, playlist, video_id, title, filename, status, error, created_at, updated_at, deleted_at`

// DownloadRepository implements models.Repository[*models.DownloadRecord] for the download history.
//
// Rows are append-mostly: one per settled track. Deletes are soft.
type DownloadRepository struct {
	db *sql.DB
}

// NewDownloadRepository creates a new DownloadRepository with the given database connection
func NewDownloadRepository(db *sql.DB) *DownloadRepository {
	return &DownloadRepository{db: db}
}

// Create inserts a new [models.DownloadRecord] with generated ID and sequence
func (r *DownloadRepository) Create(rec *models.DownloadRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "downloads")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	rec.SetID(id)
	rec.SetSequence(sequence)

	query := `
		INSERT INTO downloads (id, sequence, job_id, profile_id, playlist, video_id, title, filename, status, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	loc := rec.Location()
	_, err = r.db.Exec(query,
		id,
		sequence,
		rec.JobID(),
		loc.ProfileID,
		loc.Playlist,
		rec.VideoID(),
		rec.Title(),
		rec.Filename(),
		string(rec.Outcome()),
		rec.Error(),
		rec.CreatedAt(),
		rec.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert download: %w", err)
	}

	return nil
}

// Get retrieves a record by ID, excluding soft-deleted records
func (r *DownloadRepository) Get(id string) (*models.DownloadRecord, error) {
	query := `SELECT ` + downloadColumns + ` FROM downloads WHERE id = ? AND deleted_at IS NULL`
	return r.scanOne(r.db.QueryRow(query, id))
}

// Update rewrites the mutable fields of a record
func (r *DownloadRepository) Update(rec *models.DownloadRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now().UTC()
	rec.SetUpdatedAt(now)

	query := `
		UPDATE downloads
		SET title = ?, filename = ?, status = ?, error = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, rec.Title(), rec.Filename(), string(rec.Outcome()), rec.Error(), now, rec.ID())
	if err != nil {
		return fmt.Errorf("failed to update download: %w", err)
	}
	return expectOneRow(result, rec.ID())
}

// Delete soft-deletes a record by ID
func (r *DownloadRepository) Delete(id string) error {
	query := `
		UPDATE downloads
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to delete download: %w", err)
	}
	return expectOneRow(result, id)
}

// List retrieves records matching criteria in insertion order.
//
// Supported keys: "profile", "playlist", "status", "video_id" and "job_id", all strings.
func (r *DownloadRepository) List(criteria map[string]any) ([]*models.DownloadRecord, error) {
	query := `SELECT ` + downloadColumns + ` FROM downloads WHERE deleted_at IS NULL`
	where, args := downloadFilter(criteria)
	query += where + " ORDER BY sequence ASC"

	return r.query(query, args...)
}

// Recent returns up to limit records, newest first. An empty profileID spans every profile.
func (r *DownloadRepository) Recent(profileID string, limit int) ([]*models.DownloadRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + downloadColumns + ` FROM downloads WHERE deleted_at IS NULL`
	where, args := downloadFilter(map[string]any{"profile": profileID})
	query += where + " ORDER BY sequence DESC LIMIT ?"
	args = append(args, limit)

	return r.query(query, args...)
}

func (r *DownloadRepository) query(query string, args ...any) ([]*models.DownloadRecord, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query downloads: %w", err)
	}
	defer rows.Close()

	records := []*models.DownloadRecord{}
	for rows.Next() {
		rec, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return records, nil
}

func downloadFilter(criteria map[string]any) (string, []any) {
	columns := []struct{ key, column string }{
		{"profile", "profile_id"},
		{"playlist", "playlist"},
		{"status", "status"},
		{"video_id", "video_id"},
		{"job_id", "job_id"},
	}

	where := ""
	args := []any{}
	for _, c := range columns {
		if v, ok := criteria[c.key].(string); ok && v != "" {
			where += " AND " + c.column + " = ?"
			args = append(args, v)
		}
	}
	return where, args
}

// scanner is satisfied by both [sql.Row] and [sql.Rows].
type scanner interface {
	Scan(dest ...any) error
}

// scanOne scans a single [sql.Row] into a [models.DownloadRecord]
func (r *DownloadRepository) scanOne(row *sql.Row) (*models.DownloadRecord, error) {
	rec, err := scanDownload(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan download: %w", err)
	}
	return rec, nil
}

// scanRow scans a row from [sql.Rows] into a [models.DownloadRecord]
func (r *DownloadRepository) scanRow(rows *sql.Rows) (*models.DownloadRecord, error) {
	rec, err := scanDownload(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan download: %w", err)
	}
	return rec, nil
}

func scanDownload(s scanner) (*models.DownloadRecord, error) {
	var (
		id        string
		sequence  int
		jobID     string
		profileID string
		playlist  string
		videoID   string
		title     string
		filename  string
		status    string
		errText   string
		createdAt time.Time
		updatedAt time.Time
		deletedAt sql.NullTime
	)

	err := s.Scan(&id, &sequence, &jobID, &profileID, &playlist, &videoID, &title, &filename, &status, &errText, &createdAt, &updatedAt, &deletedAt)
	if err != nil {
		return nil, err
	}

	var deleted *time.Time
	if deletedAt.Valid {
		deleted = &deletedAt.Time
	}

	loc := models.PlaylistLocation{ProfileID: profileID, Playlist: playlist}
	return models.RestoreDownloadRecord(id, sequence, jobID, loc, videoID, title, filename,
		models.DownloadOutcome(status), errText, createdAt, updatedAt, deleted), nil
}

func expectOneRow(result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrRecordNotFound, id)
	}
	return nil
}

// HistoryRecorder persists settled tracks through a [DownloadRepository].
type HistoryRecorder struct {
	repo *DownloadRepository
}

// NewHistoryRecorder creates a new HistoryRecorder.
func NewHistoryRecorder(repo *DownloadRepository) *HistoryRecorder {
	return &HistoryRecorder{repo: repo}
}

// Record stores rec unless ctx is already done.
func (h *HistoryRecorder) Record(ctx context.Context, rec *models.DownloadRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return h.repo.Create(rec)
}
