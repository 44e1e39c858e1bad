// package models defines the data model for the musix download service
package models

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Model defines the base interface for all persistent models.
type Model interface {
	ID() string           // ID returns the unique identifier for this model
	CreatedAt() time.Time // CreatedAt returns when this model was created
	UpdatedAt() time.Time // UpdatedAt returns when this model was last updated
	Validate() error      // Validate checks if the model's data is valid and returns an error if not
}

// Repository defines the interface for data access operations.
// Implementations handle database interactions for specific model types.
type Repository[T Model] interface {
	Create(model T) error                      // Create inserts a new model into the database
	Get(id string) (T, error)                  // Get retrieves a model by its ID
	Update(model T) error                      // Update modifies an existing model in the database
	Delete(id string) error                    // Delete removes a model from the database by its ID
	List(criteria map[string]any) ([]T, error) // List retrieves all models matching the given criteria
}

// JobStatus is the lifecycle state of a [Job].
type JobStatus string

const (
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobError   JobStatus = "error"
)

// IsSettled reports whether the job has stopped changing.
func (s JobStatus) IsSettled() bool {
	return s == JobDone || s == JobError
}

// Failure names one item of a batch that could not be completed.
type Failure struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Job is a snapshot of one download or import operation, as returned to pollers.
type Job struct {
	Status  JobStatus `json:"status"`
	Percent int       `json:"percent"`
	Message string    `json:"message"`
	Failed  []Failure `json:"failed"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
	SettledAt time.Time `json:"-"`
}

// TrackDescriptor identifies a remote audio source to fetch.
type TrackDescriptor struct {
	VideoID   string `json:"videoId"`
	Title     string `json:"title,omitempty"`
	SourceURL string `json:"sourceUrl,omitempty"`
}

// WatchURLPrefix builds canonical source URLs from video ids.
const WatchURLPrefix = "https://www.youtube.com/watch?v="

// NewTrackDescriptor returns a descriptor whose SourceURL is derived from videoID.
func NewTrackDescriptor(videoID, title string) TrackDescriptor {
	return TrackDescriptor{VideoID: videoID, Title: title, SourceURL: CanonicalURL(videoID)}
}

// URL returns SourceURL, or the canonical watch URL when it is unset.
func (t TrackDescriptor) URL() string {
	if t.SourceURL != "" {
		return t.SourceURL
	}
	return CanonicalURL(t.VideoID)
}

// CanonicalURL returns the watch URL for videoID.
func CanonicalURL(videoID string) string {
	return WatchURLPrefix + url.QueryEscape(videoID)
}

// PlaylistLocation identifies the directory downloads land in.
//
// Both fields are expected to be sanitized already; see library.Locate.
type PlaylistLocation struct {
	ProfileID string `json:"profileId"`
	Playlist  string `json:"playlist"`
}

func (l PlaylistLocation) String() string {
	return l.ProfileID + "/" + l.Playlist
}

// DownloadedTrack is a track reconstructed from a file in a playlist directory.
type DownloadedTrack struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Filename string `json:"filename"`
	FileURL  string `json:"fileUrl"`
}

// PlaylistSummary is a playlist directory with its MP3 count.
type PlaylistSummary struct {
	Name       string `json:"name"`
	TrackCount int    `json:"trackCount"`
}

// Profile is the contents of a profile's profile.json.
type Profile struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"displayName"`
	Avatar      string    `json:"avatar,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// SearchResult is one entry of a search or playlist preview.
type SearchResult struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	URL      string  `json:"url"`
	Channel  string  `json:"channel,omitempty"`
	Duration float64 `json:"duration,omitempty"`
}

// SourceTrack is a track listed by an external catalogue such as Spotify.
type SourceTrack struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	Album      string `json:"album,omitempty"`
	DurationMs int    `json:"durationMs,omitempty"`
}

// Query is the search expression used to find the track on YouTube.
func (t SourceTrack) Query() string {
	if t.Artist == "" {
		return t.Title
	}
	return t.Artist + " - " + t.Title
}

// DownloadOutcome records whether a track made it to disk.
type DownloadOutcome string

const (
	OutcomeSucceeded DownloadOutcome = "succeeded"
	OutcomeFailed    DownloadOutcome = "failed"
)

// DownloadRecord is the persisted history entry for one settled track.
//
// The history is an audit trail only. Playlist contents always come from disk.
type DownloadRecord struct {
	id        string
	sequence  int
	jobID     string
	location  PlaylistLocation
	videoID   string
	title     string
	filename  string
	outcome   DownloadOutcome
	errText   string
	createdAt time.Time
	updatedAt time.Time
	deletedAt *time.Time
}

// NewDownloadRecord builds an unsaved record. err may be nil for successful downloads.
func NewDownloadRecord(jobID string, loc PlaylistLocation, track TrackDescriptor, filename string, err error) *DownloadRecord {
	now := time.Now().UTC()
	r := &DownloadRecord{
		jobID:     jobID,
		location:  loc,
		videoID:   track.VideoID,
		title:     track.Title,
		filename:  filename,
		outcome:   OutcomeSucceeded,
		createdAt: now,
		updatedAt: now,
	}
	if err != nil {
		r.outcome = OutcomeFailed
		r.errText = err.Error()
	}
	return r
}

// RestoreDownloadRecord rebuilds a record read from storage.
func RestoreDownloadRecord(id string, sequence int, jobID string, loc PlaylistLocation, videoID, title, filename string,
	outcome DownloadOutcome, errText string, createdAt, updatedAt time.Time, deletedAt *time.Time,
) *DownloadRecord {
	return &DownloadRecord{
		id: id, sequence: sequence, jobID: jobID, location: loc, videoID: videoID, title: title,
		filename: filename, outcome: outcome, errText: errText,
		createdAt: createdAt, updatedAt: updatedAt, deletedAt: deletedAt,
	}
}

func (r *DownloadRecord) ID() string                 { return r.id }
func (r *DownloadRecord) Sequence() int              { return r.sequence }
func (r *DownloadRecord) JobID() string              { return r.jobID }
func (r *DownloadRecord) Location() PlaylistLocation { return r.location }
func (r *DownloadRecord) VideoID() string            { return r.videoID }
func (r *DownloadRecord) Title() string              { return r.title }
func (r *DownloadRecord) Filename() string           { return r.filename }
func (r *DownloadRecord) Outcome() DownloadOutcome   { return r.outcome }
func (r *DownloadRecord) Error() string              { return r.errText }
func (r *DownloadRecord) CreatedAt() time.Time       { return r.createdAt }
func (r *DownloadRecord) UpdatedAt() time.Time       { return r.updatedAt }
func (r *DownloadRecord) DeletedAt() *time.Time      { return r.deletedAt }

func (r *DownloadRecord) SetID(id string)              { r.id = id }
func (r *DownloadRecord) SetSequence(n int)            { r.sequence = n }
func (r *DownloadRecord) SetTitle(title string)        { r.title = title }
func (r *DownloadRecord) SetFilename(name string)      { r.filename = name }
func (r *DownloadRecord) SetUpdatedAt(t time.Time)     { r.updatedAt = t }
func (r *DownloadRecord) SetOutcome(o DownloadOutcome) { r.outcome = o }

// Validate checks required fields.
func (r *DownloadRecord) Validate() error {
	switch {
	case strings.TrimSpace(r.videoID) == "":
		return fmt.Errorf("video id is required")
	case r.location.ProfileID == "" || r.location.Playlist == "":
		return fmt.Errorf("profile and playlist are required")
	case r.outcome != OutcomeSucceeded && r.outcome != OutcomeFailed:
		return fmt.Errorf("invalid outcome %q", r.outcome)
	}
	return nil
}

// DownloadRecordView is the JSON shape of a [DownloadRecord].
type DownloadRecordView struct {
	ID        string          `json:"id"`
	JobID     string          `json:"jobId"`
	ProfileID string          `json:"profileId"`
	Playlist  string          `json:"playlist"`
	VideoID   string          `json:"videoId"`
	Title     string          `json:"title"`
	Filename  string          `json:"filename,omitempty"`
	Outcome   DownloadOutcome `json:"outcome"`
	Error     string          `json:"error,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// View converts the record for encoding.
func (r *DownloadRecord) View() DownloadRecordView {
	return DownloadRecordView{
		ID:        r.id,
		JobID:     r.jobID,
		ProfileID: r.location.ProfileID,
		Playlist:  r.location.Playlist,
		VideoID:   r.videoID,
		Title:     r.title,
		Filename:  r.filename,
		Outcome:   r.outcome,
		Error:     r.errText,
		CreatedAt: r.createdAt,
	}
}
