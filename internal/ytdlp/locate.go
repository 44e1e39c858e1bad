package ytdlp

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/desertthunder/musix/internal/shared"
)

// BinaryName is the executable looked up on $PATH.
const BinaryName = "yt-dlp"

// Availability is the outcome of looking for yt-dlp. The zero value is unavailable.
type Availability struct {
	path   string
	reason string
}

// Locate checks candidates in order, then $PATH.
//
// Candidates must be regular, executable files; directories and unreadable entries are skipped.
func Locate(candidates []string) Availability {
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if isExecutable(c) {
			if abs, err := filepath.Abs(c); err == nil {
				c = abs
			}
			return Availability{path: c}
		}
	}

	if p, err := exec.LookPath(BinaryName); err == nil {
		return Availability{path: p}
	}

	return Availability{reason: fmt.Sprintf("checked %v and $PATH", candidates)}
}

// Available returns an [Availability] for a known path without probing.
func Available(path string) Availability {
	return Availability{path: path}
}

// Unavailable returns an [Availability] that fails every call with reason.
func Unavailable(reason string) Availability {
	return Availability{reason: reason}
}

func (a Availability) Available() bool { return a.path != "" }

// Path returns the resolved binary, or [shared.ErrToolNotFound].
func (a Availability) Path() (string, error) {
	if a.path == "" {
		if a.reason == "" {
			return "", shared.ErrToolNotFound
		}
		return "", fmt.Errorf("%w: %s", shared.ErrToolNotFound, a.reason)
	}
	return a.path, nil
}

func (a Availability) String() string {
	if a.path == "" {
		return "unavailable"
	}
	return a.path
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	return info.Mode().Perm()&0111 != 0 || filepath.Ext(path) == ".exe"
}

// DependencyReport summarizes the external binaries the pipeline needs.
type DependencyReport struct {
	YtdlpFound  bool   `json:"yt_dlp_found"`
	YtdlpPath   string `json:"yt_dlp_path,omitempty"`
	FFmpegFound bool   `json:"ffmpeg_found"`
	FFmpegPath  string `json:"ffmpeg_path,omitempty"`
}

// Doctor reports on yt-dlp and ffmpeg. ffmpegLocation, when set, is checked instead of $PATH.
func Doctor(a Availability, ffmpegLocation string) DependencyReport {
	report := DependencyReport{YtdlpFound: a.Available(), YtdlpPath: a.path}

	if ffmpegLocation != "" {
		if _, err := os.Stat(ffmpegLocation); err == nil {
			report.FFmpegFound = true
			report.FFmpegPath = ffmpegLocation
		}
		return report
	}

	if p, err := exec.LookPath("ffmpeg"); err == nil {
		report.FFmpegFound = true
		report.FFmpegPath = p
	}
	return report
}
