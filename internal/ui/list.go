package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/musix/internal/formatter"
	"github.com/desertthunder/musix/internal/models"
	"github.com/desertthunder/musix/internal/services"
)

var (
	_ list.Item = playlistItem{}
	_ list.Item = resultItem{}
)

// playlistItem wraps [services.Playlist] to implement [list.Item].
type playlistItem struct {
	playlist services.Playlist
}

func (i playlistItem) FilterValue() string { return i.playlist.Name }
func (i playlistItem) Title() string       { return i.playlist.Name }
func (i playlistItem) Description() string {
	desc := fmt.Sprintf("%d tracks", i.playlist.TrackCount)
	if i.playlist.Owner != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.playlist.Owner)
	}
	return desc
}

// resultItem wraps [models.SearchResult] to implement [list.Item].
type resultItem struct {
	result models.SearchResult
}

func (i resultItem) FilterValue() string { return i.result.Title }
func (i resultItem) Title() string       { return i.result.Title }
func (i resultItem) Description() string {
	desc := i.result.ID
	if i.result.Channel != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.result.Channel)
	}
	if d := formatter.FormatDuration(i.result.Duration); d != "" {
		desc = fmt.Sprintf("%s • %s", desc, d)
	}
	return desc
}

// PlaylistItems wraps Spotify playlists for a [Picker].
func PlaylistItems(playlists []services.Playlist) []list.Item {
	items := make([]list.Item, len(playlists))
	for i, p := range playlists {
		items[i] = playlistItem{playlist: p}
	}
	return items
}

// ResultItems wraps search results for a [Picker].
func ResultItems(results []models.SearchResult) []list.Item {
	items := make([]list.Item, len(results))
	for i, r := range results {
		items[i] = resultItem{result: r}
	}
	return items
}

// ChosenPlaylist unwraps an item built by [PlaylistItems].
func ChosenPlaylist(item list.Item) (services.Playlist, bool) {
	p, ok := item.(playlistItem)
	return p.playlist, ok
}

// ChosenResult unwraps an item built by [ResultItems].
func ChosenResult(item list.Item) (models.SearchResult, bool) {
	r, ok := item.(resultItem)
	return r.result, ok
}
