// Package ui implements the terminal views used by the CLI with bubbletea's Elm architecture.
//
// Two models are provided:
//  1. [ProgressModel] : follows a job in the registry until it settles, with a progress bar and per-track events
//  2. [Picker] : a filterable list for choosing a Spotify playlist or a search result
//
// [ProgressModel] polls the job registry for the authoritative snapshot and listens on the engine's
// progress channel for intermediate events, both delivered through the Msg union type.
// Pressing c (or ctrl+c) cancels the job instead of abandoning it.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, /, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
