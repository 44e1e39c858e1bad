package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/musix/internal/models"
	"github.com/desertthunder/musix/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgProgressUpdate MsgKind = iota
	MsgJobSnapshot
	MsgUpdatesClosed
)

// jobSnapshot is the payload of [MsgJobSnapshot].
type jobSnapshot struct {
	job models.Job
	err error
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// jobSnapshotMsg is the constructor for [MsgJobSnapshot]
func jobSnapshotMsg(job models.Job, err error) Msg {
	return Msg{kind: MsgJobSnapshot, data: jobSnapshot{job: job, err: err}}
}

// updatesClosedMsg is the constructor for [MsgUpdatesClosed]
func updatesClosedMsg() Msg {
	return Msg{kind: MsgUpdatesClosed}
}
