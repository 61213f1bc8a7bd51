package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/playsync/internal/playback"
	"github.com/desertthunder/playsync/internal/settings"
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
	MsgLikedChanged MsgKind = iota
	MsgPlaylistsChanged
	MsgRefreshed
	MsgToggled
	MsgTrackAdded
	MsgSettingsFetched
)

// likedChangedMsg is the constructor for [MsgLikedChanged]
func likedChangedMsg() Msg { return Msg{kind: MsgLikedChanged} }

// playlistsChangedMsg is the constructor for [MsgPlaylistsChanged]
func playlistsChangedMsg() Msg { return Msg{kind: MsgPlaylistsChanged} }

// refreshedMsg is the constructor for [MsgRefreshed]
func refreshedMsg(err error) Msg { return Msg{kind: MsgRefreshed, data: err} }

// toggledMsg is the constructor for [MsgToggled]
func toggledMsg(result playback.ToggleResult, err error) Msg {
	return Msg{
		kind: MsgToggled,
		data: struct {
			result playback.ToggleResult
			err    error
		}{result, err},
	}
}

// trackAddedMsg is the constructor for [MsgTrackAdded]
func trackAddedMsg(playlist string, err error) Msg {
	return Msg{
		kind: MsgTrackAdded,
		data: struct {
			playlist string
			err      error
		}{playlist, err},
	}
}

// settingsFetchedMsg is the constructor for [MsgSettingsFetched]
func settingsFetchedMsg(results []settings.SectionResult) Msg {
	return Msg{kind: MsgSettingsFetched, data: results}
}
