package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/playsync/internal/models"
)

var (
	_ list.Item = playlistItem{}
	_ list.Item = trackItem{}
)

// playlistItem wraps [models.Playlist] to implement [list.Item].
type playlistItem struct {
	playlist models.Playlist
}

func (i playlistItem) FilterValue() string { return i.playlist.Name }
func (i playlistItem) Title() string       { return i.playlist.Name }
func (i playlistItem) Description() string {
	return fmt.Sprintf("%d tracks • %s", i.playlist.TrackCount(), i.playlist.ID)
}

// trackItem wraps a [models.TrackID] with its liked state to implement [list.Item].
type trackItem struct {
	id      models.TrackID
	liked   bool
	playing bool
}

func (i trackItem) FilterValue() string { return i.id.String() }
func (i trackItem) Title() string {
	title := i.id.String()
	if i.liked {
		title = "♥ " + title
	}
	return title
}
func (i trackItem) Description() string {
	if i.playing {
		return "now playing"
	}
	return ""
}

func playlistItems(playlists []models.Playlist) []list.Item {
	items := make([]list.Item, len(playlists))
	for i, pl := range playlists {
		items[i] = playlistItem{playlist: pl}
	}
	return items
}

// trackItems marks every id with its membership in liked and whether it is the current selection.
func trackItems(ids []models.TrackID, liked models.LikedTrackSet, current models.TrackID) []list.Item {
	items := make([]list.Item, len(ids))
	for i, id := range ids {
		items[i] = trackItem{id: id, liked: liked.Contains(id), playing: id == current}
	}
	return items
}
