package models

import (
	"encoding/json"
	"slices"
)

// LikedSongsPlaylist is the synthetic playlist the backend returns alongside user playlists.
// Its contents are tracked by [LikedTrackSet] instead.
const LikedSongsPlaylist = "Liked Songs"

// LikedTrackSet is a set of liked tracks. The zero value is an empty set ready to use.
type LikedTrackSet struct {
	ids map[TrackID]struct{}
}

// NewLikedTrackSet builds a set from ids, dropping duplicates.
func NewLikedTrackSet(ids ...TrackID) LikedTrackSet {
	s := LikedTrackSet{ids: make(map[TrackID]struct{}, len(ids))}
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
	return s
}

func (s LikedTrackSet) Contains(id TrackID) bool {
	_, ok := s.ids[id]
	return ok
}

func (s LikedTrackSet) Len() int { return len(s.ids) }

// Add inserts id and reports whether the set changed.
func (s *LikedTrackSet) Add(id TrackID) bool {
	if s.Contains(id) {
		return false
	}
	if s.ids == nil {
		s.ids = make(map[TrackID]struct{})
	}
	s.ids[id] = struct{}{}
	return true
}

// Remove deletes id and reports whether the set changed.
func (s *LikedTrackSet) Remove(id TrackID) bool {
	if !s.Contains(id) {
		return false
	}
	delete(s.ids, id)
	return true
}

// IDs returns the members in ascending order.
func (s LikedTrackSet) IDs() []TrackID {
	ids := make([]TrackID, 0, len(s.ids))
	for id := range s.ids {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Clone returns an independent copy.
func (s LikedTrackSet) Clone() LikedTrackSet {
	return NewLikedTrackSet(s.IDs()...)
}

func (s LikedTrackSet) Equal(other LikedTrackSet) bool {
	if s.Len() != other.Len() {
		return false
	}
	for id := range s.ids {
		if !other.Contains(id) {
			return false
		}
	}
	return true
}

func (s LikedTrackSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.IDs())
}

func (s *LikedTrackSet) UnmarshalJSON(data []byte) error {
	var ids []TrackID
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	*s = NewLikedTrackSet(ids...)
	return nil
}

// Playlist is a named, ordered sequence of tracks.
type Playlist struct {
	ID       PlaylistID `json:"id"`
	Name     string     `json:"name"`
	TrackIDs []TrackID  `json:"track_ids"`
}

// UnmarshalJSON reads track_ids, or falls back to a tracks array of ids or {"id": ...} objects.
func (p *Playlist) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID       PlaylistID        `json:"id"`
		Name     string            `json:"name"`
		TrackIDs []TrackID         `json:"track_ids"`
		Tracks   []json.RawMessage `json:"tracks"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	p.ID, p.Name, p.TrackIDs = raw.ID, raw.Name, raw.TrackIDs
	if p.TrackIDs != nil || raw.Tracks == nil {
		return nil
	}

	p.TrackIDs = make([]TrackID, 0, len(raw.Tracks))
	for _, item := range raw.Tracks {
		var obj struct {
			ID TrackID `json:"id"`
		}
		if err := json.Unmarshal(item, &obj); err == nil {
			p.TrackIDs = append(p.TrackIDs, obj.ID)
			continue
		}
		var id TrackID
		if err := json.Unmarshal(item, &id); err != nil {
			return err
		}
		p.TrackIDs = append(p.TrackIDs, id)
	}
	return nil
}

// TrackCount returns the number of tracks.
func (p Playlist) TrackCount() int { return len(p.TrackIDs) }

// Contains reports whether the playlist includes track.
func (p Playlist) Contains(track TrackID) bool { return slices.Contains(p.TrackIDs, track) }

// PlaylistCollection maps playlist ids to playlists and remembers server order for listing.
// It is immutable once built; refreshes replace the whole collection.
type PlaylistCollection struct {
	order []PlaylistID
	byID  map[PlaylistID]Playlist
}

// NewPlaylistCollection builds a collection in the given order. Later duplicates of an id replace earlier ones in place.
func NewPlaylistCollection(playlists []Playlist) PlaylistCollection {
	c := PlaylistCollection{
		order: make([]PlaylistID, 0, len(playlists)),
		byID:  make(map[PlaylistID]Playlist, len(playlists)),
	}
	for _, pl := range playlists {
		if _, seen := c.byID[pl.ID]; !seen {
			c.order = append(c.order, pl.ID)
		}
		pl.TrackIDs = slices.Clone(pl.TrackIDs)
		c.byID[pl.ID] = pl
	}
	return c
}

func (c PlaylistCollection) Len() int { return len(c.order) }

func (c PlaylistCollection) Get(id PlaylistID) (Playlist, bool) {
	pl, ok := c.byID[id]
	if ok {
		pl.TrackIDs = slices.Clone(pl.TrackIDs)
	}
	return pl, ok
}

// List returns copies of the playlists in server order.
func (c PlaylistCollection) List() []Playlist {
	out := make([]Playlist, 0, len(c.order))
	for _, id := range c.order {
		pl, _ := c.Get(id)
		out = append(out, pl)
	}
	return out
}

// Equal compares ids, names and track order.
func (c PlaylistCollection) Equal(other PlaylistCollection) bool {
	if !slices.Equal(c.order, other.order) {
		return false
	}
	for _, id := range c.order {
		a, b := c.byID[id], other.byID[id]
		if a.Name != b.Name || !slices.Equal(a.TrackIDs, b.TrackIDs) {
			return false
		}
	}
	return true
}

func (c PlaylistCollection) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.List())
}
