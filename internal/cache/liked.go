package cache

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/desertthunder/playsync/internal/bus"
	"github.com/desertthunder/playsync/internal/models"
)

// LikedTrackIDsPath lists the ids of the current user's liked tracks.
const LikedTrackIDsPath = "/api/music/user/liked_track_ids"

// LikedTracks mirrors the server's liked-track set.
type LikedTracks struct {
	c *collection[models.LikedTrackSet]
}

func NewLikedTracks(caller Caller, opts ...Option) *LikedTracks {
	o := newOptions(opts)
	return &LikedTracks{c: &collection[models.LikedTrackSet]{
		name:   "liked",
		topic:  bus.TopicLikedTracksChanged,
		empty:  func() models.LikedTrackSet { return models.NewLikedTrackSet() },
		equal:  func(a, b models.LikedTrackSet) bool { return a.Equal(b) },
		fetch:  func(ctx context.Context) (models.LikedTrackSet, error) { return fetchLiked(ctx, caller) },
		bus:    o.bus,
		logger: o.logger,
		data:   models.NewLikedTrackSet(),
	}}
}

func fetchLiked(ctx context.Context, caller Caller) (models.LikedTrackSet, error) {
	resp, err := caller.Call(ctx, http.MethodGet, LikedTrackIDsPath, nil, nil)
	if err != nil {
		return models.LikedTrackSet{}, err
	}

	var ids []models.TrackID
	if err := resp.Decode(&ids); err != nil {
		return models.LikedTrackSet{}, fmt.Errorf("liked tracks: %w", err)
	}
	return models.NewLikedTrackSet(ids...), nil
}

// SetIdentity switches the cache to user, clearing it if the identity changed.
func (l *LikedTracks) SetIdentity(user models.UserID) bool { return l.c.setIdentity(user) }

// Identity returns the user the cache currently belongs to.
func (l *LikedTracks) Identity() models.UserID { return l.c.identity() }

// Refresh replaces the set with the server's. On failure the previous set is kept.
func (l *LikedTracks) Refresh(ctx context.Context, user models.UserID) error {
	return l.c.refresh(ctx, user)
}

// Loaded reports whether a refresh has succeeded for the current identity.
func (l *LikedTracks) Loaded() bool { return l.c.isLoaded() }

func (l *LikedTracks) RefreshedAt() time.Time { return l.c.lastRefresh() }

// Snapshot returns a copy of the current set.
func (l *LikedTracks) Snapshot() models.LikedTrackSet {
	var out models.LikedTrackSet
	l.c.read(func(s models.LikedTrackSet) { out = s.Clone() })
	return out
}

func (l *LikedTracks) Contains(id models.TrackID) bool {
	var ok bool
	l.c.read(func(s models.LikedTrackSet) { ok = s.Contains(id) })
	return ok
}

// Apply sets the membership of track for user. It is ignored, and returns false, when user
// is not the current identity. Observers are notified when membership actually changed.
func (l *LikedTracks) Apply(user models.UserID, track models.TrackID, liked bool) bool {
	c := l.c
	c.mu.Lock()
	if !user.Valid() || c.user != user {
		c.mu.Unlock()
		return false
	}
	var changed bool
	if liked {
		changed = c.data.Add(track)
	} else {
		changed = c.data.Remove(track)
	}
	c.mu.Unlock()

	if changed {
		c.publish()
	}
	return true
}
