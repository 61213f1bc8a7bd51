// package playback owns the currently selected track and the user actions taken on it.
//
// Liking is optimistic: the local liked set flips before the request is sent, and is
// restored if the request fails. Adding to a playlist is a plain forward call followed
// by a playlist-updated signal on the bus.
package playback

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/playsync/internal/bus"
	"github.com/desertthunder/playsync/internal/cache"
	"github.com/desertthunder/playsync/internal/models"
	"github.com/desertthunder/playsync/internal/shared"
)

const (
	LikedTrackPath    = "/api/music/user/liked_track"
	AddToPlaylistPath = "/api/music/user/add_track_to_playlist"
	trackIDQueryParam = "track_id"
)

// NowPlaying is the selected track. The zero value has nothing selected.
type NowPlaying struct {
	mu    sync.RWMutex
	track models.TrackID
}

func (n *NowPlaying) Select(id models.TrackID) {
	n.mu.Lock()
	n.track = id
	n.mu.Unlock()
}

func (n *NowPlaying) Clear() { n.Select("") }

// Current returns the selected track and whether there is one.
func (n *NowPlaying) Current() (models.TrackID, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.track, n.track != ""
}

// Status is the outcome of a toggle.
type Status int

const (
	StatusApplied    Status = iota // server accepted the change
	StatusRolledBack               // server rejected it, local membership restored
	StatusNoTrack                  // nothing selected, no request sent
	StatusNoIdentity               // no resolved user, no request sent
	StatusBusy                     // a toggle for the same track is still in flight
	StatusStale                    // identity changed while the request was in flight
)

func (s Status) String() string {
	switch s {
	case StatusApplied:
		return "applied"
	case StatusRolledBack:
		return "rolled back"
	case StatusNoTrack:
		return "no track selected"
	case StatusNoIdentity:
		return "not signed in"
	case StatusBusy:
		return "busy"
	case StatusStale:
		return "stale"
	default:
		return "unknown"
	}
}

// ToggleResult reports what a toggle did.
type ToggleResult struct {
	Status Status
	Track  models.TrackID
	Liked  bool // membership after the toggle settled
}

// IdentityFunc returns the current user, or "" when signed out.
type IdentityFunc func() models.UserID

// Controller performs track actions against the backend.
type Controller struct {
	caller   cache.Caller
	liked    *cache.LikedTracks
	bus      *bus.Bus
	identity IdentityFunc
	now      *NowPlaying
	logger   *log.Logger

	mu       sync.Mutex
	inFlight map[models.TrackID]struct{}
}

type Option func(*Controller)

func WithLogger(l *log.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithNowPlaying shares an existing selection instead of a private one.
func WithNowPlaying(n *NowPlaying) Option {
	return func(c *Controller) {
		if n != nil {
			c.now = n
		}
	}
}

func NewController(caller cache.Caller, liked *cache.LikedTracks, b *bus.Bus, identity IdentityFunc, opts ...Option) *Controller {
	c := &Controller{
		caller:   caller,
		liked:    liked,
		bus:      b,
		identity: identity,
		now:      &NowPlaying{},
		logger:   shared.NopLogger(),
		inFlight: make(map[models.TrackID]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NowPlaying returns the selection the controller acts on.
func (c *Controller) NowPlaying() *NowPlaying { return c.now }

// ToggleLike toggles the selected track.
func (c *Controller) ToggleLike(ctx context.Context) (ToggleResult, error) {
	track, ok := c.now.Current()
	if !ok {
		return ToggleResult{Status: StatusNoTrack}, nil
	}
	return c.ToggleLikeTrack(ctx, track)
}

// ToggleLikeTrack likes track if it is not liked and unlikes it otherwise.
//
// The local set is flipped before the request is sent. When the request fails the previous
// membership is restored, and the result carries the gateway failure.
func (c *Controller) ToggleLikeTrack(ctx context.Context, track models.TrackID) (ToggleResult, error) {
	user := c.identity()
	switch {
	case !user.Valid():
		return ToggleResult{Status: StatusNoIdentity, Track: track}, nil
	case track == "":
		return ToggleResult{Status: StatusNoTrack}, nil
	}

	if !c.acquire(track) {
		return ToggleResult{Status: StatusBusy, Track: track, Liked: c.liked.Contains(track)}, nil
	}
	defer c.release(track)

	wasLiked := c.liked.Contains(track)
	if !c.liked.Apply(user, track, !wasLiked) {
		return ToggleResult{Status: StatusStale, Track: track}, nil
	}

	method := http.MethodPost
	if wasLiked {
		method = http.MethodDelete
	}
	logger := c.logger.With("track", track, "method", method)

	_, err := c.caller.Call(ctx, method, LikedTrackPath, nil, url.Values{trackIDQueryParam: {string(track)}})
	if err == nil {
		logger.Debug("like toggled", "liked", !wasLiked)
		if c.identity() != user {
			return ToggleResult{Status: StatusStale, Track: track}, nil
		}
		return ToggleResult{Status: StatusApplied, Track: track, Liked: !wasLiked}, nil
	}

	if !c.liked.Apply(user, track, wasLiked) {
		logger.Debug("identity changed during toggle", "err", err)
		return ToggleResult{Status: StatusStale, Track: track}, err
	}
	logger.Warn("like toggle rolled back", "err", err)
	return ToggleResult{Status: StatusRolledBack, Track: track, Liked: wasLiked}, err
}

func (c *Controller) acquire(track models.TrackID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.inFlight[track]; busy {
		return false
	}
	c.inFlight[track] = struct{}{}
	return true
}

func (c *Controller) release(track models.TrackID) {
	c.mu.Lock()
	delete(c.inFlight, track)
	c.mu.Unlock()
}

type addToPlaylistRequest struct {
	TrackID    models.TrackID    `json:"track_id"`
	PlaylistID models.PlaylistID `json:"playlist_id"`
}

// AddTrackToPlaylist adds track to playlist and, on success, publishes playlist-updated so every
// subscribed playlist cache refreshes.
func (c *Controller) AddTrackToPlaylist(ctx context.Context, track models.TrackID, playlist models.PlaylistID) error {
	if !c.identity().Valid() {
		return shared.ErrNotAuthenticated
	}
	if track == "" || playlist == "" {
		return fmt.Errorf("%w: track and playlist are required", shared.ErrMissingArgument)
	}

	body := addToPlaylistRequest{TrackID: track, PlaylistID: playlist}
	if _, err := c.caller.Call(ctx, http.MethodPost, AddToPlaylistPath, body, nil); err != nil {
		c.logger.Warn("add to playlist failed", "track", track, "playlist", playlist, "err", err)
		return err
	}

	n := c.bus.Publish(bus.TopicPlaylistUpdated)
	c.logger.Debug("track added to playlist", "track", track, "playlist", playlist, "notified", n)
	return nil
}
