package playback

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/desertthunder/playsync/internal/bus"
	"github.com/desertthunder/playsync/internal/cache"
	"github.com/desertthunder/playsync/internal/gateway"
	"github.com/desertthunder/playsync/internal/models"
	"github.com/desertthunder/playsync/internal/shared"
	tu "github.com/desertthunder/playsync/internal/testing"
	"golang.org/x/oauth2"
)

type fixture struct {
	backend    *tu.Backend
	gateway    *gateway.Gateway
	bus        *bus.Bus
	liked      *cache.LikedTracks
	controller *Controller

	mu   sync.Mutex
	user models.UserID
}

func (f *fixture) identity() models.UserID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.user
}

func (f *fixture) setUser(u models.UserID) {
	f.mu.Lock()
	f.user = u
	f.mu.Unlock()
	f.liked.SetIdentity(u)
}

func newFixture(t *testing.T, user string) *fixture {
	t.Helper()
	backend := tu.NewBackend(t)
	token := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: backend.Token(t, user)})
	gw := gateway.NewGateway(backend.URL(), nil, gateway.WithCredentials(token))
	b := bus.New(nil)

	f := &fixture{backend: backend, gateway: gw, bus: b}
	f.liked = cache.NewLikedTracks(gw, cache.WithBus(b))
	f.controller = NewController(gw, f.liked, b, f.identity)
	f.setUser(models.UserID(user))
	return f
}

func TestNowPlaying(t *testing.T) {
	var n NowPlaying
	if _, ok := n.Current(); ok {
		t.Error("zero value should have nothing selected")
	}
	n.Select("t9")
	if id, ok := n.Current(); !ok || id != "t9" {
		t.Errorf("expected t9, got %q", id)
	}
	n.Clear()
	if _, ok := n.Current(); ok {
		t.Error("expected selection to be cleared")
	}
}

func TestToggleLike(t *testing.T) {
	t.Run("like is visible before the request lands", func(t *testing.T) {
		f := newFixture(t, "u1")
		f.backend.SeedLiked("u1", "t1", "t2")
		if err := f.liked.Refresh(context.Background(), "u1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		notified := 0
		f.bus.Subscribe(bus.TopicLikedTracksChanged, func() { notified++ })

		var likedDuringRequest bool
		f.backend.OnRequest(tu.RouteLike, func(*http.Request) { likedDuringRequest = f.liked.Contains("t9") })

		f.controller.NowPlaying().Select("t9")
		result, err := f.controller.ToggleLike(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if result.Status != StatusApplied || !result.Liked {
			t.Errorf("expected applied+liked, got %s liked=%v", result.Status, result.Liked)
		}
		if !likedDuringRequest {
			t.Error("expected t9 in the local set while the request was in flight")
		}
		if notified != 1 {
			t.Errorf("expected 1 notification, got %d", notified)
		}

		reqs := f.backend.Requests()
		last := reqs[len(reqs)-1]
		if last.Method != http.MethodPost || last.Query != "track_id=t9" {
			t.Errorf("expected POST ?track_id=t9, got %s ?%s", last.Method, last.Query)
		}
		if !f.backend.Liked("u1").Equal(models.NewLikedTrackSet("t1", "t2", "t9")) {
			t.Errorf("unexpected server set %v", f.backend.Liked("u1").IDs())
		}
	})

	t.Run("pre-toggle membership picks the verb", func(t *testing.T) {
		f := newFixture(t, "u1")
		f.backend.SeedLiked("u1", "t9")
		if err := f.liked.Refresh(context.Background(), "u1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		result, err := f.controller.ToggleLikeTrack(context.Background(), "t9")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Status != StatusApplied || result.Liked {
			t.Errorf("expected applied+unliked, got %s liked=%v", result.Status, result.Liked)
		}

		reqs := f.backend.Requests()
		if reqs[len(reqs)-1].Method != http.MethodDelete {
			t.Errorf("expected DELETE, got %s", reqs[len(reqs)-1].Method)
		}
		if f.liked.Contains("t9") || f.backend.Liked("u1").Contains("t9") {
			t.Error("expected t9 unliked locally and on the server")
		}
	})

	t.Run("failure rolls back", func(t *testing.T) {
		f := newFixture(t, "u1")
		f.backend.SeedLiked("u1", "t1")
		if err := f.liked.Refresh(context.Background(), "u1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		notified := 0
		f.bus.Subscribe(bus.TopicLikedTracksChanged, func() { notified++ })
		f.backend.FailNext(tu.RouteLike, http.StatusInternalServerError, 1)

		result, err := f.controller.ToggleLikeTrack(context.Background(), "t9")
		if !gateway.IsKind(err, gateway.KindServer) {
			t.Fatalf("expected server failure, got %v", err)
		}
		if result.Status != StatusRolledBack || result.Liked {
			t.Errorf("expected rolled back+unliked, got %s liked=%v", result.Status, result.Liked)
		}
		if f.liked.Contains("t9") {
			t.Error("expected t9 to be removed again")
		}
		if notified != 2 {
			t.Errorf("expected flip and rollback notifications, got %d", notified)
		}

		if err := f.liked.Refresh(context.Background(), "u1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !f.liked.Snapshot().Equal(f.backend.Liked("u1")) {
			t.Errorf("expected cache to match server, got %v vs %v", f.liked.Snapshot().IDs(), f.backend.Liked("u1").IDs())
		}
	})

	t.Run("network failure rolls back", func(t *testing.T) {
		liked := cache.NewLikedTracks(nil)
		liked.SetIdentity("u1")
		gw := gateway.NewGateway("http://backend.test", &http.Client{
			Transport: tu.NewMockRoundTripper(nil, errors.New("connection reset")),
		}, gateway.WithCredentials(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "abc"})))

		c := NewController(gw, liked, bus.New(nil), func() models.UserID { return "u1" })
		result, err := c.ToggleLikeTrack(context.Background(), "t9")
		if !gateway.IsKind(err, gateway.KindNetwork) {
			t.Fatalf("expected network failure, got %v", err)
		}
		if result.Status != StatusRolledBack || liked.Contains("t9") {
			t.Errorf("expected rollback, got %s", result.Status)
		}
	})

	t.Run("no-ops", func(t *testing.T) {
		f := newFixture(t, "u1")

		result, err := f.controller.ToggleLike(context.Background())
		if err != nil || result.Status != StatusNoTrack {
			t.Errorf("expected no track, got %s (%v)", result.Status, err)
		}

		f.setUser("")
		f.controller.NowPlaying().Select("t9")
		result, err = f.controller.ToggleLike(context.Background())
		if err != nil || result.Status != StatusNoIdentity {
			t.Errorf("expected no identity, got %s (%v)", result.Status, err)
		}

		if hits := f.backend.Hits(tu.RouteLike); hits != 0 {
			t.Errorf("expected no requests, got %d", hits)
		}
	})

	t.Run("concurrent toggle on same track is busy", func(t *testing.T) {
		f := newFixture(t, "u1")

		var inner ToggleResult
		f.backend.OnRequest(tu.RouteLike, func(*http.Request) {
			inner, _ = f.controller.ToggleLikeTrack(context.Background(), "t9")
		})

		result, err := f.controller.ToggleLikeTrack(context.Background(), "t9")
		if err != nil || result.Status != StatusApplied {
			t.Fatalf("expected applied, got %s (%v)", result.Status, err)
		}
		if inner.Status != StatusBusy {
			t.Errorf("expected busy, got %s", inner.Status)
		}
		if hits := f.backend.Hits(tu.RouteLike); hits != 1 {
			t.Errorf("expected 1 request, got %d", hits)
		}
	})

	t.Run("identity switch mid-flight", func(t *testing.T) {
		f := newFixture(t, "u1")
		f.backend.OnRequest(tu.RouteLike, func(*http.Request) { f.setUser("u2") })

		result, err := f.controller.ToggleLikeTrack(context.Background(), "t9")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Status != StatusStale {
			t.Errorf("expected stale, got %s", result.Status)
		}
		if f.liked.Contains("t9") {
			t.Error("u1 toggle leaked into u2 cache")
		}
	})
}

func TestAddTrackToPlaylist(t *testing.T) {
	t.Run("publishes playlist-updated", func(t *testing.T) {
		f := newFixture(t, "u1")
		f.backend.SeedPlaylists("u1", models.Playlist{ID: "p1", Name: "Road Trip"})

		playlists := cache.NewPlaylists(f.gateway)
		defer playlists.Close()
		playlists.SetIdentity("u1")
		playlists.Subscribe(f.bus)

		if err := f.controller.AddTrackToPlaylist(context.Background(), "t9", "p1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		playlists.Wait()

		pl, ok := playlists.Get("p1")
		if !ok || !pl.Contains("t9") {
			t.Errorf("expected cache to show t9 in p1, got %+v", pl)
		}

		var body map[string]string
		for _, r := range f.backend.Requests() {
			if r.Route == tu.RouteAddToPlaylist {
				_ = json.Unmarshal(r.Body, &body)
			}
		}
		if body["track_id"] != "t9" || body["playlist_id"] != "p1" {
			t.Errorf("unexpected request body %v", body)
		}
	})

	t.Run("failure does not publish", func(t *testing.T) {
		f := newFixture(t, "u1")
		published := 0
		f.bus.Subscribe(bus.TopicPlaylistUpdated, func() { published++ })

		err := f.controller.AddTrackToPlaylist(context.Background(), "t9", "missing")
		f2, ok := gateway.AsFailure(err)
		if !ok || f2.Status != http.StatusNotFound {
			t.Fatalf("expected 404 failure, got %v", err)
		}
		if f2.Detail() != "Playlist not found" {
			t.Errorf("expected detail, got %q", f2.Detail())
		}
		if published != 0 {
			t.Errorf("expected no publish, got %d", published)
		}
	})

	t.Run("guards", func(t *testing.T) {
		f := newFixture(t, "u1")
		if err := f.controller.AddTrackToPlaylist(context.Background(), "", "p1"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
		f.setUser("")
		if err := f.controller.AddTrackToPlaylist(context.Background(), "t9", "p1"); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
		if hits := f.backend.Hits(tu.RouteAddToPlaylist); hits != 0 {
			t.Errorf("expected no requests, got %d", hits)
		}
	})
}
