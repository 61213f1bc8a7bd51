// package session builds and owns every component for one signed-in client.
//
// A [Session] is created explicitly, started once and closed on teardown. It holds the
// credential store, the gateway, the bus, both caches, the mutation controller and the
// settings client. Identity is re-derived from the stored token on every [Session.Sync];
// when it changes every cache is cleared before the new user's data is fetched.
package session

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/playsync/internal/bus"
	"github.com/desertthunder/playsync/internal/cache"
	"github.com/desertthunder/playsync/internal/gateway"
	"github.com/desertthunder/playsync/internal/identity"
	"github.com/desertthunder/playsync/internal/models"
	"github.com/desertthunder/playsync/internal/playback"
	"github.com/desertthunder/playsync/internal/settings"
	"github.com/desertthunder/playsync/internal/shared"
	"github.com/desertthunder/playsync/internal/store"
)

// Options configures [New]. Only BaseURL is usually set; everything else has a default.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	KV         store.KV        // credential storage, in-memory when nil
	Snapshots  store.Snapshots // settings snapshots, in-memory when nil
	RateLimit  float64
	Burst      int
	Resolver   *identity.Resolver
	Logger     *log.Logger
}

// Session is the lifecycle-scoped context shared by the CLI and the TUI.
type Session struct {
	credentials *store.Credentials
	snapshots   store.Snapshots
	resolver    *identity.Resolver
	gateway     *gateway.Gateway
	bus         *bus.Bus
	liked       *cache.LikedTracks
	playlists   *cache.Playlists
	controller  *playback.Controller
	settings    *settings.Client
	aggregator  *settings.Aggregator
	logger      *log.Logger

	mu      sync.RWMutex
	user    models.UserID
	profile models.Profile
	started bool
	closed  bool
}

func New(opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = shared.NopLogger()
	}
	kv := opts.KV
	if kv == nil {
		kv = store.NewMemoryKV()
	}
	snapshots := opts.Snapshots
	if snapshots == nil {
		snapshots = store.NewMemorySnapshots()
	}
	resolver := opts.Resolver
	if resolver == nil {
		resolver = identity.NewResolver()
	}

	s := &Session{
		credentials: store.NewCredentials(kv),
		snapshots:   snapshots,
		resolver:    resolver,
		bus:         bus.New(logger.WithPrefix("bus")),
		logger:      logger,
	}

	s.gateway = gateway.NewGateway(opts.BaseURL, opts.HTTPClient,
		gateway.WithCredentials(s.credentials),
		gateway.WithRateLimit(opts.RateLimit, opts.Burst),
		gateway.WithLogger(logger.WithPrefix("gateway")),
	)

	cacheLogger := logger.WithPrefix("cache")
	s.liked = cache.NewLikedTracks(s.gateway, cache.WithBus(s.bus), cache.WithLogger(cacheLogger))
	s.playlists = cache.NewPlaylists(s.gateway, cache.WithBus(s.bus), cache.WithLogger(cacheLogger))
	s.controller = playback.NewController(s.gateway, s.liked, s.bus, s.Identity,
		playback.WithLogger(logger.WithPrefix("playback")))
	s.settings = settings.NewClient(s.gateway, settings.WithLogger(logger.WithPrefix("settings")))
	s.aggregator = settings.NewAggregator(s.settings)
	return s
}

func (s *Session) Gateway() *gateway.Gateway        { return s.gateway }
func (s *Session) Bus() *bus.Bus                    { return s.bus }
func (s *Session) Liked() *cache.LikedTracks        { return s.liked }
func (s *Session) Playlists() *cache.Playlists      { return s.playlists }
func (s *Session) Controller() *playback.Controller { return s.controller }
func (s *Session) Settings() *settings.Client       { return s.settings }
func (s *Session) Aggregator() *settings.Aggregator { return s.aggregator }
func (s *Session) Credentials() *store.Credentials  { return s.credentials }
func (s *Session) Snapshots() store.Snapshots       { return s.snapshots }
func (s *Session) NowPlaying() *playback.NowPlaying { return s.controller.NowPlaying() }

// Identity returns the resolved user, or "" when signed out.
func (s *Session) Identity() models.UserID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// Profile returns the profile stored with the credential.
func (s *Session) Profile() models.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile
}

func (s *Session) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Start subscribes the playlist cache to the bus, resolves the stored identity and loads its data.
// Calling it again is a no-op apart from a [Session.Sync].
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return shared.ErrSessionClosed
	}
	first := !s.started
	s.started = true
	s.mu.Unlock()

	if first {
		s.playlists.Subscribe(s.bus)
	}
	_, err := s.Sync(ctx)
	return err
}

// Sync re-reads the stored credential and re-resolves identity. When identity changed, both caches
// are cleared and, if someone is signed in, refreshed. It reports whether identity changed.
func (s *Session) Sync(ctx context.Context) (bool, error) {
	if s.isClosed() {
		return false, shared.ErrSessionClosed
	}

	cred, err := s.credentials.Credential()
	if err != nil {
		return false, err
	}
	user, _ := s.resolver.Resolve(cred.Token)

	s.mu.Lock()
	s.profile = cred.Profile
	prev := s.user
	s.user = user
	s.mu.Unlock()

	if user == prev {
		return false, nil
	}

	s.logger.Info("identity changed", "from", prev, "to", user)
	s.liked.SetIdentity(user)
	s.playlists.SetIdentity(user)
	if !user.Valid() {
		s.controller.NowPlaying().Clear()
		return true, nil
	}
	return true, s.RefreshAll(ctx)
}

// SignIn stores cred and switches to its identity. Tokens without a usable identity are rejected
// and leave the stored credential untouched.
func (s *Session) SignIn(ctx context.Context, cred models.Credential) error {
	if s.isClosed() {
		return shared.ErrSessionClosed
	}
	if _, ok := s.resolver.Resolve(cred.Token); !ok {
		return shared.ErrInvalidCredentials
	}
	if err := s.credentials.Save(cred); err != nil {
		return err
	}
	_, err := s.Sync(ctx)
	return err
}

// SignOut clears the stored credential and every cache.
func (s *Session) SignOut(ctx context.Context) error {
	if s.isClosed() {
		return shared.ErrSessionClosed
	}
	if err := s.credentials.Clear(); err != nil {
		return err
	}
	_, err := s.Sync(ctx)
	return err
}

// RefreshAll refreshes both caches concurrently and joins their errors.
func (s *Session) RefreshAll(ctx context.Context) error {
	user := s.Identity()
	if !user.Valid() {
		return shared.ErrNotAuthenticated
	}

	var (
		wg                 sync.WaitGroup
		likedErr, listsErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		likedErr = s.liked.Refresh(ctx, user)
	}()
	go func() {
		defer wg.Done()
		listsErr = s.playlists.Refresh(ctx, user)
	}()
	wg.Wait()

	return errors.Join(likedErr, listsErr)
}

// Close removes every subscription, waits for background refreshes and closes the bus.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.playlists.Close()
	s.bus.Close()
	s.logger.Debug("session closed")
}
