package testing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/playsync/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
)

// Route names registered by [Backend]. Used with [Backend.Hits], [Backend.FailNext] and [Backend.OnRequest].
const (
	RouteLikedIDs       = "liked_track_ids"
	RouteLike           = "liked_track"
	RoutePlaylists      = "user_playlist"
	RouteAddToPlaylist  = "add_track_to_playlist"
	RouteSettings       = "settings"
	RouteSettingsImport = "settings.import"
	RouteSettingsExport = "settings.export"
	RouteSettingsReset  = "settings.reset"
)

// SettingsRoute returns the route name for a single settings section.
func SettingsRoute(section models.Section) string {
	return "settings." + string(section)
}

// RecordedRequest is a request seen by [Backend].
type RecordedRequest struct {
	Route  string
	Method string
	Path   string
	Query  string
	User   string
	Body   []byte
}

type failure struct {
	status int
	times  int
}

// Backend is an in-memory stand-in for the music API and settings proxy.
//
// Music routes require an HS256 bearer token signed with [Backend.Secret]; settings routes are unauthenticated.
type Backend struct {
	Secret []byte
	server *httptest.Server

	mu        sync.Mutex
	liked     map[string][]models.TrackID
	playlists map[string][]models.Playlist
	settings  map[string]models.UserSettings
	hits      map[string]int
	failures  map[string]*failure
	hooks     map[string]func(*http.Request)
	requests  []RecordedRequest
}

// NewBackend starts a backend that is closed when the test ends.
func NewBackend(t *testing.T) *Backend {
	t.Helper()
	b := &Backend{
		Secret:    []byte("playsync-test-secret"),
		liked:     make(map[string][]models.TrackID),
		playlists: make(map[string][]models.Playlist),
		settings:  make(map[string]models.UserSettings),
		hits:      make(map[string]int),
		failures:  make(map[string]*failure),
		hooks:     make(map[string]func(*http.Request)),
	}
	b.server = httptest.NewServer(b.router())
	t.Cleanup(b.server.Close)
	return b
}

// URL returns the base URL to point a gateway at.
func (b *Backend) URL() string { return b.server.URL }

// Token mints a valid one-hour token for user.
func (b *Backend) Token(t *testing.T, user string) string {
	t.Helper()
	return MintToken(t, b.Secret, user, time.Hour)
}

func (b *Backend) router() http.Handler {
	r := mux.NewRouter()
	r.Use(b.record)

	music := r.PathPrefix("/api/music").Subrouter()
	music.Use(b.authorize)
	music.HandleFunc("/user/liked_track_ids", b.handleLikedIDs).Methods(http.MethodGet).Name(RouteLikedIDs)
	music.HandleFunc("/user/liked_track", b.handleLike).Methods(http.MethodPost, http.MethodDelete).Name(RouteLike)
	music.HandleFunc("/user_playlist", b.handlePlaylists).Methods(http.MethodGet).Name(RoutePlaylists)
	music.HandleFunc("/user/add_track_to_playlist", b.handleAddToPlaylist).Methods(http.MethodPost).Name(RouteAddToPlaylist)

	settings := r.PathPrefix("/settings/advanced/{userId}").Subrouter()
	settings.HandleFunc("", b.handleGetSettings).Methods(http.MethodGet).Name(RouteSettings)
	settings.HandleFunc("", b.handleUpdateSettings).Methods(http.MethodPut).Name(RouteSettings + ".update")
	settings.HandleFunc("/import", b.handleImport).Methods(http.MethodPost).Name(RouteSettingsImport)
	settings.HandleFunc("/export", b.handleExport).Methods(http.MethodGet).Name(RouteSettingsExport)
	settings.HandleFunc("/reset", b.handleReset).Methods(http.MethodPost).Name(RouteSettingsReset)
	for _, section := range []models.Section{models.SectionTheme, models.SectionLanguage, models.SectionSecurity} {
		settings.HandleFunc("/"+string(section), b.handleSection(section)).
			Methods(http.MethodGet, http.MethodPut, http.MethodDelete).
			Name(SettingsRoute(section))
	}
	for _, section := range []models.Section{models.SectionNotifications, models.SectionPrivacy} {
		settings.HandleFunc("/"+string(section), b.handleSection(section)).
			Methods(http.MethodPut).
			Name(SettingsRoute(section))
	}

	return r
}

// record counts hits, runs hooks and injects configured failures.
func (b *Backend) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := ""
		if route := mux.CurrentRoute(r); route != nil {
			name = route.GetName()
		}

		body, _ := readBody(r)
		b.mu.Lock()
		b.hits[name]++
		b.requests = append(b.requests, RecordedRequest{
			Route: name, Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery,
			User: b.subject(r), Body: body,
		})
		hook := b.hooks[name]
		var status int
		if f := b.failures[name]; f != nil && f.times > 0 {
			f.times--
			status = f.status
		}
		b.mu.Unlock()

		if hook != nil {
			hook(r)
		}
		if status != 0 {
			writeJSON(w, status, map[string]string{"detail": fmt.Sprintf("injected failure %d", status)})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if b.subject(r) == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Not authenticated"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// subject verifies the bearer token and returns its sub, or "".
func (b *Backend) subject(r *http.Request) string {
	raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return ""
	}
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) { return b.Secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return ""
	}
	return claims.Subject
}

func (b *Backend) handleLikedIDs(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	ids := slices.Clone(b.liked[b.subject(r)])
	b.mu.Unlock()
	if ids == nil {
		ids = []models.TrackID{}
	}
	writeJSON(w, http.StatusOK, ids)
}

func (b *Backend) handleLike(w http.ResponseWriter, r *http.Request) {
	id := models.TrackID(r.URL.Query().Get("track_id"))
	if id == "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "track_id is required"})
		return
	}

	user := b.subject(r)
	b.mu.Lock()
	defer b.mu.Unlock()
	ids := b.liked[user]
	switch r.Method {
	case http.MethodPost:
		if !slices.Contains(ids, id) {
			b.liked[user] = append(ids, id)
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "Track liked"})
	case http.MethodDelete:
		b.liked[user] = slices.DeleteFunc(ids, func(t models.TrackID) bool { return t == id })
		writeJSON(w, http.StatusOK, map[string]string{"message": "Track unliked"})
	}
}

func (b *Backend) handlePlaylists(w http.ResponseWriter, r *http.Request) {
	user := b.subject(r)
	b.mu.Lock()
	out := []models.Playlist{{ID: "liked", Name: models.LikedSongsPlaylist, TrackIDs: slices.Clone(b.liked[user])}}
	for _, pl := range b.playlists[user] {
		pl.TrackIDs = slices.Clone(pl.TrackIDs)
		out = append(out, pl)
	}
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) handleAddToPlaylist(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TrackID    models.TrackID    `json:"track_id"`
		PlaylistID models.PlaylistID `json:"playlist_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TrackID == "" || req.PlaylistID == "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "track_id and playlist_id are required"})
		return
	}

	user := b.subject(r)
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, pl := range b.playlists[user] {
		if pl.ID == req.PlaylistID {
			if !slices.Contains(pl.TrackIDs, req.TrackID) {
				b.playlists[user][i].TrackIDs = append(pl.TrackIDs, req.TrackID)
			}
			writeJSON(w, http.StatusOK, map[string]string{"message": "Track added to playlist"})
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Playlist not found"})
}

func (b *Backend) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	user := mux.Vars(r)["userId"]
	b.mu.Lock()
	doc, ok := b.settings[user]
	if !ok {
		doc = models.DefaultUserSettings(models.UserID(user))
		b.settings[user] = doc
	}
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, doc)
}

func (b *Backend) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var update models.SettingsUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": err.Error()})
		return
	}
	b.withSettings(w, r, func(doc *models.UserSettings) any {
		*doc = update.Apply(*doc)
		return doc
	})
}

func (b *Backend) handleSection(section models.Section) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			b.withSettings(w, r, func(doc *models.UserSettings) any { return sectionOf(doc, section) })
		case http.MethodDelete:
			b.withSettings(w, r, func(doc *models.UserSettings) any {
				defaults := models.DefaultUserSettings(models.UserID(doc.UserID))
				resetSection(doc, &defaults, section)
				return map[string]string{"message": fmt.Sprintf("%s settings reset to default", section)}
			})
		case http.MethodPut:
			var incoming models.UserSettings
			target := sectionOf(&incoming, section)
			if err := json.NewDecoder(r.Body).Decode(target); err != nil {
				writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": err.Error()})
				return
			}
			b.withSettings(w, r, func(doc *models.UserSettings) any {
				resetSection(doc, &incoming, section)
				return sectionOf(doc, section)
			})
		}
	}
}

func (b *Backend) handleImport(w http.ResponseWriter, r *http.Request) {
	var doc models.UserSettings
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": err.Error()})
		return
	}
	user := mux.Vars(r)["userId"]
	doc.UserID = user
	b.mu.Lock()
	b.settings[user] = doc
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, doc)
}

func (b *Backend) handleExport(w http.ResponseWriter, r *http.Request) {
	b.withSettings(w, r, func(doc *models.UserSettings) any { return doc })
}

func (b *Backend) handleReset(w http.ResponseWriter, r *http.Request) {
	b.withSettings(w, r, func(doc *models.UserSettings) any {
		*doc = models.DefaultUserSettings(models.UserID(doc.UserID))
		return doc
	})
}

// withSettings runs fn against an existing document, answering 404 for unknown users.
func (b *Backend) withSettings(w http.ResponseWriter, r *http.Request, fn func(*models.UserSettings) any) {
	user := mux.Vars(r)["userId"]
	b.mu.Lock()
	doc, ok := b.settings[user]
	if !ok {
		b.mu.Unlock()
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "User not found"})
		return
	}
	out := fn(&doc)
	b.settings[user] = doc
	data, err := json.Marshal(out)
	b.mu.Unlock()

	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": err.Error()})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func sectionOf(doc *models.UserSettings, section models.Section) any {
	switch section {
	case models.SectionTheme:
		return &doc.Theme
	case models.SectionLanguage:
		return &doc.Language
	case models.SectionSecurity:
		return &doc.Security
	case models.SectionNotifications:
		return &doc.Notifications
	case models.SectionPrivacy:
		return &doc.Privacy
	default:
		return doc
	}
}

func resetSection(doc, from *models.UserSettings, section models.Section) {
	switch section {
	case models.SectionTheme:
		doc.Theme = from.Theme
	case models.SectionLanguage:
		doc.Language = from.Language
	case models.SectionSecurity:
		doc.Security = from.Security
	case models.SectionNotifications:
		doc.Notifications = from.Notifications
	case models.SectionPrivacy:
		doc.Privacy = from.Privacy
	}
}

// SeedLiked replaces user's liked tracks.
func (b *Backend) SeedLiked(user string, ids ...models.TrackID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.liked[user] = slices.Clone(ids)
}

// SeedPlaylists replaces user's playlists.
func (b *Backend) SeedPlaylists(user string, playlists ...models.Playlist) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.playlists[user] = slices.Clone(playlists)
}

// SeedSettings stores doc for user.
func (b *Backend) SeedSettings(user string, doc models.UserSettings) {
	b.mu.Lock()
	defer b.mu.Unlock()
	doc.UserID = user
	b.settings[user] = doc
}

// Liked returns user's liked tracks as the server sees them.
func (b *Backend) Liked(user string) models.LikedTrackSet {
	b.mu.Lock()
	defer b.mu.Unlock()
	return models.NewLikedTrackSet(b.liked[user]...)
}

// Playlist returns one of user's playlists as the server sees it.
func (b *Backend) Playlist(user string, id models.PlaylistID) (models.Playlist, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, pl := range b.playlists[user] {
		if pl.ID == id {
			pl.TrackIDs = slices.Clone(pl.TrackIDs)
			return pl, true
		}
	}
	return models.Playlist{}, false
}

// Settings returns the stored document for user.
func (b *Backend) Settings(user string) (models.UserSettings, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	doc, ok := b.settings[user]
	return doc, ok
}

// Hits returns how many requests matched route.
func (b *Backend) Hits(route string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hits[route]
}

// Requests returns every recorded request in arrival order.
func (b *Backend) Requests() []RecordedRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.requests)
}

// FailNext answers the next times requests to route with status.
func (b *Backend) FailNext(route string, status, times int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[route] = &failure{status: status, times: times}
}

// OnRequest runs fn before route is handled. fn runs on the server goroutine and may block.
func (b *Backend) OnRequest(route string, fn func(*http.Request)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if fn == nil {
		delete(b.hooks, route)
		return
	}
	b.hooks[route] = fn
}

// readBody reads r.Body and replaces it so handlers can read it again.
func readBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	data, err := io.ReadAll(r.Body)
	r.Body = io.NopCloser(bytes.NewReader(data))
	return data, err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
