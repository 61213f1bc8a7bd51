package settings

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"testing"

	"github.com/desertthunder/playsync/internal/gateway"
	"github.com/desertthunder/playsync/internal/models"
	"github.com/desertthunder/playsync/internal/shared"
	tu "github.com/desertthunder/playsync/internal/testing"
)

func newClient(t *testing.T) (*Client, *tu.Backend) {
	t.Helper()
	backend := tu.NewBackend(t)
	return NewClient(gateway.NewGateway(backend.URL(), nil)), backend
}

func TestPath(t *testing.T) {
	tc := []struct {
		user   models.UserID
		suffix []string
		want   string
	}{
		{"u1", nil, "/settings/advanced/u1"},
		{"u1", []string{"theme"}, "/settings/advanced/u1/theme"},
		{"a b/c", []string{"export"}, "/settings/advanced/a%20b%2Fc/export"},
	}
	for _, c := range tc {
		if got := Path(c.user, c.suffix...); got != c.want {
			t.Errorf("expected %s, got %s", c.want, got)
		}
	}
}

func TestSupports(t *testing.T) {
	if !Supports(models.SectionTheme, http.MethodDelete) {
		t.Error("theme should support DELETE")
	}
	if Supports(models.SectionNotifications, http.MethodGet) {
		t.Error("notifications should not support GET")
	}
	if Supports(models.SectionFull, http.MethodDelete) {
		t.Error("full document should not support DELETE")
	}
	if Supports("bogus", http.MethodGet) {
		t.Error("unknown section should not be supported")
	}
}

func TestClient(t *testing.T) {
	ctx := context.Background()

	t.Run("get all creates defaults", func(t *testing.T) {
		client, backend := newClient(t)
		doc, err := client.GetAll(ctx, "u1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if doc.UserID != "u1" || doc.Theme.Theme != "light" {
			t.Errorf("expected default document for u1, got %+v", doc)
		}
		if _, ok := backend.Settings("u1"); !ok {
			t.Error("expected backend to store the document")
		}
		for _, r := range backend.Requests() {
			if r.User != "" {
				t.Errorf("settings calls must not carry a credential, got user %q", r.User)
			}
		}
	})

	t.Run("section round trip", func(t *testing.T) {
		client, backend := newClient(t)
		backend.SeedSettings("u1", models.DefaultUserSettings("u1"))

		theme := models.DefaultThemeSettings()
		theme.Theme = "dark"
		if _, err := client.Update(ctx, "u1", models.SectionTheme, theme); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		got, err := client.Theme(ctx, "u1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !got.IsDarkMode() {
			t.Errorf("expected dark theme, got %s", got.Theme)
		}

		if _, err := client.Reset(ctx, "u1", models.SectionTheme); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got, _ = client.Theme(ctx, "u1")
		if got.IsDarkMode() {
			t.Error("expected theme reset to default")
		}
	})

	t.Run("typed getters", func(t *testing.T) {
		client, backend := newClient(t)
		backend.SeedSettings("u1", models.DefaultUserSettings("u1"))

		lang, err := client.Language(ctx, "u1")
		if err != nil || lang.Language == "" {
			t.Errorf("expected language document, got %+v (%v)", lang, err)
		}
		sec, err := client.Security(ctx, "u1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if sec.SecurityLevel() == "" {
			t.Error("expected a security level")
		}
	})

	t.Run("update all", func(t *testing.T) {
		client, backend := newClient(t)
		backend.SeedSettings("u1", models.DefaultUserSettings("u1"))

		privacy := models.DefaultPrivacySettings()
		privacy.ProfileVisible = false
		doc, err := client.UpdateAll(ctx, "u1", models.SettingsUpdate{Privacy: &privacy})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !doc.Privacy.IsPrivate() {
			t.Error("expected private profile")
		}
		if doc.Theme.Theme != "light" {
			t.Error("untouched sections should be preserved")
		}

		if _, err := client.UpdateAll(ctx, "u1", models.SettingsUpdate{}); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("put-only sections", func(t *testing.T) {
		client, backend := newClient(t)
		backend.SeedSettings("u1", models.DefaultUserSettings("u1"))

		notifications := models.DefaultNotificationSettings()
		notifications.SMSNotifications = true
		if _, err := client.Update(ctx, "u1", models.SectionNotifications, notifications); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		doc, _ := backend.Settings("u1")
		if !doc.Notifications.SMSNotifications {
			t.Error("expected SMS notifications enabled")
		}

		if _, err := client.Get(ctx, "u1", models.SectionPrivacy); !errors.Is(err, shared.ErrUnsupportedSection) {
			t.Errorf("expected ErrUnsupportedSection, got %v", err)
		}
		if _, err := client.Reset(ctx, "u1", models.SectionFull); !errors.Is(err, shared.ErrUnsupportedSection) {
			t.Errorf("expected ErrUnsupportedSection, got %v", err)
		}
		if hits := backend.Hits(tu.SettingsRoute(models.SectionPrivacy)); hits != 0 {
			t.Errorf("expected no request for unsupported verb, got %d", hits)
		}
	})

	t.Run("unknown user", func(t *testing.T) {
		client, _ := newClient(t)
		_, err := client.Update(ctx, "ghost", models.SectionTheme, models.DefaultThemeSettings())
		f, ok := gateway.AsFailure(err)
		if !ok || f.Status != http.StatusNotFound || f.Detail() != "User not found" {
			t.Errorf("expected 404 User not found, got %v", err)
		}
	})

	t.Run("missing user id", func(t *testing.T) {
		client, backend := newClient(t)
		if _, err := client.GetAll(ctx, ""); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
		if len(backend.Requests()) != 0 {
			t.Error("expected no requests")
		}
	})

	t.Run("bulk endpoints", func(t *testing.T) {
		client, backend := newClient(t)
		backend.SeedSettings("u1", models.DefaultUserSettings("u1"))

		doc := models.DefaultUserSettings("someone-else")
		doc.Language.Language = "fr"
		imported, err := client.Import(ctx, "u1", doc)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if imported.UserID != "u1" || imported.Language.Language != "fr" {
			t.Errorf("unexpected import result %+v", imported)
		}

		resp, err := client.Export(ctx, "u1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var exported models.UserSettings
		if err := json.Unmarshal(resp.Body, &exported); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if exported.Language.Language != "fr" {
			t.Errorf("expected exported language fr, got %s", exported.Language.Language)
		}

		reset, err := client.ResetAll(ctx, "u1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if reset.Language.Language == "fr" {
			t.Error("expected reset to restore defaults")
		}
	})
}

func TestAggregator(t *testing.T) {
	ctx := context.Background()

	t.Run("default sections in order", func(t *testing.T) {
		client, backend := newClient(t)
		backend.SeedSettings("u1", models.DefaultUserSettings("u1"))

		results := NewAggregator(client).GetAllSections(ctx, "u1")
		if len(results) != 4 {
			t.Fatalf("expected 4 results, got %d", len(results))
		}

		var got []models.Section
		for _, r := range results {
			got = append(got, r.Section)
			if !r.OK() {
				t.Errorf("unexpected failure for %s: %v", r.Section, r.Err)
			}
		}
		if !slices.Equal(got, DefaultSections) {
			t.Errorf("expected %v, got %v", DefaultSections, got)
		}

		doc, err := results[3].Document()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if full, ok := doc.(models.UserSettings); !ok || full.UserID != "u1" {
			t.Errorf("expected full document, got %T", doc)
		}
		theme, _ := results[0].Document()
		if _, ok := theme.(models.ThemeSettings); !ok {
			t.Errorf("expected theme document, got %T", theme)
		}
	})

	t.Run("partial failure", func(t *testing.T) {
		client, backend := newClient(t)
		backend.SeedSettings("u1", models.DefaultUserSettings("u1"))
		backend.FailNext(tu.SettingsRoute(models.SectionLanguage), http.StatusInternalServerError, 1)

		progress := make(chan Progress, 4)
		results := NewAggregator(client, WithProgress(progress)).GetAllSections(ctx, "u1")
		close(progress)

		if len(results) != 4 {
			t.Fatalf("expected 4 results, got %d", len(results))
		}
		failed := Failed(results)
		if len(failed) != 1 || failed[0].Section != models.SectionLanguage {
			t.Fatalf("expected language to fail alone, got %+v", failed)
		}

		r := results[1]
		f, ok := r.Failure()
		if !ok {
			t.Fatalf("expected gateway failure, got %v", r.Err)
		}
		if f.Status != http.StatusInternalServerError || len(f.Body) == 0 {
			t.Errorf("expected untouched 500 failure, got %d %s", f.Status, f.Body)
		}
		if r.Response != nil {
			t.Error("failed section must not carry a response")
		}
		if _, err := r.Document(); err == nil {
			t.Error("failed section must not decode to a document")
		}

		steps := 0
		for p := range progress {
			steps++
			if p.Total != 4 {
				t.Errorf("expected total 4, got %d", p.Total)
			}
		}
		if steps != 4 {
			t.Errorf("expected 4 progress updates, got %d", steps)
		}
	})

	t.Run("network failure for every section", func(t *testing.T) {
		client := NewClient(gateway.NewGateway("http://127.0.0.1:1", nil))
		results := NewAggregator(client).GetAllSections(ctx, "u1", models.SectionTheme, models.SectionSecurity)

		if len(results) != 2 {
			t.Fatalf("expected 2 results, got %d", len(results))
		}
		for _, r := range results {
			f, ok := r.Failure()
			if !ok || f.Kind != gateway.KindNetwork || f.Status != gateway.NetworkErrorStatus {
				t.Errorf("expected network failure for %s, got %v", r.Section, r.Err)
			}
		}
	})

	t.Run("unsupported section is reported in place", func(t *testing.T) {
		client, backend := newClient(t)
		backend.SeedSettings("u1", models.DefaultUserSettings("u1"))

		results := NewAggregator(client).GetAllSections(ctx, "u1", models.SectionTheme, models.SectionPrivacy)
		if !results[0].OK() {
			t.Errorf("expected theme to succeed, got %v", results[0].Err)
		}
		if !errors.Is(results[1].Err, shared.ErrUnsupportedSection) {
			t.Errorf("expected ErrUnsupportedSection, got %v", results[1].Err)
		}
	})
}
