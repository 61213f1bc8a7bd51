package models

import (
	"encoding/json"
	"slices"
	"testing"
)

func TestIDs(t *testing.T) {
	t.Run("TrackID from string and number", func(t *testing.T) {
		var ids []TrackID
		if err := json.Unmarshal([]byte(`["t9", 42, 7.5, null]`), &ids); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := []TrackID{"t9", "42", "7.5", ""}
		if !slices.Equal(ids, want) {
			t.Errorf("expected %v, got %v", want, ids)
		}
	})

	t.Run("TrackID rejects objects", func(t *testing.T) {
		var id TrackID
		if err := json.Unmarshal([]byte(`{"id": 1}`), &id); err == nil {
			t.Error("expected error for object id")
		}
	})

	t.Run("ids encode as strings", func(t *testing.T) {
		data, err := json.Marshal(struct {
			T TrackID    `json:"t"`
			P PlaylistID `json:"p"`
		}{"12", "p1"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(data) != `{"t":"12","p":"p1"}` {
			t.Errorf("unexpected encoding %s", data)
		}
	})

	t.Run("UserID validity", func(t *testing.T) {
		if UserID("").Valid() {
			t.Error("empty user id should not be valid")
		}
		if !UserID("u1").Valid() {
			t.Error("u1 should be valid")
		}
	})

	t.Run("Credential empty", func(t *testing.T) {
		if !(Credential{Token: "  "}).Empty() {
			t.Error("whitespace token should be empty")
		}
	})
}

func TestLikedTrackSet(t *testing.T) {
	t.Run("zero value is usable", func(t *testing.T) {
		var s LikedTrackSet
		if s.Contains("t1") || s.Len() != 0 {
			t.Error("zero set should be empty")
		}
		if !s.Add("t1") {
			t.Error("first add should change the set")
		}
		if s.Add("t1") {
			t.Error("second add should be a no-op")
		}
		if !s.Contains("t1") {
			t.Error("expected t1 to be a member")
		}
	})

	t.Run("remove", func(t *testing.T) {
		s := NewLikedTrackSet("a", "b")
		if !s.Remove("a") || s.Remove("a") {
			t.Error("expected remove to report change exactly once")
		}
		if s.Len() != 1 {
			t.Errorf("expected 1 member, got %d", s.Len())
		}
	})

	t.Run("clone is independent", func(t *testing.T) {
		s := NewLikedTrackSet("a")
		c := s.Clone()
		c.Add("b")
		if s.Contains("b") {
			t.Error("clone mutation leaked into original")
		}
		if s.Equal(c) {
			t.Error("sets should differ")
		}
	})

	t.Run("json round trip is sorted and unique", func(t *testing.T) {
		var s LikedTrackSet
		if err := json.Unmarshal([]byte(`["c", "a", "c", 3]`), &s); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		data, _ := json.Marshal(s)
		if string(data) != `["3","a","c"]` {
			t.Errorf("unexpected encoding %s", data)
		}
	})
}

func TestPlaylist(t *testing.T) {
	t.Run("track_ids", func(t *testing.T) {
		var pl Playlist
		if err := json.Unmarshal([]byte(`{"id": 3, "name": "Road", "track_ids": [1, "t2"]}`), &pl); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if pl.ID != "3" || pl.Name != "Road" {
			t.Errorf("unexpected playlist %+v", pl)
		}
		if !slices.Equal(pl.TrackIDs, []TrackID{"1", "t2"}) {
			t.Errorf("unexpected tracks %v", pl.TrackIDs)
		}
	})

	t.Run("tracks fallback", func(t *testing.T) {
		var pl Playlist
		data := `{"id": "p", "name": "Mix", "tracks": [{"id": 5, "title": "x"}, "t6"]}`
		if err := json.Unmarshal([]byte(data), &pl); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !slices.Equal(pl.TrackIDs, []TrackID{"5", "t6"}) {
			t.Errorf("unexpected tracks %v", pl.TrackIDs)
		}
		if !pl.Contains("t6") || pl.TrackCount() != 2 {
			t.Error("expected t6 in 2-track playlist")
		}
	})
}

func TestPlaylistCollection(t *testing.T) {
	playlists := []Playlist{
		{ID: "b", Name: "B", TrackIDs: []TrackID{"1"}},
		{ID: "a", Name: "A"},
		{ID: "b", Name: "B2"},
	}
	c := NewPlaylistCollection(playlists)

	if c.Len() != 2 {
		t.Fatalf("expected 2 playlists, got %d", c.Len())
	}

	list := c.List()
	if list[0].ID != "b" || list[1].ID != "a" {
		t.Errorf("expected server order [b a], got [%s %s]", list[0].ID, list[1].ID)
	}
	if list[0].Name != "B2" {
		t.Errorf("expected later duplicate to win, got %s", list[0].Name)
	}

	playlists[0].TrackIDs[0] = "mutated"
	got, ok := c.Get("b")
	if !ok {
		t.Fatal("expected playlist b")
	}
	got.TrackIDs = append(got.TrackIDs, "x")
	again, _ := c.Get("b")
	if len(again.TrackIDs) != 0 {
		t.Errorf("collection should not share slices with callers, got %v", again.TrackIDs)
	}

	if !c.Equal(NewPlaylistCollection([]Playlist{{ID: "b", Name: "B2"}, {ID: "a", Name: "A"}})) {
		t.Error("expected equal collections")
	}
	if c.Equal(NewPlaylistCollection(nil)) {
		t.Error("expected unequal collections")
	}
}

func TestSettings(t *testing.T) {
	t.Run("ParseSection", func(t *testing.T) {
		sec, err := ParseSection(" Theme ")
		if err != nil || sec != SectionTheme {
			t.Errorf("expected theme, got %q (%v)", sec, err)
		}
		if _, err := ParseSection("billing"); err == nil {
			t.Error("expected error for unknown section")
		}
	})

	t.Run("defaults", func(t *testing.T) {
		s := DefaultUserSettings("u1")
		if s.UserID != "u1" {
			t.Errorf("expected user id u1, got %s", s.UserID)
		}
		if *s.Theme.AccentColor != "#007bff" || s.Theme.IsDarkMode() {
			t.Error("unexpected theme defaults")
		}
		if s.Security.SecurityLevel() != "low" || s.Security.IsStrongSecurity() {
			t.Error("unexpected security defaults")
		}
		if s.Privacy.IsPrivate() {
			t.Error("default privacy should be public")
		}
		if s.Notifications.Summary() != "Email: true, Push: true, SMS: false" {
			t.Errorf("unexpected summary %q", s.Notifications.Summary())
		}
	})

	t.Run("security level", func(t *testing.T) {
		tc := []struct {
			biometric, twoFactor bool
			want                 string
		}{
			{true, true, "high"},
			{false, true, "medium"},
			{true, false, "low"},
		}
		for _, c := range tc {
			s := SecuritySettings{BiometricEnabled: c.biometric, TwoFactorEnabled: c.twoFactor}
			if got := s.SecurityLevel(); got != c.want {
				t.Errorf("expected %s, got %s", c.want, got)
			}
		}
	})

	t.Run("sparse update", func(t *testing.T) {
		dark := DefaultThemeSettings()
		dark.Theme = "DARK"
		u := SettingsUpdate{Theme: &dark}

		data, err := json.Marshal(u)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var keys map[string]json.RawMessage
		_ = json.Unmarshal(data, &keys)
		if len(keys) != 1 {
			t.Errorf("expected only theme in update body, got %s", data)
		}

		applied := u.Apply(DefaultUserSettings("u1"))
		if !applied.Theme.IsDarkMode() {
			t.Error("expected dark mode after update")
		}
		if applied.Language.Language != "en" {
			t.Error("untouched sections should keep their values")
		}
		if u.Empty() || !(SettingsUpdate{}).Empty() {
			t.Error("unexpected Empty result")
		}
	})
}
