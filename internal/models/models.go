package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// UserID is a resolved subject identifier. The empty value means "no identity".
type UserID string

// Valid reports whether id names a user.
func (id UserID) Valid() bool { return id != "" }

func (id UserID) String() string { return string(id) }

// TrackID identifies a playable unit.
type TrackID string

func (id TrackID) String() string { return string(id) }

// UnmarshalJSON accepts both string and numeric ids.
func (id *TrackID) UnmarshalJSON(data []byte) error {
	s, err := scalarID(data)
	if err != nil {
		return fmt.Errorf("track id: %w", err)
	}
	*id = TrackID(s)
	return nil
}

// PlaylistID identifies a playlist.
type PlaylistID string

func (id PlaylistID) String() string { return string(id) }

// UnmarshalJSON accepts both string and numeric ids.
func (id *PlaylistID) UnmarshalJSON(data []byte) error {
	s, err := scalarID(data)
	if err != nil {
		return fmt.Errorf("playlist id: %w", err)
	}
	*id = PlaylistID(s)
	return nil
}

// scalarID decodes a JSON string or number into its string form.
func scalarID(data []byte) (string, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return "", nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return "", err
		}
		return s, nil
	}

	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&n); err != nil {
		return "", fmt.Errorf("expected string or number, got %s", data)
	}
	return n.String(), nil
}

// Profile is the cached user-profile record stored next to the token.
type Profile struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// Credential is an opaque bearer token plus the cached profile. It is created at sign-in and never mutated by the session.
type Credential struct {
	Token   string  `json:"token"`
	Profile Profile `json:"profile"`
}

// Empty reports whether the credential carries no token.
func (c Credential) Empty() bool { return strings.TrimSpace(c.Token) == "" }
