// Package models defines the client-side data model for playsync.
//
// The package contains three groups of types:
//
// 1. Identity: the stored [Credential] and the [UserID] derived from it
//
// 2. Library mirrors: in-memory copies of server-side collections
//   - [LikedTrackSet] : set of liked [TrackID]s, unordered
//   - [Playlist] : id, name and ordered track ids
//   - [PlaylistCollection] : playlists keyed by id, replaced wholesale on refresh
//
// 3. Settings documents: one struct per [Section], with the backend's defaults
//   - [ThemeSettings], [LanguageSettings], [SecuritySettings], [NotificationSettings], [PrivacySettings]
//   - [UserSettings] : the full document returned for [SectionFull]
//
// Identifiers are opaque. The backend emits integers where other clients use strings, so [TrackID]
// and [PlaylistID] decode from either JSON form and always encode as strings.
package models
