// Package ui implements the interactive terminal client using bubbletea's Elm architecture.
//
// The TUI has three views:
//  1. [LibraryView] : Liked Songs and playlists side by side, tab switches focus
//  2. [PickPlaylistView] : choose a playlist for the now-playing track
//  3. [SettingsView] : every settings section fetched concurrently
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Both library regions subscribe to the session bus through [Model.Subscribe]; each notification becomes a Msg that
// rebuilds the region from the cache snapshot, so a like toggled anywhere shows up in both.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, tab, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
