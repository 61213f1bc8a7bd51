package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/desertthunder/playsync/internal/formatter"
	"github.com/desertthunder/playsync/internal/gateway"
	"github.com/desertthunder/playsync/internal/models"
	"github.com/desertthunder/playsync/internal/playback"
	"github.com/desertthunder/playsync/internal/session"
	"github.com/desertthunder/playsync/internal/shared"
	"github.com/urfave/cli/v3"
)

// signedIn opens the session and requires a resolved identity.
func (r *Runner) signedIn(ctx context.Context) (*session.Session, error) {
	sess, err := r.open(ctx)
	if err != nil {
		return nil, err
	}
	if !sess.Identity().Valid() {
		return nil, fmt.Errorf("%w: run 'playsync auth login' first", shared.ErrNotAuthenticated)
	}
	return sess, nil
}

// ensureLoaded refreshes both caches when the refresh done by [session.Session.Start] left either one empty.
func ensureLoaded(ctx context.Context, sess *session.Session) error {
	if sess.Liked().Loaded() && sess.Playlists().Loaded() {
		return nil
	}
	return sess.RefreshAll(ctx)
}

// LikedList prints the liked track ids.
func (r *Runner) LikedList(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	sess, err := r.signedIn(ctx)
	if err != nil {
		return err
	}
	if err := ensureLoaded(ctx, sess); err != nil {
		return fmt.Errorf("failed to fetch liked songs: %w", err)
	}

	ids := sess.Liked().Snapshot().IDs()
	r.logger.Debug("liked songs", "count", len(ids))

	data, err := formatter.Liked(format, ids)
	if err != nil {
		return err
	}
	return r.writeRendered(data, cmd.String("output"))
}

// LikedToggle likes the track when it is not liked, unlikes it otherwise.
func (r *Runner) LikedToggle(ctx context.Context, cmd *cli.Command) error {
	track := models.TrackID(cmd.StringArg("track"))
	if track == "" {
		return fmt.Errorf("%w: track id", shared.ErrMissingArgument)
	}
	sess, err := r.signedIn(ctx)
	if err != nil {
		return err
	}
	if err := ensureLoaded(ctx, sess); err != nil {
		return fmt.Errorf("failed to fetch liked songs: %w", err)
	}

	result, err := sess.Controller().ToggleLikeTrack(ctx, track)
	switch result.Status {
	case playback.StatusApplied:
		if result.Liked {
			return r.writePlain("♥ Liked %s\n", track)
		}
		return r.writePlain("✓ Unliked %s\n", track)
	case playback.StatusRolledBack:
		return fmt.Errorf("failed to update %s: %w", track, err)
	default:
		return fmt.Errorf("toggle %s: %s", track, result.Status)
	}
}

// PlaylistsList prints every playlist except Liked Songs.
func (r *Runner) PlaylistsList(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	sess, err := r.signedIn(ctx)
	if err != nil {
		return err
	}
	if err := ensureLoaded(ctx, sess); err != nil {
		return fmt.Errorf("failed to fetch playlists: %w", err)
	}

	data, err := formatter.Playlists(format, sess.Playlists().List())
	if err != nil {
		return err
	}
	return r.writeRendered(data, cmd.String("output"))
}

// PlaylistsShow prints one playlist with its tracks.
func (r *Runner) PlaylistsShow(ctx context.Context, cmd *cli.Command) error {
	id := models.PlaylistID(cmd.StringArg("id"))
	if id == "" {
		return fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
	}
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	sess, err := r.signedIn(ctx)
	if err != nil {
		return err
	}

	if err := ensureLoaded(ctx, sess); err != nil {
		return fmt.Errorf("failed to fetch playlists: %w", err)
	}
	pl, ok := sess.Playlists().Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, id)
	}
	data, err := formatter.Playlists(format, []models.Playlist{pl})
	if err != nil {
		return err
	}
	return r.writeRendered(data, cmd.String("output"))
}

// PlaylistsAddTrack adds a track and waits for the playlist cache to pick it up.
func (r *Runner) PlaylistsAddTrack(ctx context.Context, cmd *cli.Command) error {
	track := models.TrackID(cmd.String("track"))
	playlist := models.PlaylistID(cmd.String("playlist"))

	sess, err := r.signedIn(ctx)
	if err != nil {
		return err
	}
	if sess.Playlists().Loaded() {
		if _, ok := sess.Playlists().Get(playlist); !ok {
			return fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, playlist)
		}
	}

	if err := sess.Controller().AddTrackToPlaylist(ctx, track, playlist); err != nil {
		if f, ok := gateway.AsFailure(err); ok && f.Status == http.StatusNotFound {
			return fmt.Errorf("%w: %s (%s)", shared.ErrPlaylistNotFound, playlist, f.Detail())
		}
		return fmt.Errorf("failed to add %s to %s: %w", track, playlist, err)
	}
	sess.Playlists().Wait()

	pl, _ := sess.Playlists().Get(playlist)
	r.logger.Info("track added", "track", track, "playlist", playlist)
	return r.writePlain("✓ Added %s to %s (%d tracks)\n", track, pl.Name, pl.TrackCount())
}
