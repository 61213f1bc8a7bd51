package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/playsync/internal/identity"
	"github.com/desertthunder/playsync/internal/models"
	"github.com/desertthunder/playsync/internal/shared"
	"github.com/urfave/cli/v3"
)

// AuthLogin stores a bearer token taken from --token, --curl or --curl-file and loads the user's library.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	token, err := r.loginToken(cmd.String("token"), cmd.String("curl"), cmd.String("curl-file"))
	if err != nil {
		return err
	}

	user, ok := identity.NewResolver().Resolve(token)
	if !ok {
		return fmt.Errorf("%w: token has no usable identity or has expired", shared.ErrInvalidCredentials)
	}

	sess, err := r.open(ctx)
	if err != nil {
		return err
	}

	cred := models.Credential{
		Token:   token,
		Profile: models.Profile{ID: user.String(), DisplayName: cmd.String("name")},
	}
	if err := sess.SignIn(ctx, cred); err != nil {
		if sess.Identity() != user {
			return err
		}
		r.logger.Warn("signed in but library refresh failed", "error", err)
	}

	r.logger.Info("authentication successful", "user", user)
	r.writePlain("✓ Signed in as %s\n", user)
	r.writePlain("Liked songs: %d\n", sess.Liked().Snapshot().Len())
	return r.writePlain("Playlists: %d\n", sess.Playlists().Len())
}

func (r *Runner) loginToken(token, curl, curlFile string) (string, error) {
	sources := 0
	for _, s := range []string{token, curl, curlFile} {
		if s != "" {
			sources++
		}
	}
	switch {
	case sources == 0:
		return "", fmt.Errorf("%w: one of --token, --curl or --curl-file must be provided", shared.ErrMissingArgument)
	case sources > 1:
		return "", fmt.Errorf("%w: --token, --curl and --curl-file are mutually exclusive", shared.ErrInvalidArgument)
	case token != "":
		return strings.TrimPrefix(strings.TrimSpace(token), "Bearer "), nil
	}

	var (
		headers *shared.CurlHeaders
		err     error
	)
	if curlFile != "" {
		headers, err = shared.ParseCurlFile(curlFile)
		if err != nil {
			return "", fmt.Errorf("failed to parse cURL file: %w", err)
		}
		r.logger.Info("parsed cURL from file", "file", curlFile)
	} else {
		headers, err = shared.ParseCurlCommand([]byte(curl))
		if err != nil {
			return "", fmt.Errorf("failed to parse cURL command: %w", err)
		}
		r.logger.Info("parsed cURL command")
	}
	return headers.BearerToken()
}

// AuthLogout clears the stored credential and every cache.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	sess, err := r.open(ctx)
	if err != nil {
		return err
	}

	prev := sess.Identity()
	if err := sess.SignOut(ctx); err != nil {
		return err
	}
	if !prev.Valid() {
		return r.writePlain("Not signed in\n")
	}
	return r.writePlain("✓ Signed out %s\n", prev)
}

type whoami struct {
	User        string     `json:"user"`
	DisplayName string     `json:"display_name,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	Liked       int        `json:"liked"`
	Playlists   int        `json:"playlists"`
}

// AuthWhoami shows who the stored credential belongs to.
func (r *Runner) AuthWhoami(ctx context.Context, cmd *cli.Command) error {
	sess, err := r.open(ctx)
	if err != nil {
		return err
	}

	user := sess.Identity()
	if !user.Valid() {
		return fmt.Errorf("%w: run 'playsync auth login' first", shared.ErrNotAuthenticated)
	}

	info := whoami{
		User:        user.String(),
		DisplayName: sess.Profile().DisplayName,
		Liked:       sess.Liked().Snapshot().Len(),
		Playlists:   sess.Playlists().Len(),
	}
	if cred, err := sess.Credentials().Credential(); err == nil {
		if exp, ok := identity.NewResolver().Expiry(cred.Token); ok {
			info.ExpiresAt = &exp
		}
	}

	if cmd.Bool("json") {
		return r.writeJSON(info, true)
	}

	r.writePlainHeader("Signed in")
	r.writePlain("User: %s\n", info.User)
	if info.DisplayName != "" {
		r.writePlain("Name: %s\n", info.DisplayName)
	}
	if info.ExpiresAt != nil {
		r.writePlain("Expires: %s\n", info.ExpiresAt.Local().Format(time.RFC1123))
	}
	r.writePlain("Liked songs: %d\n", info.Liked)
	return r.writePlain("Playlists: %d\n", info.Playlists)
}
