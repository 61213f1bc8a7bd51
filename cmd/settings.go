package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/desertthunder/playsync/internal/formatter"
	"github.com/desertthunder/playsync/internal/gateway"
	"github.com/desertthunder/playsync/internal/models"
	"github.com/desertthunder/playsync/internal/session"
	"github.com/desertthunder/playsync/internal/settings"
	"github.com/desertthunder/playsync/internal/shared"
	"github.com/desertthunder/playsync/internal/store"
	"github.com/urfave/cli/v3"
)

// settingsUser resolves the settings owner: --user when given, the signed-in user otherwise.
func (r *Runner) settingsUser(ctx context.Context, cmd *cli.Command) (*session.Session, models.UserID, error) {
	sess, err := r.open(ctx)
	if err != nil {
		return nil, "", err
	}
	if u := cmd.String("user"); u != "" {
		return sess, models.UserID(u), nil
	}
	if user := sess.Identity(); user.Valid() {
		return sess, user, nil
	}
	return nil, "", fmt.Errorf("%w: sign in or pass --user", shared.ErrNotAuthenticated)
}

func sectionArg(cmd *cli.Command) (models.Section, error) {
	s := cmd.StringArg("section")
	if s == "" {
		s = models.SectionFull.String()
	}
	section, err := models.ParseSection(s)
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}
	return section, nil
}

// writeDocument renders a single response in the requested format.
func (r *Runner) writeDocument(cmd *cli.Command, section models.Section, resp *gateway.Response) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	doc, err := settings.SectionResult{Section: section, Response: resp}.Document()
	if err != nil {
		return err
	}
	data, err := formatter.Document(format, doc)
	if err != nil {
		return err
	}
	return r.writeRendered(data, cmd.String("output"))
}

// SettingsGet prints one section.
func (r *Runner) SettingsGet(ctx context.Context, cmd *cli.Command) error {
	section, err := sectionArg(cmd)
	if err != nil {
		return err
	}
	sess, user, err := r.settingsUser(ctx, cmd)
	if err != nil {
		return err
	}

	resp, err := sess.Settings().Get(ctx, user, section)
	if err != nil {
		return fmt.Errorf("failed to fetch %s settings: %w", section, err)
	}
	return r.writeDocument(cmd, section, resp)
}

// SettingsAll fetches several sections concurrently. Failed sections are reported in place; the command
// only fails when every section did.
func (r *Runner) SettingsAll(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	var sections []models.Section
	for _, s := range cmd.StringSlice("section") {
		section, err := models.ParseSection(s)
		if err != nil {
			return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
		}
		sections = append(sections, section)
	}

	sess, user, err := r.settingsUser(ctx, cmd)
	if err != nil {
		return err
	}

	total := len(sections)
	if total == 0 {
		total = len(settings.DefaultSections)
	}
	progress := make(chan settings.Progress, total)
	results := settings.NewAggregator(sess.Settings(), settings.WithProgress(progress)).
		GetAllSections(ctx, user, sections...)

	for len(progress) > 0 {
		p := <-progress
		r.logger.Debug("section fetched", "section", p.Section, "step", p.Step, "total", p.Total, "error", p.Err)
	}

	failed := settings.Failed(results)
	for _, f := range failed {
		r.logger.Warn("section failed", "section", f.Section, "error", f.Err)
	}

	data, err := formatter.Sections(format, results)
	if err != nil {
		return err
	}
	if err := r.writeRendered(data, cmd.String("output")); err != nil {
		return err
	}

	if len(failed) == len(results) {
		errs := make([]error, 0, len(failed))
		for _, f := range failed {
			errs = append(errs, f.Err)
		}
		return fmt.Errorf("every settings section failed: %w", errors.Join(errs...))
	}
	return nil
}

// SettingsUpdate sends the body in --file to one section, or as a sparse full-document update.
func (r *Runner) SettingsUpdate(ctx context.Context, cmd *cli.Command) error {
	section, err := sectionArg(cmd)
	if err != nil {
		return err
	}
	sess, user, err := r.settingsUser(ctx, cmd)
	if err != nil {
		return err
	}

	var body any
	if section == models.SectionFull {
		var update models.SettingsUpdate
		if err := formatter.ReadFile(cmd.String("file"), &update); err != nil {
			return err
		}
		if update.Empty() {
			return fmt.Errorf("%w: %s sets no sections", shared.ErrInvalidArgument, cmd.String("file"))
		}
		body = update
	} else {
		var fields map[string]any
		if err := formatter.ReadFile(cmd.String("file"), &fields); err != nil {
			return err
		}
		body = fields
	}

	resp, err := sess.Settings().Update(ctx, user, section, body)
	if err != nil {
		return fmt.Errorf("failed to update %s settings: %w", section, err)
	}
	r.logger.Info("settings updated", "user", user, "section", section)
	return r.writeDocument(cmd, section, resp)
}

// SettingsReset restores one section, or the whole document, to defaults.
func (r *Runner) SettingsReset(ctx context.Context, cmd *cli.Command) error {
	section, err := sectionArg(cmd)
	if err != nil {
		return err
	}
	sess, user, err := r.settingsUser(ctx, cmd)
	if err != nil {
		return err
	}

	if section == models.SectionFull {
		doc, err := sess.Settings().ResetAll(ctx, user)
		if err != nil {
			return fmt.Errorf("failed to reset settings: %w", err)
		}
		return r.writeSettings(cmd, doc)
	}

	resp, err := sess.Settings().Reset(ctx, user, section)
	if err != nil {
		return fmt.Errorf("failed to reset %s settings: %w", section, err)
	}
	r.logger.Info("settings reset", "user", user, "section", section, "status", resp.StatusCode)

	// The reset route answers with a message, so show the restored section instead.
	if resp, err = sess.Settings().Get(ctx, user, section); err != nil {
		return fmt.Errorf("failed to fetch %s settings: %w", section, err)
	}
	return r.writeDocument(cmd, section, resp)
}

// SettingsExport prints the full document and optionally keeps it as the user's local snapshot.
func (r *Runner) SettingsExport(ctx context.Context, cmd *cli.Command) error {
	sess, user, err := r.settingsUser(ctx, cmd)
	if err != nil {
		return err
	}

	resp, err := sess.Settings().Export(ctx, user)
	if err != nil {
		return fmt.Errorf("failed to export settings: %w", err)
	}
	var doc models.UserSettings
	if err := resp.Decode(&doc); err != nil {
		return err
	}

	if cmd.Bool("save") {
		if err := sess.Snapshots().SaveSnapshot(user, doc); err != nil {
			return err
		}
		r.logger.Info("settings snapshot saved", "user", user)
	}
	return r.writeSettings(cmd, doc)
}

// SettingsImport replaces the full document with --file or the saved snapshot.
func (r *Runner) SettingsImport(ctx context.Context, cmd *cli.Command) error {
	path, fromSnapshot := cmd.String("file"), cmd.Bool("from-snapshot")
	switch {
	case path == "" && !fromSnapshot:
		return fmt.Errorf("%w: either --file or --from-snapshot must be provided", shared.ErrMissingArgument)
	case path != "" && fromSnapshot:
		return fmt.Errorf("%w: cannot specify both --file and --from-snapshot", shared.ErrInvalidArgument)
	}

	sess, user, err := r.settingsUser(ctx, cmd)
	if err != nil {
		return err
	}

	var doc models.UserSettings
	if fromSnapshot {
		snap, err := sess.Snapshots().Snapshot(user)
		if errors.Is(err, store.ErrNoSnapshot) {
			return fmt.Errorf("%w: run 'playsync settings export --save' first", err)
		} else if err != nil {
			return err
		}
		r.logger.Info("importing snapshot", "user", user, "created_at", snap.CreatedAt)
		doc = snap.Document
	} else if doc, err = formatter.ReadDocument(path); err != nil {
		return err
	}

	imported, err := sess.Settings().Import(ctx, user, doc)
	if err != nil {
		return fmt.Errorf("failed to import settings: %w", err)
	}
	return r.writeSettings(cmd, imported)
}

func (r *Runner) writeSettings(cmd *cli.Command, doc models.UserSettings) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	data, err := formatter.Document(format, doc)
	if err != nil {
		return err
	}
	return r.writeRendered(data, cmd.String("output"))
}
