// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func formatFlag(value string) cli.Flag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format (json, yaml, csv, markdown, text)",
		Value:   value,
	}
}

func outputFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   "Write to this file instead of stdout",
	}
}

func userFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "user",
		Aliases: []string{"u"},
		Usage:   "Settings owner (default: the signed-in user)",
	}
}

// setupCommand handles setup operations for the database and config file.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Create config.toml if missing, initialize the database and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:   "rollback",
				Usage:  "Roll back the most recent migration",
				Action: r.SetupRollback,
			},
		},
	}
}

// authCommand handles authentication operations
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage the stored credential",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Store a bearer token (directly or from a browser 'Copy as cURL')",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "token",
						Usage: "Bearer token",
					},
					&cli.StringFlag{
						Name:  "curl",
						Usage: "cURL command from browser DevTools (Copy as cURL)",
					},
					&cli.StringFlag{
						Name:  "curl-file",
						Usage: "Path to .sh file containing cURL command",
					},
					&cli.StringFlag{
						Name:  "name",
						Usage: "Display name to store with the credential",
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:   "logout",
				Usage:  "Forget the stored credential and clear every cache",
				Action: r.AuthLogout,
			},
			{
				Name:    "whoami",
				Aliases: []string{"status"},
				Usage:   "Show the signed-in user",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.AuthWhoami,
			},
		},
	}
}

// likedCommand handles Liked Songs operations
func likedCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "liked",
		Usage: "Liked Songs",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List liked track ids",
				Flags:  []cli.Flag{formatFlag("text"), outputFlag()},
				Action: r.LikedList,
			},
			{
				Name:  "toggle",
				Usage: "Like or unlike a track",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "track"},
				},
				Action: r.LikedToggle,
			},
		},
	}
}

// playlistsCommand handles playlist operations
func playlistsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "playlists",
		Aliases: []string{"pl"},
		Usage:   "User playlists",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List playlists",
				Flags:  []cli.Flag{formatFlag("text"), outputFlag()},
				Action: r.PlaylistsList,
			},
			{
				Name:  "show",
				Usage: "Show one playlist and its tracks",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags:  []cli.Flag{formatFlag("markdown"), outputFlag()},
				Action: r.PlaylistsShow,
			},
			{
				Name:  "add-track",
				Usage: "Add a track to a playlist",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "track",
						Usage:    "Track ID to add",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "playlist",
						Aliases:  []string{"p"},
						Usage:    "Playlist ID to add the track to",
						Required: true,
					},
				},
				Action: r.PlaylistsAddTrack,
			},
		},
	}
}

// settingsCommand handles the advanced settings service
func settingsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "settings",
		Usage: "Advanced user settings",
		Commands: []*cli.Command{
			{
				Name:  "get",
				Usage: "Fetch one section (theme, language, security or full)",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "section", Value: "full"},
				},
				Flags:  []cli.Flag{userFlag(), formatFlag("yaml"), outputFlag()},
				Action: r.SettingsGet,
			},
			{
				Name:  "all",
				Usage: "Fetch several sections concurrently",
				Flags: []cli.Flag{
					userFlag(), formatFlag("yaml"), outputFlag(),
					&cli.StringSliceFlag{
						Name:    "section",
						Aliases: []string{"s"},
						Usage:   "Sections to fetch (default: theme, language, security, full)",
					},
				},
				Action: r.SettingsAll,
			},
			{
				Name:  "update",
				Usage: "Update a section, or the full document, from a JSON or YAML file",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "section", Value: "full"},
				},
				Flags: []cli.Flag{
					userFlag(), formatFlag("yaml"),
					&cli.StringFlag{
						Name:     "file",
						Usage:    "Path to the JSON or YAML body",
						Required: true,
					},
				},
				Action: r.SettingsUpdate,
			},
			{
				Name:  "reset",
				Usage: "Reset a section, or everything, to defaults",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "section", Value: "full"},
				},
				Flags:  []cli.Flag{userFlag(), formatFlag("yaml")},
				Action: r.SettingsReset,
			},
			{
				Name:  "export",
				Usage: "Export the full settings document",
				Flags: []cli.Flag{
					userFlag(), formatFlag("json"), outputFlag(),
					&cli.BoolFlag{
						Name:  "save",
						Usage: "Also keep a local snapshot for 'settings import --from-snapshot'",
					},
				},
				Action: r.SettingsExport,
			},
			{
				Name:  "import",
				Usage: "Replace the full settings document",
				Flags: []cli.Flag{
					userFlag(), formatFlag("yaml"),
					&cli.StringFlag{
						Name:  "file",
						Usage: "Path to a JSON or YAML settings document",
					},
					&cli.BoolFlag{
						Name:  "from-snapshot",
						Usage: "Import the last snapshot saved with 'settings export --save'",
					},
				},
				Action: r.SettingsImport,
			},
		},
	}
}

// tuiCommand returns the top-level TUI command.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch the interactive library browser",
		Action:  r.TUI,
	}
}
