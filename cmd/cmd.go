// submodule cmd contains command definitions
package main

import (
	"strings"

	"github.com/desertthunder/musix/internal/formatter"
	"github.com/desertthunder/musix/internal/shared"
	"github.com/urfave/cli/v3"
)

func profileFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "profile",
		Aliases: []string{"p"},
		Usage:   "Profile ID",
		Value:   shared.DefaultID,
	}
}

func playlistFlag(required bool) cli.Flag {
	return &cli.StringFlag{
		Name:     "playlist",
		Aliases:  []string{"l"},
		Usage:    "Playlist name (created when missing)",
		Required: required,
	}
}

func quietFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:    "quiet",
		Aliases: []string{"q"},
		Usage:   "Log progress lines instead of the progress view",
	}
}

func formatFlag() cli.Flag {
	names := make([]string, len(formatter.Formats))
	for i, f := range formatter.Formats {
		names[i] = string(f)
	}
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format (" + strings.Join(names, "|") + ")",
		Value:   string(formatter.FormatText),
	}
}

// setupCommand initializes config, database and profiles directory.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create config, run database migrations and create the profiles directory",
		Action: r.Setup,
	}
}

// serveCommand starts the HTTP API.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (default: server.host:server.port from config)",
			},
			&cli.StringFlag{
				Name:  "static",
				Usage: "Directory served at / (overrides paths.static_dir)",
			},
		},
		Action: r.Serve,
	}
}

// doctorCommand reports external dependencies.
func doctorCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "doctor",
		Usage: "Check for yt-dlp and ffmpeg",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Doctor,
	}
}

// searchCommand searches YouTube through yt-dlp.
func searchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "search",
		Usage: "Search YouTube for tracks",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "query",
			},
		},
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of results (default: tool.search_limit from config)",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON (same as --format json)",
			},
			formatFlag(),
			&cli.BoolFlag{
				Name:  "pick",
				Usage: "Choose a result interactively and download it into --playlist",
			},
			profileFlag(),
			playlistFlag(false),
			quietFlag(),
		},
		Action: r.Search,
	}
}

// downloadCommand runs a single-track job.
func downloadCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "download",
		Aliases: []string{"dl"},
		Usage:   "Download one video as MP3 into a playlist",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "id",
			},
		},
		Flags:  []cli.Flag{profileFlag(), playlistFlag(true), quietFlag()},
		Action: r.Download,
	}
}

// importCommand runs a batch job.
func importCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Download several videos into a playlist, skipping ones already present",
		ArgsUsage: "<id>...",
		Flags: []cli.Flag{
			profileFlag(),
			playlistFlag(true),
			&cli.StringFlag{
				Name:  "source-url",
				Usage: "Playlist URL the ids came from, used to label failures",
			},
			quietFlag(),
		},
		Action: r.Import,
	}
}

// profileCommand manages profiles.
func profileCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "profile",
		Usage: "Manage profiles",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List profiles",
				Flags:  []cli.Flag{&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"}},
				Action: r.ProfileList,
			},
			{
				Name:  "create",
				Usage: "Create a profile",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "name",
					},
				},
				Action: r.ProfileCreate,
			},
			{
				Name:  "delete",
				Usage: "Delete a profile and all of its playlists",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "id",
					},
				},
				Action: r.ProfileDelete,
			},
		},
	}
}

// playlistCommand inspects and manages playlists on disk.
func playlistCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "playlist",
		Aliases: []string{"pl"},
		Usage:   "Manage a profile's playlists",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List playlists with track counts",
				Flags: []cli.Flag{
					profileFlag(),
					&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"},
				},
				Action: r.PlaylistList,
			},
			{
				Name:  "show",
				Usage: "List the tracks of a playlist",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "name",
					},
				},
				Flags: []cli.Flag{
					profileFlag(),
					formatFlag(),
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write to a file instead of stdout",
					},
				},
				Action: r.PlaylistShow,
			},
			{
				Name:  "create",
				Usage: "Create an empty playlist",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "name",
					},
				},
				Flags:  []cli.Flag{profileFlag()},
				Action: r.PlaylistCreate,
			},
			{
				Name:  "delete",
				Usage: "Delete a playlist and its tracks",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "name",
					},
				},
				Flags:  []cli.Flag{profileFlag()},
				Action: r.PlaylistDelete,
			},
		},
	}
}

// historyCommand prints recorded download outcomes.
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show recent download outcomes",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "profile",
				Aliases: []string{"p"},
				Usage:   "Only show this profile",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of records",
				Value: 50,
			},
			formatFlag(),
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write to a file instead of stdout",
			},
		},
		Action: r.History,
	}
}

// spotifyCommand handles Spotify operations
func spotifyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "spotify",
		Aliases: []string{"spot"},
		Usage:   "Spotify playlist operations",
		Commands: []*cli.Command{
			{
				Name:    "login",
				Aliases: []string{"auth"},
				Usage:   "Authenticate with Spotify using OAuth2 and save the token to config",
				Action:  r.SpotifyLogin,
			},
			{
				Name:  "playlists",
				Usage: "List Spotify playlists",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of playlists to return",
						Value: 50,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
						Value: true,
					},
				},
				Action: r.SpotifyPlaylists,
			},
			{
				Name:  "import",
				Usage: "Match a Spotify playlist on YouTube and download it (pick one when no id is given)",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "id",
					},
				},
				Flags: []cli.Flag{
					profileFlag(),
					&cli.StringFlag{
						Name:    "playlist",
						Aliases: []string{"l"},
						Usage:   "Local playlist name (default: the Spotify playlist's name)",
					},
					quietFlag(),
				},
				Action: r.SpotifyImport,
			},
		},
	}
}
