package main

import (
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	dbcmd "github.com/mdil/md-image-localizer/internal/db"
	"github.com/mdil/md-image-localizer/internal/localize"
)

func main() {
	app := &cli.App{
		Name:  "mdil",
		Usage: "download remote images referenced by markdown documents and rewrite the links to local copies",
		Commands: []*cli.Command{
			{
				Name:      "localize",
				Usage:     "copy a directory tree and localize every remote image reference inside the copy",
				ArgsUsage: "[dir]",
				Flags: append(commonFlags(),
					&cli.BoolFlag{
						Name:    "yes",
						Aliases: []string{"y"},
						Usage:   "skip the confirmation prompt",
					},
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "report what would be downloaded without copying or modifying anything",
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "download attempts per image",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "timeout per download attempt",
						Value: 30 * time.Second,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "delay between download attempts (0 retries immediately)",
					},
					&cli.StringFlag{
						Name:  "image-dir",
						Usage: "name of the per-document image directory",
						Value: "local_images",
					},
					&cli.StringFlag{
						Name:  "user-agent",
						Usage: "User-Agent header for download requests",
					},
					&cli.StringFlag{
						Name:  "log-file",
						Usage: "session log file (appended)",
						Value: "md-image-localizer.log",
					},
					&cli.BoolFlag{
						Name:  "quiet",
						Usage: "suppress console log output (the log file still gets everything)",
					},
				),
				Action: localize.LocalizeAction,
			},
			{
				Name:      "scan",
				Usage:     "list documents and their remote image references without downloading",
				ArgsUsage: "[dir]",
				Flags:     commonFlags(),
				Action:    localize.ScanAction,
			},
			{
				Name:  "db",
				Usage: "inspect the run history database",
				Subcommands: []*cli.Command{
					{
						Name:  "sessions",
						Usage: "list past runs",
						Flags: []cli.Flag{
							&cli.IntFlag{
								Name:  "limit",
								Usage: "number of sessions to show",
								Value: 20,
							},
						},
						Action: dbcmd.SessionsAction,
					},
					{
						Name:      "session",
						Usage:     "show details for one run (latest by default)",
						ArgsUsage: "[id]",
						Action:    dbcmd.SessionAction,
					},
				},
			},
		},
		DefaultCommand: "localize",
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// commonFlags are shared by localize and scan.
func commonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "config",
			Usage: "YAML config file",
		},
		&cli.StringFlag{
			Name:  "ext",
			Usage: "markdown file extension to scan for",
			Value: ".md",
		},
		&cli.BoolFlag{
			Name:  "html-images",
			Usage: "also localize raw <img> tags embedded in documents",
			Value: true,
		},
	}
}
