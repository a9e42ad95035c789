package db

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/mdil/md-image-localizer/internal/common"
	dbpkg "github.com/mdil/md-image-localizer/pkg/db"
)

// SessionsAction lists past localizer runs.
func SessionsAction(c *cli.Context) error {
	database, err := dbpkg.Open()
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	sessions, err := database.ListSessions(c.Int("limit"))
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	if len(sessions) == 0 {
		fmt.Println("No sessions found")
		return nil
	}

	fmt.Printf("%-6s %-20s %-8s %-10s %-10s %-8s %-8s %-40s\n",
		"ID", "Created", "Docs", "Localized", "CacheHits", "Failed", "Status", "Source")
	fmt.Println(strings.Repeat("-", 116))

	for _, s := range sessions {
		fmt.Printf("%-6d %-20s %-8d %-10d %-10d %-8d %-8s %-40s\n",
			s.SessionID,
			s.CreatedAt.Format("2006-01-02 15:04:05"),
			s.DocumentsScanned,
			s.ImagesLocalized,
			s.CacheHits,
			s.Failures,
			s.Status,
			common.Truncate(s.SourceDir, 40),
		)
	}

	fmt.Printf("\nTotal: %d sessions\n", len(sessions))
	fmt.Printf("\nTip: Use 'mdil db session <id>' to see details\n")

	return nil
}

// SessionAction shows details for a specific run, most recent by default.
func SessionAction(c *cli.Context) error {
	database, err := dbpkg.Open()
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	sessionID, err := sessionIDOrLatest(c, database)
	if err != nil {
		return err
	}

	session, err := database.GetSessionByID(sessionID)
	if err != nil {
		return fmt.Errorf("failed to get session: %w", err)
	}

	docs, err := database.GetSessionDocuments(sessionID)
	if err != nil {
		return fmt.Errorf("failed to get session documents: %w", err)
	}

	images, err := database.GetSessionImages(sessionID)
	if err != nil {
		return fmt.Errorf("failed to get session images: %w", err)
	}

	fmt.Printf("Session %d\n", session.SessionID)
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("Created:     %s\n", session.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("Source:      %s\n", session.SourceDir)
	if session.WorkDir != "" {
		fmt.Printf("Working copy: %s\n", session.WorkDir)
	}
	fmt.Printf("Status:      %s", session.Status)
	if session.DryRun {
		fmt.Printf(" (dry run)")
	}
	fmt.Println()
	fmt.Printf("Documents:   %d total (%d modified, %d failed)\n",
		session.DocumentsScanned, session.DocumentsModified, session.DocumentsFailed)
	fmt.Printf("Images:      %d found, %d localized, %d cache hits, %d failed\n",
		session.ImagesFound, session.ImagesLocalized, session.CacheHits, session.Failures)
	fmt.Printf("Duration:    %.1fs\n", session.DurationSeconds)

	if len(docs) > 0 {
		fmt.Printf("\nDocuments (%d):\n", len(docs))
		fmt.Println(strings.Repeat("-", 60))
		for _, d := range docs {
			line := fmt.Sprintf("  %-9s %s (%d/%d images)", d.Status, d.Path, d.ImagesLocalized, d.ImagesFound)
			if d.Error != "" {
				line += ": " + common.Truncate(d.Error, 60)
			}
			fmt.Println(line)
		}
	}

	if len(images) > 0 {
		fmt.Printf("\nImages (%d):\n", len(images))
		fmt.Println(strings.Repeat("-", 60))
		for _, img := range images {
			switch img.Status {
			case "failed":
				fmt.Printf("  failed    %s (%s)\n", common.Truncate(img.URL, 60), common.Truncate(img.Error, 40))
			case "cached":
				fmt.Printf("  cached    %s\n", common.Truncate(img.URL, 60))
			default:
				fmt.Printf("  localized %s -> %s\n", common.Truncate(img.URL, 60), img.LocalPath)
			}
		}
	}

	return nil
}

// sessionIDOrLatest resolves the positional session ID argument, falling
// back to the most recent session.
func sessionIDOrLatest(c *cli.Context, database *dbpkg.DB) (int64, error) {
	arg := c.Args().First()
	if arg == "" {
		return database.LatestSessionID()
	}
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid session ID: %s", arg)
	}
	return id, nil
}
