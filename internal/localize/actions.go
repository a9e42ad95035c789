package localize

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/mdil/md-image-localizer/internal/common"
	"github.com/mdil/md-image-localizer/models"
	"github.com/mdil/md-image-localizer/pkg/cache"
	"github.com/mdil/md-image-localizer/pkg/db"
	"github.com/mdil/md-image-localizer/pkg/fetcher"
	"github.com/mdil/md-image-localizer/pkg/markdown"
	"github.com/mdil/md-image-localizer/pkg/scanner"
	"github.com/mdil/md-image-localizer/pkg/storage"
	"github.com/mdil/md-image-localizer/pkg/workcopy"
)

// LocalizeAction is the main command: copy the target tree, download
// every remote image into per-document cache directories, rewrite the
// documents in the copy, and report.
func LocalizeAction(c *cli.Context) error {
	config, err := resolveConfig(c)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Error: %v", err), 2)
	}

	targetDir := c.Args().First()
	if targetDir == "" {
		targetDir = "."
	}

	logger, closeLog, err := newLogger(c.Bool("quiet"), config.LogFile)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Error: cannot open log file: %v", err), 2)
	}
	defer closeLog()

	info, err := os.Stat(targetDir)
	if err != nil || !info.IsDir() {
		logger.Error("Target is not an accessible directory", "dir", targetDir, "error", err)
		return cli.Exit(fmt.Sprintf("Error: %s is not an accessible directory", targetDir), 2)
	}

	dryRun := c.Bool("dry-run")
	if !dryRun && !c.Bool("yes") && !confirm(targetDir) {
		return cli.Exit("Aborted.", 1)
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
	defer stop()

	startedAt := time.Now()

	// Work on an isolated copy; the original tree is never mutated.
	workDir := ""
	runRoot := targetDir
	if !dryRun {
		workDir, err = workcopy.Create(targetDir)
		if err != nil {
			logger.Error("Failed to create working copy", "dir", targetDir, "error", err)
			return cli.Exit(fmt.Sprintf("Error: failed to create working copy: %v", err), 2)
		}
		runRoot = workDir
		logger.Info("Working copy created", "dir", workDir)
	}

	database, err := db.Open()
	if err != nil {
		logger.Warn("History database unavailable, continuing without it", "error", err)
		database = nil
	} else {
		defer database.Close()
	}

	var sessionID int64
	if database != nil {
		sessionID, err = database.CreateSession(targetDir, workDir, dryRun)
		if err != nil {
			logger.Warn("Failed to create session record", "error", err)
		}
	}

	runner := &Runner{
		Logger: logger,
		Fetcher: fetcher.New(fetcher.Options{
			Timeout:    config.Timeout.Std(),
			MaxRetries: config.MaxRetries,
			RetryDelay: config.RetryDelay.Std(),
			UserAgent:  config.UserAgent,
			Logger:     logger,
		}),
		DB:     database,
		Config: config,
		DryRun: dryRun,
	}

	results, totals, runErr := runner.Run(ctx, runRoot, sessionID)

	status := "completed"
	if runErr != nil {
		status = "aborted"
	}
	if database != nil && sessionID > 0 {
		if err := database.FinishSession(sessionID, status, dbTotals(totals), time.Since(startedAt).Seconds()); err != nil {
			logger.Warn("Failed to finalize session record", "error", err)
		}
	}

	summary := BuildSummary(targetDir, workDir, dryRun, startedAt, totals, results)
	if workDir != "" {
		if path, err := summary.WriteYAML(workDir); err != nil {
			logger.Warn("Failed to write summary artifact", "error", err)
		} else {
			logger.Info("Summary written", "file", path)
		}
	}
	summary.Print(os.Stdout)

	if runErr != nil {
		logger.Error("Run aborted", "error", runErr)
		return cli.Exit(fmt.Sprintf("Error: run aborted: %v", runErr), 1)
	}
	return nil
}

// ScanAction lists documents and their remote image references without
// downloading anything.
func ScanAction(c *cli.Context) error {
	config, err := resolveConfig(c)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Error: %v", err), 2)
	}

	targetDir := c.Args().First()
	if targetDir == "" {
		targetDir = "."
	}

	paths, err := scanner.Scan(targetDir, config.FileExt)
	if err != nil {
		return fmt.Errorf("failed to scan directory: %w", err)
	}

	totalRefs := 0
	for _, path := range paths {
		data, _, err := storage.ReadDocument(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "skipping %s: %v\n", path, err)
			continue
		}
		content := string(data)

		images := markdown.ExtractImages(content)
		if config.HTMLImages {
			if htmlImages, err := markdown.ExtractHTMLImages(content); err == nil {
				images = append(images, htmlImages...)
			}
		}
		if len(images) == 0 {
			continue
		}

		fmt.Printf("%s (%d remote images)\n", common.DisplayPath(targetDir, path), len(images))
		for _, img := range images {
			fmt.Printf("  %s  %s\n", cache.Key(img.URL)[:12], img.URL)
		}
		totalRefs += len(images)
	}

	fmt.Printf("\n%d documents scanned, %d remote image references\n", len(paths), totalRefs)
	return nil
}

// resolveConfig layers CLI flags over the optional config file over the
// defaults.
func resolveConfig(c *cli.Context) (models.Config, error) {
	config := models.DefaultConfig()
	if c.IsSet("config") {
		loaded, err := models.LoadConfig(c.String("config"))
		if err != nil {
			return config, err
		}
		config = loaded
	}

	if c.IsSet("ext") {
		config.FileExt = c.String("ext")
	}
	if c.IsSet("image-dir") {
		config.ImageDirName = c.String("image-dir")
	}
	if c.IsSet("max-retries") {
		config.MaxRetries = c.Int("max-retries")
	}
	if c.IsSet("timeout") {
		config.Timeout = models.Duration(c.Duration("timeout"))
	}
	if c.IsSet("retry-delay") {
		config.RetryDelay = models.Duration(c.Duration("retry-delay"))
	}
	if c.IsSet("user-agent") {
		config.UserAgent = c.String("user-agent")
	}
	if c.IsSet("html-images") {
		config.HTMLImages = c.Bool("html-images")
	}
	if c.IsSet("log-file") {
		config.LogFile = c.String("log-file")
	}
	return config, nil
}

// newLogger builds the session logger: JSON records appended to the log
// file and mirrored to stderr.
func newLogger(quiet bool, logFile string) (*slog.Logger, func(), error) {
	file, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, err
	}

	// The log file gets every record; quiet only silences the console.
	var out io.Writer = io.MultiWriter(os.Stderr, file)
	if quiet {
		out = file
	}

	logger := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: slog.LevelInfo}))
	return logger, func() { _ = file.Close() }, nil
}

func confirm(targetDir string) bool {
	fmt.Printf("This will copy %q into a new working directory and download remote images into it.\nProceed? [y/N]: ", targetDir)
	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(answer), "y")
}

func dbTotals(t Totals) db.Totals {
	return db.Totals{
		DocumentsScanned:  t.DocumentsScanned,
		DocumentsModified: t.DocumentsModified,
		DocumentsFailed:   t.DocumentsFailed,
		ImagesFound:       t.ImagesFound,
		ImagesLocalized:   t.ImagesLocalized,
		CacheHits:         t.CacheHits,
		Failures:          t.Failures,
	}
}
