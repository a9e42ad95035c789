package localize

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mdil/md-image-localizer/internal/common"
)

// Summary is the final report for a run, printed to the console and
// written as summary.yaml into the working copy root.
type Summary struct {
	SourceDir       string            `yaml:"source_dir"`
	WorkDir         string            `yaml:"work_dir,omitempty"`
	DryRun          bool              `yaml:"dry_run,omitempty"`
	StartedAt       time.Time         `yaml:"started_at"`
	DurationSeconds float64           `yaml:"duration_seconds"`
	Documents       int               `yaml:"documents"`
	Modified        int               `yaml:"modified"`
	FailedDocuments int               `yaml:"failed_documents"`
	ImagesFound     int               `yaml:"images_found"`
	ImagesLocalized int               `yaml:"images_localized"`
	CacheHits       int               `yaml:"cache_hits"`
	FailedDownloads int               `yaml:"failed_downloads"`
	Files           []DocumentSummary `yaml:"files,omitempty"`
}

// DocumentSummary is one document's outcome inside a Summary.
type DocumentSummary struct {
	Path            string `yaml:"path"`
	Status          string `yaml:"status"`
	ImagesFound     int    `yaml:"images_found,omitempty"`
	ImagesLocalized int    `yaml:"images_localized,omitempty"`
	CacheHits       int    `yaml:"cache_hits,omitempty"`
	Failures        int    `yaml:"failures,omitempty"`
	Error           string `yaml:"error,omitempty"`
}

// BuildSummary assembles the run report.
func BuildSummary(sourceDir, workDir string, dryRun bool, startedAt time.Time, totals Totals, results []FileResult) Summary {
	s := Summary{
		SourceDir:       sourceDir,
		WorkDir:         workDir,
		DryRun:          dryRun,
		StartedAt:       startedAt,
		DurationSeconds: time.Since(startedAt).Seconds(),
		Documents:       totals.DocumentsScanned,
		Modified:        totals.DocumentsModified,
		FailedDocuments: totals.DocumentsFailed,
		ImagesFound:     totals.ImagesFound,
		ImagesLocalized: totals.ImagesLocalized,
		CacheHits:       totals.CacheHits,
		FailedDownloads: totals.Failures,
	}

	root := workDir
	if root == "" {
		root = sourceDir
	}
	for _, r := range results {
		ds := DocumentSummary{
			Path:            common.DisplayPath(root, r.Path),
			Status:          r.Status(),
			ImagesFound:     r.ImagesFound,
			ImagesLocalized: r.ImagesLocalized,
			CacheHits:       r.CacheHits,
			Failures:        r.Failures,
		}
		if r.Error != nil {
			ds.Error = r.Error.Error()
		}
		s.Files = append(s.Files, ds)
	}
	return s
}

// WriteYAML writes the summary artifact into dir.
func (s Summary) WriteYAML(dir string) (string, error) {
	data, err := yaml.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("failed to marshal summary: %w", err)
	}

	path := filepath.Join(dir, "summary.yaml")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write summary: %w", err)
	}
	return path, nil
}

// Print writes the human-readable report.
func (s Summary) Print(w io.Writer) {
	fmt.Fprintln(w)
	if s.DryRun {
		fmt.Fprintln(w, "Dry run: nothing was downloaded or modified.")
	}
	fmt.Fprintf(w, "Source:            %s\n", s.SourceDir)
	if s.WorkDir != "" {
		fmt.Fprintf(w, "Working copy:      %s\n", s.WorkDir)
	}
	fmt.Fprintf(w, "Documents:         %d (%d modified, %d failed)\n",
		s.Documents, s.Modified, s.FailedDocuments)
	fmt.Fprintf(w, "Image references:  %d\n", s.ImagesFound)
	fmt.Fprintf(w, "Localized:         %d (%d cache hits)\n", s.ImagesLocalized, s.CacheHits)
	fmt.Fprintf(w, "Failed downloads:  %d\n", s.FailedDownloads)
	fmt.Fprintf(w, "Elapsed:           %.1fs\n", s.DurationSeconds)
}
