package localize

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"

	"github.com/mdil/md-image-localizer/internal/common"
	"github.com/mdil/md-image-localizer/models"
	"github.com/mdil/md-image-localizer/pkg/cache"
	"github.com/mdil/md-image-localizer/pkg/db"
	"github.com/mdil/md-image-localizer/pkg/fetcher"
	"github.com/mdil/md-image-localizer/pkg/markdown"
	"github.com/mdil/md-image-localizer/pkg/scanner"
	"github.com/mdil/md-image-localizer/pkg/storage"
)

// Runner walks a tree and localizes remote images document by document.
// Processing is strictly sequential; the only shared state is the
// counters, owned by the single control flow.
type Runner struct {
	Logger  *slog.Logger
	Fetcher *fetcher.Fetcher
	DB      *db.DB // optional; nil disables history recording
	Config  models.Config
	DryRun  bool
}

// Run scans root for documents and processes each in turn. A scan error
// is fatal; a per-document error is logged, counted and skipped.
func (r *Runner) Run(ctx context.Context, root string, sessionID int64) ([]FileResult, Totals, error) {
	var (
		results []FileResult
		totals  Totals
	)

	paths, err := scanner.Scan(root, r.Config.FileExt)
	if err != nil {
		return nil, totals, fmt.Errorf("failed to scan directory: %w", err)
	}
	r.Logger.Info("Scan complete", "root", root, "documents", len(paths))

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return results, totals, err
		}

		var documentID int64
		if r.DB != nil {
			documentID, err = r.DB.InsertDocument(sessionID, common.DisplayPath(root, path))
			if err != nil {
				r.Logger.Warn("Failed to record document", "path", path, "error", err)
			}
		}

		result := r.ProcessDocument(ctx, path, sessionID, documentID)
		results = append(results, result)
		totals.add(result)

		if result.Error != nil {
			r.Logger.Error("Document failed", "path", path, "error", result.Error)
		} else {
			r.Logger.Info("Document processed",
				"path", common.DisplayPath(root, path),
				"images", result.ImagesFound,
				"localized", result.ImagesLocalized,
				"cache_hits", result.CacheHits,
				"failures", result.Failures,
				"modified", result.Modified)
		}

		if r.DB != nil && documentID > 0 {
			errMsg := ""
			if result.Error != nil {
				errMsg = result.Error.Error()
			}
			if dbErr := r.DB.FinishDocument(documentID, result.Status(),
				result.ImagesFound, result.ImagesLocalized, result.Failures, errMsg); dbErr != nil {
				r.Logger.Warn("Failed to update document record", "path", path, "error", dbErr)
			}
		}
	}

	return results, totals, nil
}

// ProcessDocument localizes every remote image reference in one document
// and rewrites it in place. References that fail to download keep their
// original URL.
func (r *Runner) ProcessDocument(ctx context.Context, path string, sessionID, documentID int64) FileResult {
	result := FileResult{Path: path}

	data, mode, err := storage.ReadDocument(path)
	if err != nil {
		result.Error = err
		return result
	}
	content := string(data)

	images := markdown.ExtractImages(content)
	if r.Config.HTMLImages {
		htmlImages, err := markdown.ExtractHTMLImages(content)
		if err != nil {
			r.Logger.Warn("Failed to parse embedded HTML, markdown references only", "path", path, "error", err)
		} else {
			images = append(images, htmlImages...)
		}
	}

	result.ImagesFound = len(images)
	if len(images) == 0 {
		return result
	}
	sort.Slice(images, func(i, j int) bool { return images[i].Start < images[j].Start })

	docDir := filepath.Dir(path)
	imgDirPath := filepath.Join(docDir, r.Config.ImageDirName)

	var imgDir *cache.Dir
	if r.DryRun {
		imgDir = cache.Open(imgDirPath)
	} else {
		imgDir, err = cache.New(imgDirPath)
		if err != nil {
			result.Error = err
			return result
		}
	}

	var reps []markdown.Replacement
	for _, img := range images {
		local, oc := r.resolveImage(ctx, img.URL, imgDir, sessionID, documentID)
		switch oc {
		case outcomeFailed:
			result.Failures++
			continue
		case outcomeCached:
			result.CacheHits++
		case outcomeDownloaded:
			result.ImagesLocalized++
		case outcomeDryRun:
			result.ImagesLocalized++
			continue
		}

		rel, err := filepath.Rel(docDir, local)
		if err != nil {
			r.Logger.Warn("Failed to compute relative path", "path", local, "error", err)
			result.Failures++
			continue
		}
		reps = append(reps, img.Replacement(filepath.ToSlash(rel)))
	}

	if len(reps) == 0 || r.DryRun {
		return result
	}

	rewritten := markdown.Apply(content, reps)
	if rewritten == content {
		return result
	}
	if err := storage.WriteDocument(path, []byte(rewritten), mode); err != nil {
		result.Error = err
		return result
	}
	result.Modified = true
	return result
}

type outcome int

const (
	outcomeFailed outcome = iota
	outcomeCached
	outcomeDownloaded
	outcomeDryRun
)

// resolveImage maps a remote URL to a local cache entry, downloading on a
// miss. The cache is checked for any file named <md5(url)>.* so a prior
// run's entry short-circuits the network entirely.
func (r *Runner) resolveImage(ctx context.Context, url string, imgDir *cache.Dir, sessionID, documentID int64) (string, outcome) {
	key := cache.Key(url)

	if local, ok := imgDir.Lookup(key); ok {
		r.Logger.Info("Cache hit", "url", url, "file", local)
		r.recordImage(sessionID, documentID, db.ImageRecord{
			URL: url, URLHash: key, LocalPath: local, CacheHit: true, Status: "cached",
		})
		return local, outcomeCached
	}

	if r.DryRun {
		r.Logger.Info("Would download", "url", url)
		return "", outcomeDryRun
	}

	dl, err := r.Fetcher.Download(ctx, url, imgDir.EntryBase(key))
	if err != nil {
		r.Logger.Warn("Download failed, keeping remote URL", "url", url, "error", err)
		r.recordImage(sessionID, documentID, db.ImageRecord{
			URL: url, URLHash: key, Attempts: r.Fetcher.MaxRetries(),
			Status: "failed", Error: err.Error(),
		})
		return "", outcomeFailed
	}

	r.Logger.Info("Downloaded image", "url", url, "file", dl.Path,
		"content_type", dl.ContentType, "size_bytes", dl.SizeBytes, "attempts", dl.Attempts)
	r.recordImage(sessionID, documentID, db.ImageRecord{
		URL: url, URLHash: key, LocalPath: dl.Path,
		ContentType: dl.ContentType, ContentHash: dl.ContentHash,
		SizeBytes: dl.SizeBytes, Attempts: dl.Attempts, Status: "localized",
	})
	return dl.Path, outcomeDownloaded
}

func (r *Runner) recordImage(sessionID, documentID int64, rec db.ImageRecord) {
	if r.DB == nil {
		return
	}
	if err := r.DB.RecordImage(sessionID, documentID, rec); err != nil {
		r.Logger.Warn("Failed to record image outcome", "url", rec.URL, "error", err)
	}
}
