package localize

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/mdil/md-image-localizer/models"
	"github.com/mdil/md-image-localizer/pkg/cache"
	"github.com/mdil/md-image-localizer/pkg/db"
	"github.com/mdil/md-image-localizer/pkg/fetcher"
)

func newTestRunner(dryRun bool) *Runner {
	return &Runner{
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Fetcher: fetcher.New(fetcher.Options{MaxRetries: 3}),
		Config:  models.DefaultConfig(),
		DryRun:  dryRun,
	}
}

// imageServer serves PNG bytes for any path except those under /missing/
// and counts requests.
func imageServer(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		if strings.HasPrefix(r.URL.Path, "/missing/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("png-bytes"))
	}))
	t.Cleanup(server.Close)
	return server
}

func writeDoc(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestRun_LocalizesDocuments(t *testing.T) {
	var hits int32
	server := imageServer(t, &hits)
	root := t.TempDir()

	doc := filepath.Join(root, "docs", "guide.md")
	writeDoc(t, doc, "# Guide\n"+
		"![logo]("+server.URL+"/logo.png)\n"+
		"some text\n"+
		"![logo]("+server.URL+"/logo.png)\n"+
		"![diagram]("+server.URL+"/diagram.png)\n")

	results, totals, err := newTestRunner(false).Run(context.Background(), root, 0)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if totals.DocumentsScanned != 1 || totals.DocumentsModified != 1 {
		t.Errorf("totals = %+v", totals)
	}
	if totals.ImagesFound != 3 {
		t.Errorf("ImagesFound = %d, want 3", totals.ImagesFound)
	}
	if totals.Failures != 0 {
		t.Errorf("Failures = %d, want 0", totals.Failures)
	}

	// Two distinct URLs, one request each: the duplicate reference must be
	// satisfied from the cache written by the first download.
	if got := atomic.LoadInt32(&hits); got != 2 {
		t.Errorf("server hits = %d, want 2", got)
	}

	out, err := os.ReadFile(doc)
	if err != nil {
		t.Fatal(err)
	}
	content := string(out)
	if strings.Contains(content, "http://") {
		t.Errorf("remote URLs survived: %q", content)
	}

	logoRel := "local_images/" + cache.Key(server.URL+"/logo.png") + ".png"
	if n := strings.Count(content, "!["+"logo"+"]("+logoRel+")"); n != 2 {
		t.Errorf("duplicate reference rewritten %d times, want 2: %q", n, content)
	}

	entries, err := os.ReadDir(filepath.Join(root, "docs", "local_images"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Errorf("image directory holds %d files, want 2", len(entries))
	}

	if len(results) != 1 || results[0].Status() != "processed" {
		t.Errorf("results = %+v", results)
	}
}

func TestRun_Idempotent(t *testing.T) {
	var hits int32
	server := imageServer(t, &hits)
	root := t.TempDir()

	doc := filepath.Join(root, "guide.md")
	writeDoc(t, doc, "![a]("+server.URL+"/a.png)\n")

	runner := newTestRunner(false)
	if _, _, err := runner.Run(context.Background(), root, 0); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	first, err := os.ReadFile(doc)
	if err != nil {
		t.Fatal(err)
	}
	hitsAfterFirst := atomic.LoadInt32(&hits)

	_, totals, err := runner.Run(context.Background(), root, 0)
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}

	if got := atomic.LoadInt32(&hits); got != hitsAfterFirst {
		t.Errorf("second run issued %d extra requests", got-hitsAfterFirst)
	}
	if totals.ImagesFound != 0 {
		t.Errorf("second run found %d remote images, want 0", totals.ImagesFound)
	}
	if totals.DocumentsModified != 0 {
		t.Errorf("second run modified %d documents", totals.DocumentsModified)
	}

	second, err := os.ReadFile(doc)
	if err != nil {
		t.Fatal(err)
	}
	if string(first) != string(second) {
		t.Error("second run changed the document")
	}
}

func TestProcessDocument_FailureKeepsOriginalMarkup(t *testing.T) {
	var hits int32
	server := imageServer(t, &hits)
	root := t.TempDir()

	broken := server.URL + "/missing/broken.png"
	good := server.URL + "/ok.png"
	doc := filepath.Join(root, "guide.md")
	writeDoc(t, doc, "![bad]("+broken+")\n![good]("+good+")\n")

	result := newTestRunner(false).ProcessDocument(context.Background(), doc, 0, 0)
	if result.Error != nil {
		t.Fatalf("ProcessDocument() error = %v", result.Error)
	}
	if result.Failures != 1 {
		t.Errorf("Failures = %d, want 1", result.Failures)
	}
	if result.ImagesLocalized != 1 {
		t.Errorf("ImagesLocalized = %d, want 1", result.ImagesLocalized)
	}

	out, err := os.ReadFile(doc)
	if err != nil {
		t.Fatal(err)
	}
	content := string(out)
	if !strings.Contains(content, "![bad]("+broken+")") {
		t.Errorf("failed reference was modified: %q", content)
	}
	if strings.Contains(content, good) {
		t.Errorf("successful reference was not rewritten: %q", content)
	}

	// 3 attempts for the broken URL, 1 for the good one.
	if got := atomic.LoadInt32(&hits); got != 4 {
		t.Errorf("server hits = %d, want 4", got)
	}
}

func TestProcessDocument_CacheHitShortCircuits(t *testing.T) {
	var hits int32
	server := imageServer(t, &hits)
	root := t.TempDir()

	url := server.URL + "/a.png"
	doc := filepath.Join(root, "guide.md")
	writeDoc(t, doc, "![a]("+url+")\n")

	// Pre-seed the cache; extension deliberately differs from the URL.
	key := cache.Key(url)
	imgDir := filepath.Join(root, "local_images")
	if err := os.MkdirAll(imgDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(imgDir, key+".webp"), []byte("cached"), 0644); err != nil {
		t.Fatal(err)
	}

	result := newTestRunner(false).ProcessDocument(context.Background(), doc, 0, 0)
	if result.CacheHits != 1 {
		t.Errorf("CacheHits = %d, want 1", result.CacheHits)
	}
	if got := atomic.LoadInt32(&hits); got != 0 {
		t.Errorf("server hits = %d, want 0 (cache hit must skip the network)", got)
	}

	out, err := os.ReadFile(doc)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), "![a](local_images/"+key+".webp)") {
		t.Errorf("document not rewritten to cached entry: %q", out)
	}
}

func TestProcessDocument_NoImagesUntouched(t *testing.T) {
	root := t.TempDir()
	doc := filepath.Join(root, "plain.md")
	original := "# Title\n\nNo images here.\n"
	writeDoc(t, doc, original)

	result := newTestRunner(false).ProcessDocument(context.Background(), doc, 0, 0)
	if result.Modified {
		t.Error("document without images reported as modified")
	}
	if result.Status() != "unchanged" {
		t.Errorf("Status() = %q, want unchanged", result.Status())
	}

	out, err := os.ReadFile(doc)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != original {
		t.Errorf("document changed: %q", out)
	}

	// No image directory should appear either.
	if _, err := os.Stat(filepath.Join(root, "local_images")); !os.IsNotExist(err) {
		t.Error("image directory created for a document without images")
	}
}

func TestProcessDocument_HTMLImages(t *testing.T) {
	var hits int32
	server := imageServer(t, &hits)
	root := t.TempDir()

	url := server.URL + "/pic.png"
	doc := filepath.Join(root, "mixed.md")
	writeDoc(t, doc, "# Mixed\n\n<img src=\""+url+"\" width=\"100\">\n")

	result := newTestRunner(false).ProcessDocument(context.Background(), doc, 0, 0)
	if result.ImagesFound != 1 || result.ImagesLocalized != 1 {
		t.Errorf("result = %+v", result)
	}

	out, err := os.ReadFile(doc)
	if err != nil {
		t.Fatal(err)
	}
	content := string(out)
	rel := "local_images/" + cache.Key(url) + ".png"
	if !strings.Contains(content, "<img src=\""+rel+"\" width=\"100\">") {
		t.Errorf("img tag not rewritten in place: %q", content)
	}
}

func TestRun_DryRun(t *testing.T) {
	var hits int32
	server := imageServer(t, &hits)
	root := t.TempDir()

	doc := filepath.Join(root, "guide.md")
	original := "![a](" + server.URL + "/a.png)\n"
	writeDoc(t, doc, original)

	_, totals, err := newTestRunner(true).Run(context.Background(), root, 0)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got := atomic.LoadInt32(&hits); got != 0 {
		t.Errorf("dry run issued %d requests", got)
	}
	if totals.DocumentsModified != 0 {
		t.Errorf("dry run modified %d documents", totals.DocumentsModified)
	}

	out, err := os.ReadFile(doc)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != original {
		t.Errorf("dry run changed the document: %q", out)
	}
	if _, err := os.Stat(filepath.Join(root, "local_images")); !os.IsNotExist(err) {
		t.Error("dry run created the image directory")
	}
}

func TestRun_UnreadableDocumentIsolated(t *testing.T) {
	var hits int32
	server := imageServer(t, &hits)
	root := t.TempDir()

	// A dangling symlink fails the read; the run must carry on with the
	// remaining documents.
	if err := os.Symlink(filepath.Join(root, "gone"), filepath.Join(root, "broken.md")); err != nil {
		t.Fatal(err)
	}
	good := filepath.Join(root, "guide.md")
	writeDoc(t, good, "![a]("+server.URL+"/a.png)\n")

	results, totals, err := newTestRunner(false).Run(context.Background(), root, 0)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if totals.DocumentsScanned != 2 {
		t.Errorf("DocumentsScanned = %d, want 2", totals.DocumentsScanned)
	}
	if totals.DocumentsFailed != 1 {
		t.Errorf("DocumentsFailed = %d, want 1", totals.DocumentsFailed)
	}
	if totals.DocumentsModified != 1 {
		t.Errorf("DocumentsModified = %d, want 1", totals.DocumentsModified)
	}

	failed, processed := 0, 0
	for _, r := range results {
		switch r.Status() {
		case "failed":
			failed++
		case "processed":
			processed++
		}
	}
	if failed != 1 || processed != 1 {
		t.Errorf("results = %+v", results)
	}

	out, err := os.ReadFile(good)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(out), "http://") {
		t.Errorf("healthy document was not processed: %q", out)
	}
}

func TestRun_FailedDownloadRecordsEffectiveAttempts(t *testing.T) {
	var hits int32
	server := imageServer(t, &hits)
	root := t.TempDir()
	writeDoc(t, filepath.Join(root, "guide.md"), "![x]("+server.URL+"/missing/x.png)\n")

	database, err := db.OpenAt(":memory:")
	if err != nil {
		t.Fatalf("OpenAt() error = %v", err)
	}
	defer database.Close()
	database.SetMaxOpenConns(1)

	sessionID, err := database.CreateSession(root, root, false)
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	// Config leaves the retry count unset; the fetcher falls back to its
	// default, and that effective count is what the history must show.
	cfg := models.DefaultConfig()
	cfg.MaxRetries = 0
	runner := &Runner{
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Fetcher: fetcher.New(fetcher.Options{MaxRetries: 0}),
		DB:      database,
		Config:  cfg,
	}

	if _, _, err := runner.Run(context.Background(), root, sessionID); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	images, err := database.GetSessionImages(sessionID)
	if err != nil {
		t.Fatalf("GetSessionImages() error = %v", err)
	}
	if len(images) != 1 {
		t.Fatalf("GetSessionImages() returned %d images, want 1", len(images))
	}
	if images[0].Status != "failed" {
		t.Errorf("Status = %q, want failed", images[0].Status)
	}
	if images[0].Attempts != fetcher.DefaultMaxRetries {
		t.Errorf("Attempts = %d, want %d", images[0].Attempts, fetcher.DefaultMaxRetries)
	}
	if got := atomic.LoadInt32(&hits); got != int32(fetcher.DefaultMaxRetries) {
		t.Errorf("server hits = %d, want %d", got, fetcher.DefaultMaxRetries)
	}
}

func TestRun_CancelledContext(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, filepath.Join(root, "a.md"), "text\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := newTestRunner(false).Run(ctx, root, 0)
	if err == nil {
		t.Error("Run() with cancelled context did not fail")
	}
}
