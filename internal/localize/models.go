package localize

// FileResult holds the outcome of processing one document.
type FileResult struct {
	Path            string
	ImagesFound     int
	ImagesLocalized int
	CacheHits       int
	Failures        int
	Modified        bool
	Error           error
}

// Status reports the document outcome as stored in history and summaries.
func (r FileResult) Status() string {
	switch {
	case r.Error != nil:
		return "failed"
	case r.Modified:
		return "processed"
	default:
		return "unchanged"
	}
}

// Totals aggregates counters across a whole run.
type Totals struct {
	DocumentsScanned  int
	DocumentsModified int
	DocumentsFailed   int
	ImagesFound       int
	ImagesLocalized   int
	CacheHits         int
	Failures          int
}

func (t *Totals) add(r FileResult) {
	t.DocumentsScanned++
	if r.Error != nil {
		t.DocumentsFailed++
	}
	if r.Modified {
		t.DocumentsModified++
	}
	t.ImagesFound += r.ImagesFound
	t.ImagesLocalized += r.ImagesLocalized
	t.CacheHits += r.CacheHits
	t.Failures += r.Failures
}
