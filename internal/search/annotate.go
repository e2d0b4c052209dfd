package search

import (
	"context"
	"log/slog"

	"github.com/Aman-CERP/scry/internal/oracle"
	"github.com/Aman-CERP/scry/internal/store"
)

// AnnotationSource supplies structural signals by path or DocID.
// *store.SignalStore satisfies it.
type AnnotationSource interface {
	Annotations(ctx context.Context, ids []string) (map[string]store.Annotation, error)
}

var _ AnnotationSource = (*store.SignalStore)(nil)

// Annotate attaches structural annotations in place. It never reorders,
// drops or rescores results. A lookup error is logged and leaves every
// annotation nil; documents without a signal row keep a nil annotation.
//
// A DocID is looked up as-is first. Symbol IDs ("path::symbol") fall back
// to their file path.
func Annotate(ctx context.Context, src AnnotationSource, results []*FusedResult) {
	if src == nil || len(results) == 0 {
		return
	}

	seen := make(map[string]bool)
	var keys []string
	add := func(k string) {
		if k != "" && !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	for _, r := range results {
		if oracle.IsPersonaID(r.DocID) {
			continue
		}
		add(r.DocID)
		add(r.FilePath())
	}
	if len(keys) == 0 {
		return
	}

	annotations, err := src.Annotations(ctx, keys)
	if err != nil {
		slog.Warn("annotation lookup failed",
			slog.Int("results", len(results)),
			slog.String("error", err.Error()))
		return
	}

	for _, r := range results {
		if oracle.IsPersonaID(r.DocID) {
			continue
		}
		a, ok := annotations[r.DocID]
		if !ok {
			a, ok = annotations[r.FilePath()]
		}
		if ok && !a.IsEmpty() {
			a := a
			r.Annotations = &a
		}
	}
}
