package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gridops/meterbot/internal/model"
)

const flatValueWidth = 7

// FlatWriter appends "dd.mm.yyyy | v | v | ..." lines to a text file.
// Values follow meter order, then kind order within a meter; a missing value
// is written as blanks so columns stay aligned.
type FlatWriter struct {
	path  string
	kinds []model.ReadingKind
	now   func() time.Time
}

func NewFlatWriter(path string, kinds []model.ReadingKind) *FlatWriter {
	return &FlatWriter{path: path, kinds: kinds, now: time.Now}
}

func (w *FlatWriter) Name() string { return "flat" }

func (w *FlatWriter) Write(ctx context.Context, set *model.ReadingSet) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(w.path), 0755); err != nil {
		return fmt.Errorf("create dir for %s: %w", w.path, err)
	}
	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open %s: %w", w.path, err)
	}
	if _, err := f.WriteString(FlatLine(w.now(), set, w.kinds)); err != nil {
		_ = f.Close()
		return fmt.Errorf("append %s: %w", w.path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", w.path, err)
	}
	return nil
}

// FlatLine formats one log line, newline included.
func FlatLine(date time.Time, set *model.ReadingSet, kinds []model.ReadingKind) string {
	fields := []string{model.DateStamp(date)}
	for _, id := range set.Meters() {
		for _, k := range kinds {
			v := ""
			if f, ok := set.Value(id, k); ok {
				v = strconv.FormatFloat(f, 'f', -1, 64)
			}
			fields = append(fields, fmt.Sprintf("%*s", flatValueWidth, v))
		}
	}
	return strings.Join(fields, " | ") + "\n"
}
