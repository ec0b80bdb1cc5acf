package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/gridops/meterbot/internal/logging"
	"github.com/gridops/meterbot/internal/model"
)

var ErrLocked = errors.New("workbook locked")

// WorkbookCloser closes a workbook held open by another application.
type WorkbookCloser interface {
	CloseWorkbook(ctx context.Context, path string) error
}

// SheetLayout locates meter ids in the header row. ColLast is exclusive.
type SheetLayout struct {
	HeaderRow int
	ColFirst  int
	ColLast   int
}

// SheetWriter appends one dated row per reading kind to the workbook at
// path. Each kind is written to the sheet of the same name; a sheet whose
// last row already carries today's date is left alone.
type SheetWriter struct {
	path   string
	kinds  []model.ReadingKind
	layout SheetLayout
	closer WorkbookCloser
	log    *logging.Logger
	now    func() time.Time
	save   func(f *excelize.File, path string) error
}

func NewSheetWriter(path string, kinds []model.ReadingKind, layout SheetLayout, closer WorkbookCloser, log *logging.Logger) *SheetWriter {
	return &SheetWriter{
		path:   path,
		kinds:  kinds,
		layout: layout,
		closer: closer,
		log:    log,
		now:    time.Now,
		save:   saveAs,
	}
}

func saveAs(f *excelize.File, path string) error {
	return f.SaveAs(path)
}

func (w *SheetWriter) Name() string { return "structured" }

func (w *SheetWriter) Write(ctx context.Context, set *model.ReadingSet) error {
	if w.closer != nil {
		if err := w.closer.CloseWorkbook(ctx, w.path); err != nil {
			w.log.Warnf("workbook closing: %v", err)
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	f, err := excelize.OpenFile(w.path)
	if err != nil {
		return fmt.Errorf("open workbook %s: %w", w.path, err)
	}
	defer func() { _ = f.Close() }()

	now := w.now()
	today := model.DateStamp(now)
	sheets := make(map[string]bool)
	for _, s := range f.GetSheetList() {
		sheets[s] = true
	}

	written := 0
	for _, kind := range w.kinds {
		sheet := string(kind)
		if !sheets[sheet] {
			w.log.Infof("sheet %s doesn't exist", sheet)
			continue
		}
		ok, err := w.writeSheet(f, sheet, kind, set, today)
		if err != nil {
			return fmt.Errorf("sheet %s: %w", sheet, err)
		}
		if ok {
			written++
		}
	}
	if written == 0 {
		w.log.Infof("nothing to write date=%s", today)
		return nil
	}
	return w.saveWithRetry(f, now)
}

// writeSheet appends today's row. It returns false if the sheet already has one.
func (w *SheetWriter) writeSheet(f *excelize.File, sheet string, kind model.ReadingKind, set *model.ReadingSet, today string) (bool, error) {
	rows, err := f.GetRows(sheet)
	if err != nil {
		return false, fmt.Errorf("read rows: %w", err)
	}
	lastRow := len(rows)
	if lastRow > 0 {
		last, err := f.GetCellValue(sheet, "A"+strconv.Itoa(lastRow))
		if err != nil {
			return false, err
		}
		if strings.TrimSpace(last) == today {
			w.log.Infof("%s data on %s exists", sheet, today)
			return false, nil
		}
	}

	row := lastRow + 1
	if err := f.SetCellValue(sheet, "A"+strconv.Itoa(row), today); err != nil {
		return false, err
	}
	for col := w.layout.ColFirst; col < w.layout.ColLast; col++ {
		header, err := excelize.CoordinatesToCellName(col, w.layout.HeaderRow)
		if err != nil {
			return false, err
		}
		raw, err := f.GetCellValue(sheet, header, excelize.Options{RawCellValue: true})
		if err != nil {
			return false, err
		}
		id := HeaderMeterID(raw)
		if id == "" {
			w.log.Warnf("incorrect meter number in %s cell %s", sheet, header)
			continue
		}
		v, ok := set.Value(id, kind)
		if !ok {
			w.log.Warnf("data of meter %s doesn't exist kind=%s", id, kind)
			continue
		}
		cell, err := excelize.CoordinatesToCellName(col, row)
		if err != nil {
			return false, err
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (w *SheetWriter) saveWithRetry(f *excelize.File, now time.Time) error {
	err := w.save(f, w.path)
	if err == nil {
		return nil
	}
	if !isLocked(err) {
		return fmt.Errorf("save %s: %w", w.path, err)
	}
	alt := AlternatePath(w.path, now)
	w.log.Warnf("workbook %s is locked, saving to %s", w.path, alt)
	if err := w.save(f, alt); err != nil {
		if isLocked(err) {
			return fmt.Errorf("%w: %s and %s", ErrLocked, w.path, alt)
		}
		return fmt.Errorf("save %s: %w", alt, err)
	}
	return nil
}

// HeaderMeterID normalizes a raw header cell to a meter id. Numbers stored
// as floats ("38.0", "3.8E1") become their integer form; other text is kept.
func HeaderMeterID(raw string) model.MeterID {
	raw = strings.TrimSpace(raw)
	if !strings.ContainsAny(raw, ".eE") {
		return model.MeterID(raw)
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil && f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return model.MeterID(strconv.FormatInt(int64(f), 10))
	}
	return model.MeterID(raw)
}

// AlternatePath inserts the _dd_mm day suffix before the extension.
func AlternatePath(path string, now time.Time) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + model.DaySuffix(now) + ext
}
