package store

import (
	"context"
	"fmt"
	"time"

	"github.com/gridops/meterbot/internal/uia"
)

// ExcelCloser closes the workbook's window in a running spreadsheet
// application, confirming the save prompt if one appears.
type ExcelCloser struct {
	Backend     uia.Backend
	ProgramPath string
	Settle      time.Duration
}

func (c ExcelCloser) CloseWorkbook(ctx context.Context, path string) error {
	app, err := c.Backend.Connect(ctx, c.ProgramPath)
	if err != nil {
		return fmt.Errorf("connect %s: %w", c.ProgramPath, err)
	}
	wb := app.Dialog(uia.FileName(path))
	open, err := wb.Exists(ctx, "")
	if err != nil {
		return err
	}
	if !open {
		return nil
	}
	if err := wb.Click(ctx, "CloseButton"); err != nil {
		return fmt.Errorf("close workbook: %w", err)
	}
	prompt, err := wb.Exists(ctx, "SaveButton")
	if err != nil {
		return err
	}
	if prompt {
		if err := wb.Click(ctx, "SaveButton"); err != nil {
			return fmt.Errorf("confirm save: %w", err)
		}
	}
	return uia.Settle(ctx, c.Settle)
}
