// Package store persists a cycle's meter readings: a spreadsheet with one
// sheet per reading kind, and an append-only text log used as fallback.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/gridops/meterbot/internal/logging"
	"github.com/gridops/meterbot/internal/model"
)

// Writer persists one ReadingSet.
type Writer interface {
	Name() string
	Write(ctx context.Context, set *model.ReadingSet) error
}

// Report tells which target accepted the data.
type Report struct {
	Target      string // name of the writer that succeeded, empty if none did
	PrimaryErr  error
	FallbackErr error
	primary     bool
}

// Structured reports whether the primary writer succeeded.
func (r Report) Structured() bool {
	return r.primary
}

// Persisted reports whether any writer succeeded.
func (r Report) Persisted() bool {
	return r.Target != ""
}

// Chain writes to Primary and, only if that fails, once to Fallback.
// A nil Primary goes straight to Fallback.
type Chain struct {
	Primary  Writer
	Fallback Writer
	Log      *logging.Logger
}

func (c *Chain) Write(ctx context.Context, set *model.ReadingSet) (Report, error) {
	var rep Report
	if c.Primary != nil {
		err := c.Primary.Write(ctx, set)
		if err == nil {
			rep.Target = c.Primary.Name()
			rep.primary = true
			c.Log.Infof("readings saved target=%s", rep.Target)
			return rep, nil
		}
		rep.PrimaryErr = err
		c.Log.Errorf("%s write failed, falling back: %v", c.Primary.Name(), err)
	}
	if c.Fallback == nil {
		if rep.PrimaryErr == nil {
			return rep, errors.New("no writer configured")
		}
		return rep, fmt.Errorf("no fallback writer: %w", rep.PrimaryErr)
	}
	if err := c.Fallback.Write(ctx, set); err != nil {
		rep.FallbackErr = err
		c.Log.Errorf("%s write failed: %v", c.Fallback.Name(), err)
		return rep, errors.Join(rep.PrimaryErr, err)
	}
	rep.Target = c.Fallback.Name()
	c.Log.Infof("readings saved target=%s", rep.Target)
	return rep, nil
}
