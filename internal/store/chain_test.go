package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridops/meterbot/internal/logging"
	"github.com/gridops/meterbot/internal/model"
)

type stubWriter struct {
	name  string
	err   error
	calls int
	got   *model.ReadingSet
}

func (s *stubWriter) Name() string { return s.name }

func (s *stubWriter) Write(_ context.Context, set *model.ReadingSet) error {
	s.calls++
	s.got = set
	return s.err
}

func TestChain(t *testing.T) {
	primaryErr := errors.New("workbook corrupt")
	fallbackErr := errors.New("read-only fs")

	tests := []struct {
		name          string
		primaryErr    error
		fallbackErr   error
		wantTarget    string
		wantFallbacks int
		wantErr       bool
	}{
		{"primary ok", nil, nil, "structured", 0, false},
		{"fallback once", primaryErr, nil, "flat", 1, false},
		{"both fail", primaryErr, fallbackErr, "", 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &stubWriter{name: "structured", err: tt.primaryErr}
			f := &stubWriter{name: "flat", err: tt.fallbackErr}
			c := &Chain{Primary: p, Fallback: f, Log: logging.Discard()}

			set := model.NewReadingSet()
			set.Add("38", model.MeterReading{model.KindPreviousDay: 5.432})
			rep, err := c.Write(context.Background(), set)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, primaryErr)
				assert.ErrorIs(t, err, fallbackErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantTarget, rep.Target)
			assert.Equal(t, 1, p.calls)
			assert.Equal(t, tt.wantFallbacks, f.calls)
			assert.Same(t, set, p.got)
			if tt.wantFallbacks > 0 {
				assert.Same(t, set, f.got, "fallback receives the set the primary was given")
			}
			assert.Equal(t, tt.primaryErr == nil, rep.Structured())
			assert.Equal(t, tt.wantTarget != "", rep.Persisted())
		})
	}
}

func TestChain_NoPrimary(t *testing.T) {
	f := &stubWriter{name: "flat"}
	rep, err := (&Chain{Fallback: f}).Write(context.Background(), model.NewReadingSet())
	require.NoError(t, err)
	assert.Equal(t, "flat", rep.Target)
	assert.False(t, rep.Structured())
}

func TestChain_NoFallback(t *testing.T) {
	boom := errors.New("boom")
	_, err := (&Chain{Primary: &stubWriter{name: "structured", err: boom}}).Write(context.Background(), model.NewReadingSet())
	assert.ErrorIs(t, err, boom)
}
