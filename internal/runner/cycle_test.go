package runner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridops/meterbot/internal/logging"
	"github.com/gridops/meterbot/internal/model"
	"github.com/gridops/meterbot/internal/uia"
	"github.com/gridops/meterbot/internal/uia/uiatest"
)

type recordingNotifier struct {
	calls [][]string
	err   error
}

func (n *recordingNotifier) NotifyFailures(_ context.Context, programs []string) error {
	n.calls = append(n.calls, programs)
	return n.err
}

type recordingHistory struct {
	cycles map[string][]model.Outcome
}

func (h *recordingHistory) Record(_ context.Context, id string, outcomes []model.Outcome) error {
	if h.cycles == nil {
		h.cycles = map[string][]model.Outcome{}
	}
	h.cycles[id] = outcomes
	return nil
}

type recordingMetrics struct {
	observed int
	flushed  int
}

func (m *recordingMetrics) Observe([]model.Outcome, time.Time, time.Time) { m.observed++ }
func (m *recordingMetrics) Flush() error                                  { m.flushed++; return nil }

func newTestCycle(results map[model.ProgramID]error, b *uiatest.Backend) (*Cycle, *recordingNotifier, *recordingHistory, *recordingMetrics) {
	reg := Registry{}
	for p, err := range results {
		err := err // per-iteration copy; go.mod targets go 1.21 (pre-1.22 loopvar semantics)
		reg[p] = staticFactory(workerFunc(func(context.Context, uia.App) error { return err }))
	}
	n := &recordingNotifier{}
	h := &recordingHistory{}
	m := &recordingMetrics{}
	c := &Cycle{
		Runner:   New(reg, testConfig(), b, logging.Discard()),
		Programs: []model.ProgramID{model.ProgramMercury, model.ProgramBTCTools},
		Notifier: n,
		History:  h,
		Metrics:  m,
		NewID:    func() string { return "cycle-1" },
		Log:      logging.Discard(),
	}
	return c, n, h, m
}

func TestCycle_AllSucceed(t *testing.T) {
	c, n, h, m := newTestCycle(map[model.ProgramID]error{
		model.ProgramMercury:  nil,
		model.ProgramBTCTools: nil,
	}, uiatest.NewBackend())

	res, err := c.Execute(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Failed.Empty())
	assert.Empty(t, n.calls)
	assert.Len(t, h.cycles["cycle-1"], 2)
	assert.Equal(t, 1, m.observed)
	assert.Equal(t, 1, m.flushed)
}

func TestCycle_NotifiesOnceWithFailedPrograms(t *testing.T) {
	b := uiatest.NewBackend()
	b.FailLaunch("Mercury.exe", errors.New("not found"))
	c, n, _, _ := newTestCycle(map[model.ProgramID]error{
		model.ProgramMercury:  nil,
		model.ProgramBTCTools: errors.New("save failed"),
	}, b)

	res, err := c.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"mercury", "btctools"}, res.Failed.Names())
	require.Len(t, n.calls, 1)
	assert.Equal(t, []string{"mercury", "btctools"}, n.calls[0])
}

func TestCycle_OnlyFailedProgramsReported(t *testing.T) {
	c, n, _, _ := newTestCycle(map[model.ProgramID]error{
		model.ProgramMercury:  nil,
		model.ProgramBTCTools: errors.New("scan"),
	}, uiatest.NewBackend())

	_, err := c.Execute(context.Background())
	require.NoError(t, err)
	require.Len(t, n.calls, 1)
	assert.Equal(t, []string{"btctools"}, n.calls[0])
}

func TestCycle_NotifyErrorDoesNotFailCycle(t *testing.T) {
	c, n, _, _ := newTestCycle(map[model.ProgramID]error{
		model.ProgramMercury:  errors.New("no data"),
		model.ProgramBTCTools: nil,
	}, uiatest.NewBackend())
	n.err = errors.New("no recipients")

	res, err := c.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"mercury"}, res.Failed.Names())
}

func TestCycle_SkipNotify(t *testing.T) {
	c, n, _, _ := newTestCycle(map[model.ProgramID]error{
		model.ProgramMercury:  errors.New("no data"),
		model.ProgramBTCTools: nil,
	}, uiatest.NewBackend())
	c.SkipNotify = true

	_, err := c.Execute(context.Background())
	require.NoError(t, err)
	assert.Empty(t, n.calls)
}

func TestCycle_Cancelled(t *testing.T) {
	c, n, h, _ := newTestCycle(map[model.ProgramID]error{
		model.ProgramMercury:  nil,
		model.ProgramBTCTools: nil,
	}, uiatest.NewBackend())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Execute(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, n.calls)
	_, recorded := h.cycles["cycle-1"]
	assert.True(t, recorded)
}

func TestCycle_UnknownProgramIsFatal(t *testing.T) {
	c, _, _, _ := newTestCycle(map[model.ProgramID]error{model.ProgramMercury: nil}, uiatest.NewBackend())
	c.Programs = []model.ProgramID{model.ProgramMercury, model.ProgramBTCTools}

	_, err := c.Execute(context.Background())
	assert.ErrorIs(t, err, model.ErrUnknownProgram)
}
