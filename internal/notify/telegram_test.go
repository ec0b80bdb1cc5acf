package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridops/meterbot/internal/logging"
)

type sent struct {
	chatID int64
	text   string
}

type recordingMessenger struct {
	sent []sent
	fail map[int64]error
}

func (m *recordingMessenger) Send(_ context.Context, chatID int64, text string) error {
	if err := m.fail[chatID]; err != nil {
		return err
	}
	m.sent = append(m.sent, sent{chatID, text})
	return nil
}

func newTestNotifier(recipients []string, token string) (*Notifier, *recordingMessenger, *int) {
	m := &recordingMessenger{fail: map[int64]error{}}
	dials := 0
	n := NewNotifier(recipients, "TG_API", logging.Discard())
	n.getenv = func(key string) string {
		if key == "TG_API" {
			return token
		}
		return ""
	}
	n.dial = func(string) (Messenger, error) {
		dials++
		return m, nil
	}
	return n, m, &dials
}

func TestFailureMessage(t *testing.T) {
	assert.Equal(t,
		"Failed to execute programs automatically: mercury, btctools.\nPlease, run the programs manually.",
		FailureMessage([]string{"mercury", "btctools"}))
}

func TestNotifyFailures_AllRecipients(t *testing.T) {
	n, m, _ := newTestNotifier([]string{"1001", " -1002 "}, "secret")

	require.NoError(t, n.NotifyFailures(context.Background(), []string{"btctools"}))

	msg := FailureMessage([]string{"btctools"})
	assert.Equal(t, []sent{{1001, msg}, {-1002, msg}}, m.sent)
}

func TestBroadcast_NoRecipientsSendsNothing(t *testing.T) {
	n, m, dials := newTestNotifier(nil, "secret")

	err := n.Broadcast(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrNoRecipients)
	assert.Empty(t, m.sent)
	assert.Zero(t, *dials)
}

func TestBroadcast_MissingToken(t *testing.T) {
	n, m, dials := newTestNotifier([]string{"1001"}, "  ")

	assert.ErrorIs(t, n.Broadcast(context.Background(), "hello"), ErrNoToken)
	assert.Empty(t, m.sent)
	assert.Zero(t, *dials)
}

func TestBroadcast_OneRecipientFails(t *testing.T) {
	n, m, _ := newTestNotifier([]string{"1", "abc", "2", "3"}, "secret")
	boom := errors.New("chat not found")
	m.fail[2] = boom

	err := n.Broadcast(context.Background(), "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), `recipient "abc"`)
	assert.Equal(t, []sent{{1, "hello"}, {3, "hello"}}, m.sent)
}

func TestBroadcast_DialError(t *testing.T) {
	n, _, _ := newTestNotifier([]string{"1"}, "secret")
	boom := errors.New("unauthorized")
	n.dial = func(string) (Messenger, error) { return nil, boom }

	assert.ErrorIs(t, n.Broadcast(context.Background(), "hello"), boom)
}

func TestNewTelegramMessenger_EmptyToken(t *testing.T) {
	_, err := NewTelegramMessenger("")
	assert.ErrorIs(t, err, ErrNoToken)
}
