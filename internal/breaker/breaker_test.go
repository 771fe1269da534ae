package breaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var errRemote = errors.New("connection refused")

func failing() ([]byte, error) { return nil, errRemote }

func TestRegistry_ShortCircuitAndRecovery(t *testing.T) {
	t.Parallel()

	r := NewRegistry(Settings{
		RequestVolume:    2,
		FailureRatio:     0.5,
		Cooldown:         50 * time.Millisecond,
		HalfOpenRequests: 1,
	}, zap.NewNop().Sugar())
	const target = "orders:dev:orders"

	for i := 0; i < 2; i++ {
		_, err := r.Execute(target, failing)
		require.ErrorIs(t, err, errRemote)
	}
	assert.Equal(t, StateOpen, r.State(target))

	called := false
	_, err := r.Execute(target, func() ([]byte, error) {
		called = true
		return nil, nil
	})
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called, "open circuit must not reach the remote")

	assert.Eventually(t, func() bool {
		return r.State(target) == StateHalfOpen
	}, time.Second, 10*time.Millisecond)

	out, err := r.Execute(target, func() ([]byte, error) { return []byte("ok"), nil })
	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), out)
	assert.Equal(t, StateClosed, r.State(target))
}

func TestRegistry_CircuitsAreIndependent(t *testing.T) {
	t.Parallel()

	r := NewRegistry(Settings{RequestVolume: 1, FailureRatio: 1, Cooldown: time.Minute, HalfOpenRequests: 1}, zap.NewNop().Sugar())

	_, err := r.Execute("a", failing)
	require.ErrorIs(t, err, errRemote)
	assert.Equal(t, StateOpen, r.State("a"))

	out, err := r.Execute("b", func() ([]byte, error) { return []byte("ok"), nil })
	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), out)
	assert.Equal(t, StateClosed, r.State("b"))
	assert.Equal(t, StateClosed, r.State("unknown"))
}

func TestRegistry_Remove(t *testing.T) {
	t.Parallel()

	r := NewRegistry(Settings{RequestVolume: 1, FailureRatio: 1, Cooldown: time.Hour, HalfOpenRequests: 1}, zap.NewNop().Sugar())

	_, err := r.Execute("orders:dev:orders", failing)
	require.ErrorIs(t, err, errRemote)
	_, err = r.Execute("billing:dev:billing", failing)
	require.ErrorIs(t, err, errRemote)
	assert.Equal(t, 2, r.Len())

	r.Remove("orders:dev:orders")
	assert.Equal(t, 1, r.Len())
	assert.Equal(t, StateClosed, r.State("orders:dev:orders"))
	assert.Equal(t, StateOpen, r.State("billing:dev:billing"))

	// unknown keys are ignored
	r.Remove("missing")
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_RatioBelowThresholdStaysClosed(t *testing.T) {
	t.Parallel()

	r := NewRegistry(Settings{RequestVolume: 4, FailureRatio: 0.75, Cooldown: time.Minute, HalfOpenRequests: 1}, zap.NewNop().Sugar())
	ok := func() ([]byte, error) { return nil, nil }

	for _, call := range []func() ([]byte, error){failing, ok, failing, ok, failing} {
		_, _ = r.Execute("a", call)
	}
	assert.Equal(t, StateClosed, r.State("a"))
}

func TestRegistry_CancelledCallsDoNotTrip(t *testing.T) {
	t.Parallel()

	r := NewRegistry(Settings{RequestVolume: 1, FailureRatio: 1, Cooldown: time.Minute, HalfOpenRequests: 1}, zap.NewNop().Sugar())

	_, err := r.Execute("a", func() ([]byte, error) { return nil, context.Canceled })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateClosed, r.State("a"))
}

func TestSettings_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Settings) {}},
		{name: "zero volume", mutate: func(s *Settings) { s.RequestVolume = 0 }, wantErr: true},
		{name: "ratio above one", mutate: func(s *Settings) { s.FailureRatio = 1.5 }, wantErr: true},
		{name: "zero cooldown", mutate: func(s *Settings) { s.Cooldown = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := DefaultSettings()
			tt.mutate(&s)
			if tt.wantErr {
				assert.Error(t, s.Validate())
			} else {
				assert.NoError(t, s.Validate())
			}
		})
	}
}
