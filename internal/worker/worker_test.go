package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:    "valid default config",
			config:  DefaultConfig(),
			wantErr: false,
		},
		{
			name: "job timeout too short",
			config: Config{
				JobTimeout:      500 * time.Millisecond,
				ShutdownTimeout: 30 * time.Second,
			},
			wantErr: true,
		},
		{
			name: "shutdown timeout too short",
			config: Config{
				JobTimeout:      5 * time.Minute,
				ShutdownTimeout: 0,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Config.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateSchedule(t *testing.T) {
	for _, spec := range []string{"@every 1h", "@hourly", "*/15 * * * *", "0 3 * * *"} {
		assert.NoError(t, ValidateSchedule(spec), spec)
	}
	for _, spec := range []string{"", "every hour", "* * *", "61 * * * *"} {
		assert.Error(t, ValidateSchedule(spec), spec)
	}
}

func TestRegister(t *testing.T) {
	w, err := New(DefaultConfig(), testLogger())
	require.NoError(t, err)

	job := JobFunc{Name: "noop", Fn: func(context.Context) error { return nil }}

	require.NoError(t, w.Register("@every 1h", job))
	assert.Error(t, w.Register("@every 1h", job), "duplicate type")
	assert.Error(t, w.Register("nonsense", JobFunc{Name: "other", Fn: job.Fn}))
}

func TestRunNow(t *testing.T) {
	w, err := New(DefaultConfig(), testLogger())
	require.NoError(t, err)

	var calls atomic.Int32
	boom := errors.New("boom")
	require.NoError(t, w.Register("@every 1h", JobFunc{Name: "count", Fn: func(ctx context.Context) error {
		calls.Add(1)
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline, "runs carry the job timeout")
		return nil
	}}))
	require.NoError(t, w.Register("@every 1h", JobFunc{Name: "fail", Fn: func(context.Context) error {
		return boom
	}}))

	require.NoError(t, w.RunNow(context.Background(), "count"))
	assert.Equal(t, int32(1), calls.Load())

	assert.ErrorIs(t, w.RunNow(context.Background(), "fail"), boom)
	assert.ErrorIs(t, w.RunNow(context.Background(), "missing"), ErrUnknownJob)
}

func TestRunNow_SkipsOverlappingRun(t *testing.T) {
	w, err := New(DefaultConfig(), testLogger())
	require.NoError(t, err)

	started := make(chan struct{})
	release := make(chan struct{})
	require.NoError(t, w.Register("@every 1h", JobFunc{Name: "slow", Fn: func(context.Context) error {
		close(started)
		<-release
		return nil
	}}))

	done := make(chan error, 1)
	go func() { done <- w.RunNow(context.Background(), "slow") }()

	<-started
	assert.ErrorIs(t, w.RunNow(context.Background(), "slow"), ErrJobRunning)

	close(release)
	assert.NoError(t, <-done)
}

func TestStartStop(t *testing.T) {
	w, err := New(Config{JobTimeout: time.Second, ShutdownTimeout: time.Second}, testLogger())
	require.NoError(t, err)

	var calls atomic.Int32
	require.NoError(t, w.Register("@every 1s", JobFunc{Name: "tick", Fn: func(context.Context) error {
		calls.Add(1)
		return nil
	}}))

	w.Start(context.Background())
	require.Eventually(t, func() bool { return calls.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
	w.Stop()
}
