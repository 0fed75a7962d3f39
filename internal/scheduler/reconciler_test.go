package scheduler

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

type fakeRecomputer struct {
	calls   atomic.Int32
	err     error
	block   chan struct{}
	started chan struct{}
}

func (f *fakeRecomputer) RecomputeAll(ctx context.Context) (int, error) {
	f.calls.Add(1)
	if f.started != nil {
		close(f.started)
	}
	if f.block != nil {
		<-f.block
	}
	if _, ok := ctx.Deadline(); !ok {
		return 0, errors.New("run without deadline")
	}
	return 3, f.err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestReconcilerRun(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "success"},
		{name: "failure is logged", err: errors.New("db down")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeRecomputer{err: tt.err}
			r := NewReconciler(fake, quietLogger())
			r.Run()
			assert.Equal(t, int32(1), fake.calls.Load())
		})
	}
}

func TestReconcilerRun_SkipsOverlap(t *testing.T) {
	fake := &fakeRecomputer{block: make(chan struct{}), started: make(chan struct{})}
	r := NewReconciler(fake, quietLogger())

	done := make(chan struct{})
	go func() {
		r.Run()
		close(done)
	}()
	<-fake.started

	r.Run()
	close(fake.block)
	<-done

	assert.Equal(t, int32(1), fake.calls.Load())
}

func TestReconcilerStart(t *testing.T) {
	r := NewReconciler(&fakeRecomputer{}, quietLogger())
	assert.Error(t, r.Start("not a schedule"))

	require.NoError(t, r.Start("@every 1h"))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	r.Stop(ctx)
}
