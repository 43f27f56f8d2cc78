package resources

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobChain_SkipsOverlappingRuns(t *testing.T) {
	t.Parallel()

	var runs atomic.Int32

	started := make(chan struct{})
	release := make(chan struct{})

	job := JobChain(cron.DiscardLogger).Then(cron.FuncJob(func() {
		runs.Add(1)
		started <- struct{}{}
		<-release
	}))

	finished := make(chan struct{})
	go func() {
		job.Run()
		close(finished)
	}()

	<-started

	// the second run finds the first one busy and returns at once
	job.Run()
	assert.Equal(t, int32(1), runs.Load())

	close(release)
	<-finished
}

func TestJobChain_RecoversPanics(t *testing.T) {
	t.Parallel()

	job := JobChain(cron.DiscardLogger).Then(cron.FuncJob(func() {
		panic("relay blew up")
	}))

	assert.NotPanics(t, job.Run)
}

func TestNewScheduler(t *testing.T) {
	t.Parallel()

	scheduler := NewScheduler(context.Background(), "outbox-relay")

	_, err := scheduler.AddFunc("@every 1m", func() {})
	require.NoError(t, err)

	_, err = scheduler.AddFunc("not a schedule", func() {})
	require.Error(t, err)

	assert.Len(t, scheduler.Entries(), 1)

	scheduler.Start()
	select {
	case <-scheduler.Stop().Done():
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}
