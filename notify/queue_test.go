package notify_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tdl-smp/portal/notify"
)

type fakeHandler struct {
	mu       sync.Mutex
	accepts  bool
	failures int
	calls    int
	done     chan notify.Job
}

func (f *fakeHandler) Accepts(notify.Kind) bool { return f.accepts }

func (f *fakeHandler) Deliver(ctx context.Context, job notify.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failures {
		return errors.New("boom")
	}
	if f.done != nil {
		f.done <- job
	}
	return nil
}

func testLog() *logrus.Entry {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log.WithField("origin", "test")
}

func TestAttemptRetries(t *testing.T) {
	h := &fakeHandler{accepts: true, failures: 2}
	err := notify.Attempt(context.Background(), h, notify.Job{Kind: notify.KindAppeal}, 3, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 3, h.calls)
}

func TestAttemptGivesUp(t *testing.T) {
	h := &fakeHandler{accepts: true, failures: 5}
	err := notify.Attempt(context.Background(), h, notify.Job{Kind: notify.KindAppeal}, 3, time.Millisecond)
	require.Error(t, err)
	assert.Equal(t, 3, h.calls)
}

func TestQueueDelivers(t *testing.T) {
	h := &fakeHandler{accepts: true, failures: 1, done: make(chan notify.Job, 1)}
	q := notify.NewQueue(h, notify.QueueOptions{Workers: 2, Size: 10, Attempts: 3, Backoff: time.Millisecond}, testLog())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx)

	job := notify.Job{Kind: notify.KindReport, Embed: &discordgo.MessageEmbed{Title: "r"}}
	require.True(t, q.Dispatch(job))
	select {
	case got := <-h.done:
		assert.Equal(t, "r", got.Embed.Title)
	case <-time.After(2 * time.Second):
		t.Fatal("job was not delivered")
	}
}

func TestQueueSkipsJobsWithoutTarget(t *testing.T) {
	h := &fakeHandler{accepts: false}
	q := notify.NewQueue(h, notify.QueueOptions{Size: 1}, testLog())
	assert.False(t, q.Dispatch(notify.Job{Kind: notify.KindAppeal}))
}

func TestQueueDropsWhenFull(t *testing.T) {
	h := &fakeHandler{accepts: true}
	// No workers are running, so the buffer never drains
	q := notify.NewQueue(h, notify.QueueOptions{Size: 1}, testLog())
	assert.True(t, q.Dispatch(notify.Job{Kind: notify.KindAppeal}))
	assert.False(t, q.Dispatch(notify.Job{Kind: notify.KindAppeal}))
}
