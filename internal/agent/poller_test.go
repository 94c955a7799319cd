// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/doc-conv-agent/pkg/types"
)

const origin = "/in/sample.docx"

func newTestPoller(store Store, conv Converter, q *Queue) *Poller {
	return NewPoller(store, conv, q, types.PollerConfig{Delay: time.Millisecond, MaxStatusErrors: 3})
}

func TestPoller_Handle(t *testing.T) {
	tests := []struct {
		name        string
		status      types.LocalStatus
		outcome     types.Outcome
		wantCode    string
		wantPayload string
		wantQueued  bool
	}{
		{name: "pending is re-enqueued", status: types.StatusPending, wantQueued: true},
		{name: "running is re-enqueued", status: types.StatusRunning, wantQueued: true},
		{name: "unrecognised status is re-enqueued", status: types.LocalStatus("scheduled"), wantQueued: true},
		{name: "remote error fails the task", status: types.StatusError, wantCode: types.CodeRemoteFailed},
		{
			name:        "completed with payload succeeds",
			status:      types.StatusCompleted,
			outcome:     types.Succeeded([]byte("Hello")),
			wantPayload: "Hello",
		},
		{
			name:     "completed with rejected report fails",
			status:   types.StatusCompleted,
			outcome:  types.Failed(types.CodeSignatureDetected),
			wantCode: types.CodeSignatureDetected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			conv := &fakeConverter{statuses: []types.LocalStatus{tt.status}, outcome: tt.outcome}
			q := NewQueue(2)
			p := newTestPoller(store, conv, q)

			p.handle(context.Background(), types.Entry{TaskID: "7", Path: origin})

			assert.Equal(t, tt.wantQueued, q.Len() == 1)
			code, failed := store.failure(origin)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantCode != "", failed)
			payload, ok := store.success(origin)
			assert.Equal(t, tt.wantPayload != "", ok)
			assert.Equal(t, tt.wantPayload, string(payload))
			assert.Empty(t, conv.deleted, "remote tasks are kept unless deletion is enabled")
		})
	}
}

func TestPoller_PendingTaskIsPolledAgain(t *testing.T) {
	store := newFakeStore()
	conv := &fakeConverter{
		statuses: []types.LocalStatus{types.StatusPending, types.StatusPending, types.StatusRunning, types.StatusCompleted},
		outcome:  types.Succeeded([]byte("Hello")),
	}
	q := NewQueue(2)
	require.True(t, q.TryPush(types.Entry{TaskID: "7", Path: origin}))
	p := newTestPoller(store, conv, q)

	for i := 0; i < 4; i++ {
		e, ok := p.next(context.Background())
		require.True(t, ok, "cycle %d", i)
		p.handle(context.Background(), e)
	}

	assert.Equal(t, 4, conv.queries)
	assert.Zero(t, q.Len())
	payload, ok := store.success(origin)
	require.True(t, ok)
	assert.Equal(t, "Hello", string(payload))
}

func TestPoller_StatusErrorsAreCapped(t *testing.T) {
	store := newFakeStore()
	conv := &fakeConverter{statusErr: errTransport}
	q := NewQueue(2)
	p := newTestPoller(store, conv, q)

	e := types.Entry{TaskID: "7", Path: origin}
	for i := 1; i < 3; i++ {
		p.handle(context.Background(), e)
		var ok bool
		e, ok = p.next(context.Background())
		require.True(t, ok)
		assert.Equal(t, i, e.StatusErrors)
		_, failed := store.failure(origin)
		require.False(t, failed)
	}

	p.handle(context.Background(), e)
	code, failed := store.failure(origin)
	assert.True(t, failed)
	assert.Equal(t, types.CodeStatusLost, code)
	assert.Zero(t, q.Len())
}

func TestPoller_SuccessfulQueryResetsErrorCount(t *testing.T) {
	q := NewQueue(2)
	p := newTestPoller(newFakeStore(), &fakeConverter{statuses: []types.LocalStatus{types.StatusRunning}}, q)

	p.handle(context.Background(), types.Entry{TaskID: "7", Path: origin, StatusErrors: 2})
	e, ok := q.Pop(context.Background(), time.Millisecond)
	require.True(t, ok)
	assert.Zero(t, e.StatusErrors)
}

func TestPoller_PayloadWriteFailureIsRetried(t *testing.T) {
	store := newFakeStore()
	store.succeedErr = errors.New("no space left on device")
	conv := &fakeConverter{statuses: []types.LocalStatus{types.StatusCompleted}, outcome: types.Succeeded([]byte("Hello"))}
	q := NewQueue(2)
	p := newTestPoller(store, conv, q)

	p.handle(context.Background(), types.Entry{TaskID: "7", Path: origin})
	e, ok := q.Pop(context.Background(), time.Millisecond)
	require.True(t, ok)
	assert.Equal(t, 1, e.StatusErrors)
	_, failed := store.failure(origin)
	assert.False(t, failed)
}

func TestPoller_DeleteCompleted(t *testing.T) {
	store := newFakeStore()
	conv := &fakeConverter{statuses: []types.LocalStatus{types.StatusCompleted}, outcome: types.Succeeded([]byte("x"))}
	p := NewPoller(store, conv, NewQueue(1), types.PollerConfig{DeleteCompleted: true})

	p.handle(context.Background(), types.Entry{TaskID: "7", Path: origin})
	assert.Equal(t, []string{"7"}, conv.deleted)

	conv = &fakeConverter{statuses: []types.LocalStatus{types.StatusCompleted}, outcome: types.Failed(types.CodeEmptyPayload)}
	p = NewPoller(newFakeStore(), conv, NewQueue(1), types.PollerConfig{DeleteCompleted: true})
	p.handle(context.Background(), types.Entry{TaskID: "8", Path: origin})
	assert.Empty(t, conv.deleted, "failed tasks stay on the sandbox")
}

func TestPoller_HoldsEntryWhenQueueRefills(t *testing.T) {
	q := NewQueue(1)
	p := newTestPoller(newFakeStore(), &fakeConverter{statuses: []types.LocalStatus{types.StatusPending}}, q)
	require.True(t, q.TryPush(types.Entry{TaskID: "other", Path: "/in/other.doc"}))

	p.handle(context.Background(), types.Entry{TaskID: "7", Path: origin})
	require.NotNil(t, p.held)

	e, ok := p.next(context.Background())
	require.True(t, ok)
	assert.Equal(t, "7", e.TaskID)
	assert.Nil(t, p.held)
}

func TestPoller_ShutdownLeavesClaim(t *testing.T) {
	store := newFakeStore()
	q := NewQueue(1)
	p := newTestPoller(store, &fakeConverter{statusErr: context.Canceled}, q)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p.handle(ctx, types.Entry{TaskID: "7", Path: origin})

	_, failed := store.failure(origin)
	assert.False(t, failed)
	assert.Zero(t, q.Len())
}
