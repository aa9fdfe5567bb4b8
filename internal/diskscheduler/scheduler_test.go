package diskscheduler

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/novasql/bufcore/internal/diskmanager"
)

func newTestScheduler(t *testing.T, cfg Config) (*Scheduler, *diskmanager.Manager) {
	t.Helper()
	dm, err := diskmanager.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	s := New(dm, cfg)
	t.Cleanup(func() { _ = s.Close() })
	return s, dm
}

func TestScheduler_S3_ImmediateWrite(t *testing.T) {
	s, dm := newTestScheduler(t, NewConfig())
	ctx := context.Background()

	require.NoError(t, s.ScheduleWrite(ctx, 0, []byte{1, 2, 3, 4}, Immediate))

	buf := make([]byte, diskmanager.PageSize)
	require.NoError(t, dm.ReadPage(0, buf))
	require.Equal(t, []byte{1, 2, 3, 4}, buf[:4])
	require.Equal(t, make([]byte, diskmanager.PageSize-4), buf[4:])
}

func TestScheduler_S4_BufferedFlush(t *testing.T) {
	cfg := NewConfig()
	cfg.FlushInterval = time.Hour // only the explicit drain below should fire
	cfg.MaxBufferSize = 1000
	s, dm := newTestScheduler(t, cfg)
	ctx := context.Background()

	require.NoError(t, s.ScheduleWrite(ctx, 0, []byte{1, 2, 3, 4}, Buffered))
	s.bufMu.Lock()
	require.Len(t, s.buffer, 1)
	s.bufMu.Unlock()

	require.NoError(t, s.drainBuffer())

	s.bufMu.Lock()
	require.Len(t, s.buffer, 0)
	s.bufMu.Unlock()

	buf := make([]byte, diskmanager.PageSize)
	require.NoError(t, dm.ReadPage(0, buf))
	require.Equal(t, []byte{1, 2, 3, 4}, buf[:4])
}

func TestScheduler_BufferedWrite_DrainsAtMaxBufferSize(t *testing.T) {
	cfg := NewConfig()
	cfg.FlushInterval = time.Hour
	cfg.MaxBufferSize = 2
	s, dm := newTestScheduler(t, cfg)
	ctx := context.Background()

	require.NoError(t, s.ScheduleWrite(ctx, 0, []byte{1}, Buffered))
	require.NoError(t, s.ScheduleWrite(ctx, 1, []byte{2}, Buffered))

	s.bufMu.Lock()
	drained := len(s.buffer) == 0
	s.bufMu.Unlock()
	require.True(t, drained)

	buf := make([]byte, diskmanager.PageSize)
	require.NoError(t, dm.ReadPage(1, buf))
	require.Equal(t, byte(2), buf[0])
}

func TestScheduler_S5_BatchWrite(t *testing.T) {
	s, dm := newTestScheduler(t, NewConfig())
	ctx := context.Background()

	err := s.BatchWrite(ctx, []WriteItem{
		{PageID: 0, Data: []byte("AAAA")},
		{PageID: 1, Data: []byte("BBBB")},
	})
	require.NoError(t, err)

	buf0 := make([]byte, diskmanager.PageSize)
	require.NoError(t, dm.ReadPage(0, buf0))
	require.Equal(t, "AAAA", string(buf0[:4]))

	buf1 := make([]byte, diskmanager.PageSize)
	require.NoError(t, dm.ReadPage(1, buf1))
	require.Equal(t, "BBBB", string(buf1[:4]))
}

func TestScheduler_ScheduleRead_ReturnsFullPage(t *testing.T) {
	s, _ := newTestScheduler(t, NewConfig())
	ctx := context.Background()

	require.NoError(t, s.ScheduleWrite(ctx, 3, []byte("hi"), Immediate))

	data, err := s.ScheduleRead(ctx, 3)
	require.NoError(t, err)
	require.Len(t, data, diskmanager.PageSize)
	require.Equal(t, "hi", string(data[:2]))
}

func TestScheduler_ScheduleWrite_TolerantOfCancelledCaller(t *testing.T) {
	s, _ := newTestScheduler(t, NewConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.ScheduleWrite(ctx, 0, []byte{1}, Immediate)
	require.Error(t, err)
}

func TestScheduler_Close_DrainsInFlightWork(t *testing.T) {
	s, dm := newTestScheduler(t, NewConfig())
	ctx := context.Background()

	require.NoError(t, s.ScheduleWrite(ctx, 0, []byte("x"), Buffered))
	require.NoError(t, s.Close())

	buf := make([]byte, diskmanager.PageSize)
	require.NoError(t, dm.ReadPage(0, buf))
	require.Equal(t, byte('x'), buf[0])
}
