package bufferpool

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/novasql/bufcore/internal/diskmanager"
	"github.com/novasql/bufcore/internal/diskscheduler"
)

func newTestPool(t *testing.T, poolSize int, policy Policy) (*Pool, *diskmanager.Manager) {
	t.Helper()

	dm, err := diskmanager.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	sched := diskscheduler.New(dm, diskscheduler.NewConfig())
	t.Cleanup(func() { _ = sched.Close() })

	pool := NewPool(sched, Config{PoolSize: poolSize, Policy: policy})
	return pool, dm
}

func TestPool_NewPage_StartsEmpty(t *testing.T) {
	pool, _ := newTestPool(t, 2, PolicyLRU)
	_, page, err := pool.NewPage(context.Background())
	require.NoError(t, err)
	require.True(t, page.Empty())
}

func TestPool_S1_FillReadBackRetry(t *testing.T) {
	pool, _ := newTestPool(t, 10, PolicyLRU)
	ctx := context.Background()

	var ids []PageID
	for i := 0; i < 10; i++ {
		pid, page, err := pool.NewPage(ctx)
		require.NoError(t, err)
		require.Equal(t, uint32(1), page.PinCount)
		ids = append(ids, pid)
	}

	_, _, err := pool.NewPage(ctx)
	require.ErrorIs(t, err, ErrPoolFull)

	for i := 0; i < 5; i++ {
		require.NoError(t, pool.UnpinPage(ids[i], true))
		require.NoError(t, pool.FlushPage(ctx, ids[i]))
	}

	for i := 0; i < 5; i++ {
		pid, _, err := pool.NewPage(ctx)
		require.NoError(t, err)
		require.Equal(t, PageID(10+i), pid)
	}
}

func TestPool_S2_WriteReadRoundTripAcrossEviction(t *testing.T) {
	pool, dm := newTestPool(t, 10, PolicyLRU)
	ctx := context.Background()

	p0, _, err := pool.NewPage(ctx)
	require.NoError(t, err)
	require.NoError(t, pool.WriteData(p0, []byte("Hello")))
	require.NoError(t, pool.UnpinPage(p0, true))

	// Each new page is unpinned again so that a frame stays evictable for
	// the FetchPage below; with every frame pinned it would return nil.
	for i := 0; i < 10; i++ {
		pid, _, err := pool.NewPage(ctx)
		require.NoError(t, err)
		require.NoError(t, pool.UnpinPage(pid, false))
	}

	page, err := pool.FetchPage(ctx, p0)
	require.NoError(t, err)
	require.NotNil(t, page)
	require.Equal(t, "Hello", string(page.Data[:5]))

	buf := make([]byte, diskmanager.PageSize)
	require.NoError(t, dm.ReadPage(uint32(p0), buf))
	require.Equal(t, "Hello", string(buf[:5]))
}

func TestPool_Invariant2_FlushRoundTrip(t *testing.T) {
	pool, dm := newTestPool(t, 4, PolicyLRU)
	ctx := context.Background()

	pid, _, err := pool.NewPage(ctx)
	require.NoError(t, err)

	payload := []byte("round-trip-data")
	require.NoError(t, pool.WriteData(pid, payload))
	require.NoError(t, pool.UnpinPage(pid, true))
	require.NoError(t, pool.FlushPage(ctx, pid))

	buf := make([]byte, diskmanager.PageSize)
	require.NoError(t, dm.ReadPage(uint32(pid), buf))
	require.Equal(t, payload, buf[:len(payload)])
	require.Equal(t, make([]byte, diskmanager.PageSize-len(payload)), buf[len(payload):])
}

func TestPool_Invariant4_UnpinMakesFrameNextVictim(t *testing.T) {
	pool, _ := newTestPool(t, 1, PolicyLRU)
	ctx := context.Background()

	p0, _, err := pool.NewPage(ctx)
	require.NoError(t, err)
	require.NoError(t, pool.UnpinPage(p0, false))

	p1, _, err := pool.NewPage(ctx)
	require.NoError(t, err)
	require.NotEqual(t, p0, p1)

	page, err := pool.FetchPage(ctx, p0)
	require.NoError(t, err)
	require.Nil(t, page) // pool full: p1 is pinned, no frame to evict
}

func TestPool_Invariant5_UnpinParity(t *testing.T) {
	pool, _ := newTestPool(t, 2, PolicyLRU)
	ctx := context.Background()

	pid, _, err := pool.NewPage(ctx)
	require.NoError(t, err)

	page, err := pool.FetchPage(ctx, pid)
	require.NoError(t, err)
	require.Equal(t, uint32(2), page.PinCount)

	require.NoError(t, pool.UnpinPage(pid, false))
	require.NoError(t, pool.UnpinPage(pid, false))

	// Further unpins cap at zero rather than going negative or erroring.
	require.NoError(t, pool.UnpinPage(pid, false))
}

func TestPool_UnpinUnknownPage_ReturnsPageNotFound(t *testing.T) {
	pool, _ := newTestPool(t, 2, PolicyLRU)
	err := pool.UnpinPage(999, false)
	require.ErrorIs(t, err, ErrPageNotFound)
}

func TestPool_FlushPage_CleanIsNotAnError(t *testing.T) {
	pool, _ := newTestPool(t, 2, PolicyLRU)
	ctx := context.Background()

	pid, _, err := pool.NewPage(ctx)
	require.NoError(t, err)
	require.NoError(t, pool.UnpinPage(pid, false))
	require.NoError(t, pool.FlushPage(ctx, pid))
}

func TestPool_FlushPage_NotResident_ReturnsPageNotFound(t *testing.T) {
	pool, _ := newTestPool(t, 2, PolicyLRU)
	err := pool.FlushPage(context.Background(), 123)
	require.ErrorIs(t, err, ErrPageNotFound)
}

func TestPool_DeletePage_ReturnsFrameToFreeList(t *testing.T) {
	pool, _ := newTestPool(t, 1, PolicyLRU)
	ctx := context.Background()

	pid, _, err := pool.NewPage(ctx)
	require.NoError(t, err)
	require.NoError(t, pool.UnpinPage(pid, true))
	require.NoError(t, pool.DeletePage(ctx, pid))

	newPid, _, err := pool.NewPage(ctx)
	require.NoError(t, err)
	require.NotEqual(t, pid, newPid)
}

func TestPool_Reset_ClearsStateAndFlushesDirty(t *testing.T) {
	pool, dm := newTestPool(t, 4, PolicyLRU)
	ctx := context.Background()

	pid, _, err := pool.NewPage(ctx)
	require.NoError(t, err)
	require.NoError(t, pool.WriteData(pid, []byte("persisted")))
	require.NoError(t, pool.UnpinPage(pid, true))

	require.NoError(t, pool.Reset(ctx))

	buf := make([]byte, diskmanager.PageSize)
	require.NoError(t, dm.ReadPage(uint32(pid), buf))
	require.Equal(t, "persisted", string(buf[:9]))

	newPid, _, err := pool.NewPage(ctx)
	require.NoError(t, err)
	require.Equal(t, PageID(0), newPid)
}

func TestPool_FlushAllPages_ClearsDirtyOnSuccess(t *testing.T) {
	pool, dm := newTestPool(t, 4, PolicyLRU)
	ctx := context.Background()

	p0, _, err := pool.NewPage(ctx)
	require.NoError(t, err)
	p1, _, err := pool.NewPage(ctx)
	require.NoError(t, err)

	require.NoError(t, pool.WriteData(p0, []byte("AAAA")))
	require.NoError(t, pool.WriteData(p1, []byte("BBBB")))
	require.NoError(t, pool.UnpinPage(p0, true))
	require.NoError(t, pool.UnpinPage(p1, true))

	require.NoError(t, pool.FlushAllPages(ctx))

	buf0 := make([]byte, diskmanager.PageSize)
	require.NoError(t, dm.ReadPage(uint32(p0), buf0))
	require.Equal(t, "AAAA", string(buf0[:4]))

	buf1 := make([]byte, diskmanager.PageSize)
	require.NoError(t, dm.ReadPage(uint32(p1), buf1))
	require.Equal(t, "BBBB", string(buf1[:4]))

	page0, err := pool.FetchPage(ctx, p0)
	require.NoError(t, err)
	require.False(t, page0.IsDirty)
}

func TestPool_ReadWriteData_RoundTrip(t *testing.T) {
	pool, _ := newTestPool(t, 2, PolicyLRU)
	ctx := context.Background()

	pid, _, err := pool.NewPage(ctx)
	require.NoError(t, err)

	require.NoError(t, pool.WriteData(pid, []byte("in-memory")))
	data, err := pool.ReadData(pid)
	require.NoError(t, err)
	require.Equal(t, "in-memory", string(data[:9]))
}
