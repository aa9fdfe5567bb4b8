package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/novasql/bufcore/internal/bufferpool"
	"github.com/novasql/bufcore/internal/diskmanager"
	"github.com/novasql/bufcore/internal/diskscheduler"
)

func main() {
	r := bufferpool.NewReplacer(bufferpool.PolicyLRU, 4)
	r.RecordAccess(1)
	r.RecordAccess(2)
	r.RecordAccess(3)
	r.SetEvictable(1, false)
	r.SetEvictable(2, true)
	r.SetEvictable(3, false)

	victim, ok := r.Evict()
	fmt.Printf("S7 victim (want 2): %v ok=%v\n", victim, ok)

	_, ok = r.Evict()
	fmt.Printf("S7 second evict (want none): ok=%v\n", ok)

	dir, err := os.MkdirTemp("", "bufpool-manual")
	if err != nil {
		panic(err)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	dm, err := diskmanager.New(filepath.Join(dir, "manual.db"))
	if err != nil {
		panic(err)
	}
	sched := diskscheduler.New(dm, diskscheduler.NewConfig())
	defer func() { _ = sched.Close() }()

	pool := bufferpool.NewPool(sched, bufferpool.Config{PoolSize: 2, Policy: bufferpool.PolicyLRU})
	ctx := context.Background()

	pid, _, err := pool.NewPage(ctx)
	if err != nil {
		panic(err)
	}
	if err := pool.WriteData(pid, []byte("Hello")); err != nil {
		panic(err)
	}
	if err := pool.UnpinPage(pid, true); err != nil {
		panic(err)
	}
	if err := pool.FlushPage(ctx, pid); err != nil {
		panic(err)
	}

	buf := make([]byte, diskmanager.PageSize)
	if err := dm.ReadPage(uint32(pid), buf); err != nil {
		panic(err)
	}
	fmt.Printf("S3-style round trip: %q\n", string(buf[:5]))
}
