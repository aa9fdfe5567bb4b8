// Command bufpooldemo wires the disk manager, disk scheduler, and buffer
// pool together end to end against a real file, standing in for the
// executor/index/catalog layer this module declares out of scope.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/novasql/bufcore/internal/bufferpool"
	"github.com/novasql/bufcore/internal/config"
	"github.com/novasql/bufcore/internal/demo"
	"github.com/novasql/bufcore/internal/diskmanager"
	"github.com/novasql/bufcore/internal/diskscheduler"
)

func main() {
	var (
		cfgPath string
		dbPath  string
		rows    int
	)
	flag.StringVar(&cfgPath, "config", "", "path to a bufcore yaml config (optional)")
	flag.StringVar(&dbPath, "db", "bufpooldemo.db", "path to the database file")
	flag.IntVar(&rows, "rows", 64, "number of demo rows to insert")
	flag.Parse()

	if err := run(cfgPath, dbPath, rows); err != nil {
		log.Fatalf("bufpooldemo: %v", err)
	}
}

func run(cfgPath, dbPath string, rows int) error {
	bpCfg := bufferpool.NewConfig()
	schedCfg := diskscheduler.NewConfig()

	if cfgPath != "" {
		cfg, err := config.LoadConfig(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		bpCfg = cfg.BufferPoolConfig()
		schedCfg = cfg.SchedulerConfig()
	}

	dm, err := diskmanager.New(dbPath)
	if err != nil {
		return fmt.Errorf("open disk manager: %w", err)
	}
	defer func() { _ = dm.ShutDown() }()

	sched := diskscheduler.New(dm, schedCfg)
	defer func() { _ = sched.Close() }()

	pool := bufferpool.NewPool(sched, bpCfg)
	table := demo.NewTable("widgets", pool, 16)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for i := 0; i < rows; i++ {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		row := []byte(fmt.Sprintf("row-%012d", i))
		id, err := table.Insert(ctx, row)
		if err != nil {
			return fmt.Errorf("insert row %d: %w", i, err)
		}
		slog.Debug("bufpooldemo: inserted row", "i", i, "pageID", id.PageID, "offset", id.Offset)
	}

	if err := table.Close(ctx); err != nil {
		return fmt.Errorf("close table: %w", err)
	}

	log.Printf("bufpooldemo: wrote %d rows to %s (pool_size=%d policy=%s)", rows, dbPath, bpCfg.PoolSize, bpCfg.Policy)
	return nil
}
