// Package demo is a minimal fixed-width row store exercising the buffer
// pool's public surface the way a real executor/heap layer would. It
// stands in for the table heap the full SQL engine would otherwise
// provide -- out of scope for this module beyond this one collaborator.
package demo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/novasql/bufcore/internal/bufferpool"
)

var (
	// ErrTableClosed is returned by any operation on a closed Table.
	ErrTableClosed = errors.New("demo: table is closed")

	// ErrRowSize is returned when a row's length doesn't match RowSize.
	ErrRowSize = errors.New("demo: row size mismatch")
)

// RowID identifies one fixed-width row: the page holding it and its
// byte offset within that page. Analogous to the teacher's heap.TID,
// minus the slot-directory indirection this store doesn't need.
type RowID struct {
	PageID bufferpool.PageID
	Offset uint16
}

// Table appends fixed-width rows to a sequence of pages obtained from
// Pool, packing each page as full as RowSize allows before allocating
// the next one.
type Table struct {
	Name    string
	Pool    *bufferpool.Pool
	RowSize int

	curPage bufferpool.PageID
	offset  uint16
	hasPage bool

	closed atomic.Bool
}

// NewTable returns a Table backed by pool, storing rows of exactly
// rowSize bytes.
func NewTable(name string, pool *bufferpool.Pool, rowSize int) *Table {
	return &Table{Name: name, Pool: pool, RowSize: rowSize}
}

func (t *Table) ensureOpen() error {
	if t.closed.Load() {
		return fmt.Errorf("%w: %s", ErrTableClosed, t.Name)
	}
	return nil
}

// Insert appends row to the table's current page, allocating a new
// page first if the current one has no room left.
func (t *Table) Insert(ctx context.Context, row []byte) (RowID, error) {
	if err := t.ensureOpen(); err != nil {
		return RowID{}, err
	}
	if len(row) != t.RowSize {
		return RowID{}, fmt.Errorf("%w: got %d bytes, want %d", ErrRowSize, len(row), t.RowSize)
	}

	if !t.hasPage || int(t.offset)+t.RowSize > bufferpool.PageSize {
		if err := t.allocatePageLocked(ctx); err != nil {
			return RowID{}, err
		}
	}

	page, err := t.Pool.FetchPage(ctx, t.curPage)
	if err != nil {
		return RowID{}, err
	}
	if page == nil {
		return RowID{}, bufferpool.ErrPoolFull
	}
	defer func() { _ = t.Pool.UnpinPage(t.curPage, true) }()

	buf := make([]byte, bufferpool.PageSize)
	copy(buf, page.Data[:])
	copy(buf[t.offset:], row)
	if err := t.Pool.WriteData(t.curPage, buf); err != nil {
		return RowID{}, err
	}

	id := RowID{PageID: t.curPage, Offset: t.offset}
	t.offset += uint16(t.RowSize)
	return id, nil
}

func (t *Table) allocatePageLocked(ctx context.Context) error {
	pid, _, err := t.Pool.NewPage(ctx)
	if err != nil {
		return err
	}
	if t.hasPage {
		if err := t.Pool.UnpinPage(t.curPage, false); err != nil {
			return err
		}
	}
	t.curPage = pid
	t.offset = 0
	t.hasPage = true
	slog.Debug("demo: table allocated page", "table", t.Name, "pageID", pid)
	return nil
}

// Read returns a copy of the row at id.
func (t *Table) Read(ctx context.Context, id RowID) ([]byte, error) {
	if err := t.ensureOpen(); err != nil {
		return nil, err
	}

	page, err := t.Pool.FetchPage(ctx, id.PageID)
	if err != nil {
		return nil, err
	}
	if page == nil {
		return nil, bufferpool.ErrPoolFull
	}
	defer func() { _ = t.Pool.UnpinPage(id.PageID, false) }()

	row := make([]byte, t.RowSize)
	copy(row, page.Data[id.Offset:int(id.Offset)+t.RowSize])
	return row, nil
}

// Close flushes the current page and marks the table closed; subsequent
// operations fail with ErrTableClosed.
func (t *Table) Close(ctx context.Context) error {
	if !t.closed.CompareAndSwap(false, true) {
		return fmt.Errorf("%w: %s", ErrTableClosed, t.Name)
	}
	if !t.hasPage {
		return nil
	}
	if err := t.Pool.FlushPage(ctx, t.curPage); err != nil {
		return err
	}
	return t.Pool.UnpinPage(t.curPage, false)
}
