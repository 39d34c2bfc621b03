package lookup

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSlotGetWithoutTable(t *testing.T) {
	require := require.New(t)
	c := NewCache()
	slot := c.Acquire("w1")
	require.False(slot.Active())
	require.Equal(0, slot.Get().Len())

	table := NewTable(Row{Key: "S1", Attributes: AttributeMap{"tissue": "Liver"}})
	slot.Set(table)
	require.Same(table, slot.Get())
	require.Same(slot, c.Acquire("w1"))
	require.Equal(1, c.Active())

	slot.Set(nil)
	require.False(slot.Active())

	slot.Set(table)
	c.Release("w1")
	require.False(slot.Active())
	require.NotSame(slot, c.Acquire("w1"))
}

func TestScopeClearsOnError(t *testing.T) {
	require := require.New(t)
	c := NewCache()
	table := NewTable(Row{Key: "S1", Attributes: AttributeMap{"tissue": "Liver"}})
	boom := errors.New("boom")

	err := c.Scope(context.Background(), "w1", table, func(ctx context.Context, slot *Slot) error {
		require.Same(table, TableFromContext(ctx))
		s, ok := SlotFromContext(ctx)
		require.True(ok)
		require.Same(slot, s)
		return boom
	})
	require.ErrorIs(err, boom)
	require.False(c.Acquire("w1").Active())
	require.Equal(0, c.Acquire("w1").Get().Len())
}

func TestScopeClearsOnPanic(t *testing.T) {
	require := require.New(t)
	c := NewCache()
	table := NewTable(Row{Key: "S1", Attributes: AttributeMap{"tissue": "Liver"}})

	func() {
		defer func() {
			require.NotNil(recover())
		}()
		_ = c.Scope(context.Background(), "w1", table, func(ctx context.Context, slot *Slot) error {
			panic("tenant rule failed")
		})
	}()
	require.False(c.Acquire("w1").Active())
	require.Equal(0, c.Active())
}

func TestTableFromContextWithoutSlot(t *testing.T) {
	require := require.New(t)
	require.Equal(0, TableFromContext(context.Background()).Len())
	_, ok := SlotFromContext(context.Background())
	require.False(ok)
}

func TestScopeIsolatesWorkers(t *testing.T) {
	require := require.New(t)
	c := NewCache()

	const workers = 8
	const files = 200
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			worker := WorkerID(fmt.Sprintf("worker-%d", w))
			for f := 0; f < files; f++ {
				want := fmt.Sprintf("%d-%d", w, f)
				table := NewTable(Row{Key: "S1", Attributes: AttributeMap{"owner": want}})
				err := c.Scope(context.Background(), worker, table, func(ctx context.Context, _ *Slot) error {
					got, ok := LookupAttribute("sample_S1_R1", "owner", TableFromContext(ctx))
					if !ok || got != want {
						return fmt.Errorf("worker %s observed %q, want %q", worker, got, want)
					}
					return nil
				})
				if err != nil {
					errs <- err
					return
				}
			}
		}(w)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(err)
	}
	require.Equal(0, c.Active())
}
