package sequence

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func fixedNow() time.Time {
	return time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
}

func TestFormat(t *testing.T) {
	require.Equal(t, "PR-2025-0001", Format(KindPurchaseRequest, 2025, 1))
	require.Equal(t, "PO-2025-001", Format(KindPurchaseOrder, 2025, 1))
	require.Equal(t, "GR-2025-042", Format(KindGoodsReceipt, 2025, 42))
	require.Equal(t, "SR-2025-007", Format(KindServiceReceipt, 2025, 7))
	require.Equal(t, "JV-2025-0123", Format(KindJournalVoucher, 2025, 123))
	require.Equal(t, "INV-2025-1000", Format(KindVendorInvoice, 2025, 1000))
}

func TestMemoryGeneratorSeriesIsolation(t *testing.T) {
	gen := NewMemoryGenerator()
	gen.WithNow(fixedNow)
	ctx := context.Background()

	first, err := gen.Next(ctx, 1, KindPurchaseRequest)
	require.NoError(t, err)
	require.Equal(t, "PR-2025-0001", first)

	// Different kind and different org each start their own series.
	po, err := gen.Next(ctx, 1, KindPurchaseOrder)
	require.NoError(t, err)
	require.Equal(t, "PO-2025-001", po)

	other, err := gen.Next(ctx, 2, KindPurchaseRequest)
	require.NoError(t, err)
	require.Equal(t, "PR-2025-0001", other)

	second, err := gen.Next(ctx, 1, KindPurchaseRequest)
	require.NoError(t, err)
	require.Equal(t, "PR-2025-0002", second)
}

func TestMemoryGeneratorConcurrentUniqueness(t *testing.T) {
	gen := NewMemoryGenerator()
	gen.WithNow(fixedNow)

	const callers = 128
	var mu sync.Mutex
	seen := make(map[string]struct{}, callers)

	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < callers; i++ {
		g.Go(func() error {
			number, err := gen.Next(ctx, 7, KindVendorInvoice)
			if err != nil {
				return err
			}
			mu.Lock()
			seen[number] = struct{}{}
			mu.Unlock()
			return nil
		})
	}
	require.NoError(t, g.Wait())
	require.Len(t, seen, callers, "document numbers must be pairwise distinct")
}
