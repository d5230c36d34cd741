// Package sequence allocates collision-free, human-readable document
// numbers scoped per org and document kind.
package sequence

import (
	"context"
	"fmt"
)

// Kind identifies a document number series.
type Kind string

const (
	KindPurchaseRequest Kind = "PR"
	KindPurchaseOrder   Kind = "PO"
	KindGoodsReceipt    Kind = "GR"
	KindServiceReceipt  Kind = "SR"
	KindJournalVoucher  Kind = "JV"
	KindVendorInvoice   Kind = "INV"
)

// Generator hands out the next document number for an org and kind.
// Implementations must be safe for concurrent use within one org+kind.
type Generator interface {
	Next(ctx context.Context, orgID int64, kind Kind) (string, error)
}

// width returns the zero-padding applied to the counter portion.
func width(kind Kind) int {
	if kind == KindPurchaseRequest || kind == KindJournalVoucher || kind == KindVendorInvoice {
		return 4
	}
	return 3
}

// Format renders a document number as {PREFIX}-{YEAR}-{zero-padded counter}.
func Format(kind Kind, year int, counter int64) string {
	return fmt.Sprintf("%s-%d-%0*d", kind, year, width(kind), counter)
}
