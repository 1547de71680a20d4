package counting

import (
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SectorProductCount is the aggregated count for one (product, sector) pair:
// the exact decimal sum of all entry quantities, and the OR of their
// reconciled flags. One reviewed entry marks the whole pair reconciled.
type SectorProductCount struct {
	SectorID    uuid.UUID
	ProductID   uuid.UUID
	ProductCode string
	Quantity    decimal.Decimal
	Reconciled  bool
	Entries     int
}

// AggregateEntries folds raw count entries into per (product, sector) totals.
// Summation is exact decimal arithmetic; ordering of the input is irrelevant.
func AggregateEntries(entries []CountEntry) []SectorProductCount {
	type key struct {
		sector  uuid.UUID
		product uuid.UUID
	}
	byPair := make(map[key]*SectorProductCount)
	order := make([]key, 0)

	for i := range entries {
		e := &entries[i]
		k := key{sector: e.SectorID, product: e.ProductID}
		agg, ok := byPair[k]
		if !ok {
			agg = &SectorProductCount{
				SectorID:    e.SectorID,
				ProductID:   e.ProductID,
				ProductCode: e.ProductCode,
				Quantity:    decimal.Zero,
			}
			byPair[k] = agg
			order = append(order, k)
		}
		agg.Quantity = agg.Quantity.Add(e.Quantity)
		agg.Reconciled = agg.Reconciled || e.Reconciled
		agg.Entries++
	}

	result := make([]SectorProductCount, 0, len(order))
	for _, k := range order {
		result = append(result, *byPair[k])
	}
	return result
}

// Divergence is a derived view: a (product, sector) pair whose counted total
// differs from the expected balance. Never persisted; recomputed on read.
type Divergence struct {
	ProductID   uuid.UUID       `json:"product_id"`
	ProductCode string          `json:"product_code"`
	ProductName string          `json:"product_name"`
	SectorID    uuid.UUID       `json:"sector_id"`
	Expected    decimal.Decimal `json:"expected"`
	Counted     decimal.Decimal `json:"counted"`
	Difference  decimal.Decimal `json:"difference"` // counted - expected, signed
	Reconciled  bool            `json:"reconciled"`
}

// DivergenceStatus filters divergences by their reconciliation state
type DivergenceStatus string

const (
	DivergenceStatusPending    DivergenceStatus = "pending"
	DivergenceStatusReconciled DivergenceStatus = "reconciled"
)

// IsValid checks if the status is a known filter value
func (s DivergenceStatus) IsValid() bool {
	return s == DivergenceStatusPending || s == DivergenceStatusReconciled
}

// ComputeDivergences joins aggregated counts against expected balances and
// keeps only pairs where counted != expected (exact equality; quantities are
// discrete). The result is sorted by |difference| descending.
func ComputeDivergences(counts []SectorProductCount, balances []ProductBalance) []Divergence {
	byProduct := make(map[uuid.UUID]*ProductBalance, len(balances))
	for i := range balances {
		byProduct[balances[i].ProductID] = &balances[i]
	}

	divergences := make([]Divergence, 0)
	for _, c := range counts {
		balance, ok := byProduct[c.ProductID]
		if !ok {
			// Counted but never expected: everything counted is surplus.
			divergences = append(divergences, Divergence{
				ProductID:   c.ProductID,
				ProductCode: c.ProductCode,
				SectorID:    c.SectorID,
				Expected:    decimal.Zero,
				Counted:     c.Quantity,
				Difference:  c.Quantity,
				Reconciled:  c.Reconciled,
			})
			continue
		}
		if c.Quantity.Equal(balance.ExpectedQuantity) {
			continue
		}
		divergences = append(divergences, Divergence{
			ProductID:   c.ProductID,
			ProductCode: balance.ProductCode,
			ProductName: balance.ProductName,
			SectorID:    c.SectorID,
			Expected:    balance.ExpectedQuantity,
			Counted:     c.Quantity,
			Difference:  c.Quantity.Sub(balance.ExpectedQuantity),
			Reconciled:  c.Reconciled,
		})
	}

	SortDivergences(divergences)
	return divergences
}

// SortDivergences orders by absolute difference descending, largest
// discrepancies first. The ordering is a product requirement.
func SortDivergences(divergences []Divergence) {
	sort.SliceStable(divergences, func(i, j int) bool {
		return divergences[i].Difference.Abs().GreaterThan(divergences[j].Difference.Abs())
	})
}

// FilterDivergences keeps divergences matching the given status
func FilterDivergences(divergences []Divergence, status DivergenceStatus) []Divergence {
	filtered := make([]Divergence, 0, len(divergences))
	for _, d := range divergences {
		switch status {
		case DivergenceStatusPending:
			if !d.Reconciled {
				filtered = append(filtered, d)
			}
		case DivergenceStatusReconciled:
			if d.Reconciled {
				filtered = append(filtered, d)
			}
		default:
			filtered = append(filtered, d)
		}
	}
	return filtered
}
