package counting

// ClosingStatus is a read-only projection of whether an inventory can be
// finalized. The same evaluation backs GetClosingStatus and the finalize/close
// precondition checks, so the preview and the guard can never disagree.
type ClosingStatus struct {
	OpenSectors        []SectorRef `json:"open_sectors"`
	OpenSectorCount    int         `json:"open_sector_count"`
	PendingDivergences int64       `json:"pending_divergences"`
	ReadyToClose       bool        `json:"ready_to_close"`
}

// EvaluateClosing computes the closing status from the inventory's sectors and
// its pending divergence count.
func EvaluateClosing(sectors []Sector, pendingDivergences int64) ClosingStatus {
	open := make([]SectorRef, 0)
	for i := range sectors {
		if sectors[i].Status != SectorStatusFinalized {
			open = append(open, sectors[i].Ref())
		}
	}
	return ClosingStatus{
		OpenSectors:        open,
		OpenSectorCount:    len(open),
		PendingDivergences: pendingDivergences,
		ReadyToClose:       len(open) == 0 && pendingDivergences == 0,
	}
}
