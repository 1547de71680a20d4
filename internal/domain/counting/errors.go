package counting

import "github.com/tally/backend/internal/domain/shared"

// Error codes specific to the counting workflow. Structured details are
// attached at the call site via WithDetail so the UI can render the holder
// name, the blocking sector, or the pending totals directly.
var (
	ErrSectorInUse              = shared.NewDomainError("SECTOR_IN_USE", "Sector is currently held by another operator")
	ErrOperatorHasOpenSector    = shared.NewDomainError("OPERATOR_HAS_OPEN_SECTOR", "Operator already holds another open sector in this inventory")
	ErrSectorAlreadyFinalized   = shared.NewDomainError("SECTOR_ALREADY_FINALIZED", "Sector has already been finalized")
	ErrSectorNotInProgress      = shared.NewDomainError("SECTOR_NOT_IN_PROGRESS", "Sector is not in progress")
	ErrSectorNotFinalized       = shared.NewDomainError("SECTOR_NOT_FINALIZED", "Sector is not finalized")
	ErrSectorNotHeldByOperator  = shared.NewDomainError("SECTOR_NOT_HELD_BY_OPERATOR", "Sector is not held by this operator")
	ErrSectorsStillOpen         = shared.NewDomainError("SECTORS_STILL_OPEN", "Inventory has sectors that are not finalized")
	ErrUnreconciledDivergences  = shared.NewDomainError("UNRECONCILED_DIVERGENCES", "Inventory has pending divergences")
	ErrInventoryNotActive       = shared.NewDomainError("INVENTORY_NOT_ACTIVE", "Inventory is not active")
	ErrInventoryAlreadyActive   = shared.NewDomainError("INVENTORY_ALREADY_ACTIVE", "Inventory is already active")
	ErrInventoryAlreadyClosed   = shared.NewDomainError("INVENTORY_ALREADY_CLOSED", "Inventory has been closed")
	ErrJustificationRequired    = shared.NewDomainError("JUSTIFICATION_REQUIRED", "A justification is required to override pending divergences")
	ErrLotCodeRequired          = shared.NewDomainError("LOT_CODE_REQUIRED", "Inventory tracks lots; a lot code is required")
	ErrExpiryRequired           = shared.NewDomainError("EXPIRY_REQUIRED", "Inventory tracks expiry; an expiry date is required")
	ErrNegativeQuantity         = shared.NewDomainError("NEGATIVE_QUANTITY", "Count quantity cannot be negative")
	ErrInventoryHasCountEntries = shared.NewDomainError("INVENTORY_HAS_COUNT_ENTRIES", "Inventory cannot be deleted once counts exist")
	ErrStorage                  = shared.NewDomainError("STORAGE_FAILURE", "Underlying storage operation failed")
)
