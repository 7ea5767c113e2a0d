package matching

import "github.com/steeldragon666/abfi-nextgen-sub001/internal/pkg/apperrors"

var (
	ErrDemandSignalNotFound = apperrors.NotFound("Demand signal not found")
	ErrMatchNotFound        = apperrors.NotFound("Match not found")
	ErrNotSignalOwner       = apperrors.Forbidden("Caller is not the owning buyer of this demand signal")
	ErrNotCounterparty      = apperrors.Forbidden("Caller is not a counterparty to this match")
	ErrNoSupplierProfile    = apperrors.NotFound("No supplier profile for caller")
	ErrMatchExpired         = apperrors.InvalidState("Match has expired")
	ErrInsufficientSupply   = apperrors.Validation("Insufficient available supply volume")
)
