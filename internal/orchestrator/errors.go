package orchestrator

import "errors"

var (
	ErrInvalidDataset       = errors.New("invalid_dataset")
	ErrInvalidMethod        = errors.New("invalid_payment_method")
	ErrWalletNotConnected   = errors.New("wallet_not_connected")
	ErrCheckoutUnavailable  = errors.New("checkout_unavailable")
	ErrPaymentCancelled     = errors.New("payment_cancelled")
	ErrPaymentFailed        = errors.New("payment_failed")
	ErrPurchaseRecordFailed = errors.New("purchase_record_failed")
	ErrAlreadyPurchased     = errors.New("already_purchased")
	ErrPurchaseInProgress   = errors.New("purchase_in_progress")
	ErrReferenceInUse       = errors.New("payment_reference_in_use")
)
