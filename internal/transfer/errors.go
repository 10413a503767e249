package transfer

import "errors"

var (
	// ErrFeeCalculationFailed is recoverable: the flow continues with an unknown fee.
	ErrFeeCalculationFailed = errors.New("fee calculation failed")
	// ErrFailedToSign is fatal for the current attempt.
	ErrFailedToSign = errors.New("failed to sign")
	// ErrFailedToSendTransaction is fatal and must never be retried automatically.
	ErrFailedToSendTransaction = errors.New("failed to send transaction")
	// ErrAddressResolutionFailed is returned by swap builders when a jetton wallet lookup fails.
	ErrAddressResolutionFailed = errors.New("address resolution failed")
	// ErrInvalidIntent is returned before a flow starts for an intent that cannot be built.
	ErrInvalidIntent = errors.New("invalid intent")
)
