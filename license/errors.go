package license

import "errors"

var (
	// ErrInvalidPeriods indicates a purchase of zero periods.
	ErrInvalidPeriods = errors.New("license: periods must be positive")

	// ErrPriceMismatch indicates the offered price per period differs from
	// the asset's license price.
	ErrPriceMismatch = errors.New("license: price per period does not match")

	// ErrLicensingDisabled indicates the asset has no license price.
	ErrLicensingDisabled = errors.New("license: licensing disabled for asset")

	// ErrOverflow indicates the cost or expiry does not fit.
	ErrOverflow = errors.New("license: arithmetic overflow")

	// ErrInvalidRecord indicates a persisted license record is corrupt.
	ErrInvalidRecord = errors.New("license: invalid record")

	// ErrNilParam indicates a required dependency is missing.
	ErrNilParam = errors.New("license: required parameter is nil")
)
