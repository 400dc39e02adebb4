package urdf

import "errors"

// Export failure classes. Call sites wrap these with the offending
// identifier or variant name via fmt.Errorf and %w.
var (
	ErrUnsupportedGeometry      = errors.New("unsupported geometry variant")
	ErrUnsupportedOperation     = errors.New("geometry has no document encoding")
	ErrUnsupportedConfiguration = errors.New("unsupported body configuration")
	ErrModelNotFound            = errors.New("model not found in topology")
	ErrLinkMismatch             = errors.New("template links do not match topology bodies")
)
