package positionsources

// PositionSource is an interface that provides standard methods for the
// various position receiver backends
type PositionSource interface {
	StartPositionSource() error
	SourceName() string
}
