package interfaces

// Repository defines the interface for data persistence
type Repository interface {
	Trace() TraceRepository
	Close() error
}
