package database

// Storage defines the interface that all database implementations must satisfy
type Storage interface {
	// Lifecycle methods
	Init() error
	Close() error
	HealthCheck() error

	// GORM DB access, *gorm.DB for GORMStore. Repositories wrap it.
	GetDB() interface{}
}
