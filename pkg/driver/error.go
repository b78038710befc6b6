package driver

import "fmt"

// DriverError wraps a backend failure with the failing operation's
// context: the verb, the entity type being operated on, and the original
// cause. Only driver implementations construct it; the executor
// propagates it unchanged.
type DriverError struct {
	Op         string
	EntityType string
	Err        error
}

// Error implements the error interface.
func (e *DriverError) Error() string {
	if e.EntityType == "" {
		return fmt.Sprintf("driver: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("driver: %s %s: %v", e.Op, e.EntityType, e.Err)
}

// Unwrap exposes the original cause for errors.Is / errors.As.
func (e *DriverError) Unwrap() error {
	return e.Err
}

// wrap builds a *DriverError unless err is nil.
func wrap(op, entityType string, err error) error {
	if err == nil {
		return nil
	}
	return &DriverError{Op: op, EntityType: entityType, Err: err}
}
