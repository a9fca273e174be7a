package model

// Lifecycle tags machines, modules, availability blocks and rules. Records are
// never hard-deleted; deactivation flips the tag so historical rows that
// reference them stay joinable.
type Lifecycle string

const (
	LifecycleActive   Lifecycle = "active"
	LifecycleInactive Lifecycle = "inactive"
)

func (l Lifecycle) IsActive() bool {
	return l == LifecycleActive
}

func (l Lifecycle) Valid() bool {
	return l == LifecycleActive || l == LifecycleInactive
}
