package domain

// Readiness is the per-cycle state of a container.
type Readiness int

const (
	// ReadinessReset means no attribute was written since the last reset.
	ReadinessReset Readiness = iota
	// ReadinessPartiallySet means some but not all attributes were written.
	ReadinessPartiallySet
	// ReadinessFullySet means every attribute was written at least once.
	ReadinessFullySet
)

var readinessNames = [...]string{"reset", "partially_set", "fully_set"}

func (r Readiness) String() string {
	if r < 0 || int(r) >= len(readinessNames) {
		return "unknown"
	}
	return readinessNames[r]
}
