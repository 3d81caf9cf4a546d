package bench

import "fmt"

// ConfigurationError is returned when the benchmark cannot run with the
// parameters or the process group it was given.
type ConfigurationError struct {
	Name    string      // Parameter name, e.g., "processes" or "maxI"
	Value   interface{} // Value of the parameter
	Message string      // Precondition that was violated
}

func (err *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s %v: %s", err.Name, err.Value, err.Message)
}

// DimensionMismatchError is returned by Fit when x and y have different lengths.
type DimensionMismatchError struct {
	X int
	Y int
}

func (err *DimensionMismatchError) Error() string {
	return fmt.Sprintf("cannot fit %d x values against %d y values", err.X, err.Y)
}

// InsufficientPointsError is returned by Fit when the points cannot determine
// a line and its variance: fewer than three points, or x values that are all
// equal.
type InsufficientPointsError struct {
	N       int
	Message string
}

func (err *InsufficientPointsError) Error() string {
	return fmt.Sprintf("cannot fit %d points: %s", err.N, err.Message)
}

// TransportFailure wraps an error returned by the process group. A transport
// failure aborts the whole run.
type TransportFailure struct {
	Op   string // "send", "recv" or "barrier"
	Peer int    // Rank of the other side, -1 for collectives
	Err  error
}

func (err *TransportFailure) Error() string {
	if err.Peer < 0 {
		return fmt.Sprintf("%s failed: %v", err.Op, err.Err)
	}
	return fmt.Sprintf("%s with rank %d failed: %v", err.Op, err.Peer, err.Err)
}

func (err *TransportFailure) Unwrap() error {
	return err.Err
}
