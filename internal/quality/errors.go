package quality

import "fmt"

// ConfigError means a check is misconfigured: unknown rule keys, an
// unsupported type tag, or an identifier outside the catalog. It fails only
// the offending check, which is reported as errored without querying.
type ConfigError struct {
	Check  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("check %s: invalid configuration: %s", e.Check, e.Reason)
}

func configErrorf(s Spec, format string, args ...any) *ConfigError {
	return &ConfigError{Check: s.Name(), Reason: fmt.Sprintf(format, args...)}
}

// ExecutionError means a check's query failed. Like ConfigError it is
// contained to the one check.
type ExecutionError struct {
	Check string
	Err   error

	// Unreachable is set when the record store could not be reached.
	Unreachable bool
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("check %s: execution failed: %v", e.Check, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }
