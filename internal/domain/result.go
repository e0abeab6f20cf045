package domain

import "fmt"

// Outcome classifies how a research call ended.
type Outcome int

const (
	// OutcomeOK means the call produced data.
	OutcomeOK Outcome = iota
	// OutcomeNoData means every provider answered but nothing usable came back.
	OutcomeNoData
	// OutcomeProviderFailed means at least one provider errored and nothing usable came back.
	OutcomeProviderFailed
	// OutcomeFatal means the caller must stop the pipeline.
	OutcomeFatal
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeNoData:
		return "no_data"
	case OutcomeProviderFailed:
		return "provider_failed"
	case OutcomeFatal:
		return "fatal"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result always carries a usable Value, even when Outcome is not OK.
type Result[T any] struct {
	Value   T
	Outcome Outcome
	Err     error
}

// OK wraps a successful value.
func OK[T any](v T) Result[T] {
	return Result[T]{Value: v, Outcome: OutcomeOK}
}

// NoData wraps an empty but valid value.
func NoData[T any](v T) Result[T] {
	return Result[T]{Value: v, Outcome: OutcomeNoData}
}

// ProviderFailed wraps a degraded value together with the provider error.
func ProviderFailed[T any](v T, err error) Result[T] {
	return Result[T]{Value: v, Outcome: OutcomeProviderFailed, Err: err}
}

// Fatal wraps an error that must end the pipeline.
func Fatal[T any](v T, err error) Result[T] {
	return Result[T]{Value: v, Outcome: OutcomeFatal, Err: err}
}

// IsFatal reports whether the pipeline has to stop.
func (r Result[T]) IsFatal() bool {
	return r.Outcome == OutcomeFatal
}
