package classify

import "fmt"

// StatusClass is what the scheduler and UI act on.
type StatusClass int

const (
	StatusOK StatusClass = iota
	StatusWarningRecoverable
	StatusError
	StatusBlocked
	StatusCritical
)

func (s StatusClass) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusWarningRecoverable:
		return "WARNING_RECOVERABLE"
	case StatusError:
		return "ERROR"
	case StatusBlocked:
		return "BLOCKED"
	case StatusCritical:
		return "CRITICAL"
	default:
		return fmt.Sprintf("StatusClass(%d)", int(s))
	}
}

func (s StatusClass) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *StatusClass) UnmarshalText(b []byte) error {
	v, err := ParseStatusClass(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseStatusClass converts the wire form back to a StatusClass.
func ParseStatusClass(s string) (StatusClass, error) {
	for k := StatusOK; k <= StatusCritical; k++ {
		if k.String() == s {
			return k, nil
		}
	}
	return StatusOK, fmt.Errorf("unknown status class %q", s)
}

// Halts reports whether dependents must not be attempted after a feature
// ends in s.
func (s StatusClass) Halts() bool {
	return s == StatusError || s == StatusBlocked || s == StatusCritical
}

// StatusOf maps a category to its status class when the failure
// originated in the feature itself.
func StatusOf(c Category) StatusClass {
	switch c {
	case CategoryNone:
		return StatusOK
	case CategoryDrift:
		return StatusWarningRecoverable
	case CategoryMismatch, CategoryMissing, CategoryDependencyUnavailable:
		return StatusError
	case CategoryFinalizeFailed:
		return StatusCritical
	default:
		return StatusError
	}
}

// Outcome is the classifier's verdict for a whole feature.
type Outcome struct {
	Status   StatusClass
	Category Category
	Failure  *TnpFailure // set for naming categories
	Upstream string      // failed feature that caused BLOCKED
	Detail   string      // kernel error text for finalize/dependency failures
}

// Failed reports whether the outcome needs an envelope.
func (o Outcome) Failed() bool {
	return o.Status != StatusOK
}

// FromFailures reduces a feature's slot failures to one outcome.
func FromFailures(failures []TnpFailure) Outcome {
	w, ok := Worst(failures)
	if !ok {
		return Outcome{}
	}
	return Outcome{Status: StatusOf(w.Category), Category: w.Category, Failure: &w}
}

// Blocked is the outcome for a feature whose upstream dependency already
// failed. The feature itself is not attempted.
func Blocked(upstream string) Outcome {
	return Outcome{Status: StatusBlocked, Upstream: upstream}
}

// FinalizeFailed is the outcome for an unrecoverable kernel failure that
// has nothing to do with naming.
func FinalizeFailed(err error) Outcome {
	return Outcome{Status: StatusCritical, Category: CategoryFinalizeFailed, Detail: errText(err)}
}

// Unavailable is the outcome when a kernel capability is missing at
// runtime.
func Unavailable(err error) Outcome {
	return Outcome{Status: StatusError, Category: CategoryDependencyUnavailable, Detail: errText(err)}
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
