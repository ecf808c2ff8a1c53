package index

import (
	"errors"
	"fmt"
)

// PartialWriteError is returned when a fan-out left some partitions written
// and others not. The physical copies of the entity disagree until the
// caller retries or repairs.
type PartialWriteError struct {
	Entity  string
	Op      string
	Written []Policy
	Failed  []Policy
	Err     error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("partial %s of %s: %d index records succeeded, %d failed: %v",
		e.Op, e.Entity, len(e.Written), len(e.Failed), e.Err)
}

func (e *PartialWriteError) Unwrap() error {
	return e.Err
}

// IsPartialWrite reports whether err is or wraps a *PartialWriteError.
func IsPartialWrite(err error) bool {
	var p *PartialWriteError
	return errors.As(err, &p)
}

// ExtendPartial describes a failure in a later step of a multi-step write,
// after the policies in written already succeeded. If err is itself a
// *PartialWriteError its written and failed sets are merged; otherwise every
// policy in attempted is reported as failed.
func ExtendPartial(err error, entity, op string, written, attempted []Policy) *PartialWriteError {
	var inner *PartialWriteError
	if errors.As(err, &inner) {
		return &PartialWriteError{
			Entity:  entity,
			Op:      op,
			Written: append(append([]Policy(nil), written...), inner.Written...),
			Failed:  inner.Failed,
			Err:     inner.Err,
		}
	}

	PartialFailures.WithLabelValues(entity).Inc()

	return &PartialWriteError{
		Entity:  entity,
		Op:      op,
		Written: append([]Policy(nil), written...),
		Failed:  append([]Policy(nil), attempted...),
		Err:     err,
	}
}
