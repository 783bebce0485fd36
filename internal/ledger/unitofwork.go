package ledger

import (
	"context"

	"github.com/hashicorp/go-multierror"

	"tally/internal/log"
)

type compensation struct {
	name string
	undo func(ctx context.Context) error
}

// unitOfWork records how to undo each completed step of a multi-table write.
type unitOfWork struct {
	s     *Session
	op    string
	steps []compensation
}

func (s *Session) begin(op string) *unitOfWork {
	return &unitOfWork{s: s, op: op}
}

// onRollback registers undo for the step that just succeeded.
func (u *unitOfWork) onRollback(name string, undo func(ctx context.Context) error) {
	u.steps = append(u.steps, compensation{name: name, undo: undo})
}

// fail undoes completed steps newest first and returns cause together with
// any compensation that could not be applied. Compensation runs even when
// ctx is already cancelled.
func (u *unitOfWork) fail(ctx context.Context, cause error) error {
	undoCtx := context.WithoutCancel(ctx)
	var result *multierror.Error
	result = multierror.Append(result, cause)

	for i := len(u.steps) - 1; i >= 0; i-- {
		step := u.steps[i]
		if err := step.undo(undoCtx); err != nil {
			u.s.logger.ErrorContext(ctx, "Compensation failed",
				log.NewFields().WithOperation(log.OpCompensate).WithError(err, log.ErrorTypeDatabase).ToSlice()...)
			result = multierror.Append(result, err)
			continue
		}
		u.s.logger.WarnContext(ctx, "Compensation applied", log.FieldOperation, log.OpCompensate, "step", step.name, "unit", u.op)
	}
	u.steps = nil

	if len(result.Errors) == 1 {
		return cause
	}
	return result.ErrorOrNil()
}
