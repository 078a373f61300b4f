package errors

import (
	stderrors "errors"

	"github.com/vango-dev/bindery/pkg/bus"
	"github.com/vango-dev/bindery/pkg/model"
)

// Classify maps an error returned by the bus or the model to a coded
// error. Errors that already carry a code are returned as they are;
// anything unrecognized is filed under fallback.
func Classify(err error, fallback string) *Error {
	if err == nil {
		return nil
	}
	var coded *Error
	if stderrors.As(err, &coded) {
		return coded
	}

	var rule *model.RuleError
	var hp *bus.HandlerPanic
	var hf *bus.HandlerFailure
	switch {
	case stderrors.Is(err, model.ErrCycleLimit):
		return New("M001").Wrap(err)
	case stderrors.As(err, &rule):
		return New("M002").WithDetailf("rule %q on %s: %v", rule.Message, rule.Property, rule.Value).Wrap(err)
	case stderrors.As(err, &hp):
		return New("B002").WithDetailf("%s handler at position %d: %v", hp.Kind, hp.Position, hp.Value).Wrap(err)
	case stderrors.As(err, &hf):
		return New("B001").WithDetailf("%d %s handler(s) failed", len(hf.Causes), hf.Kind).Wrap(err)
	case stderrors.Is(err, bus.ErrInvalidArgument):
		return New("B003").Wrap(err)
	default:
		return New(fallback).Wrap(err)
	}
}
