package compress

import "errors"

// Every outcome other than a successful replacement is recorded in
// Report.Err with one of these; none of them reaches the caller as an error.
var (
	ErrDecode             = errors.New("input is not a decodable image")
	ErrSurfaceUnavailable = errors.New("drawing surface unavailable")
	ErrEncode             = errors.New("encode failed")
	ErrBudgetUnreachable  = errors.New("no candidate fits the budget")
	ErrNoImprovement      = errors.New("candidate is not smaller than the original")
	ErrDeadline           = errors.New("search interrupted")
)

// Outcome names for reports and manifests.
const (
	OutcomeCompressed         = "compressed"
	OutcomeDecodeFailure      = "decode_failure"
	OutcomeSurfaceUnavailable = "surface_unavailable"
	OutcomeEncodeFailure      = "encode_failure"
	OutcomeBudgetUnreachable  = "budget_unreachable"
	OutcomeNoImprovement      = "no_improvement"
	OutcomeDeadline           = "deadline"
)

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeCompressed
	case errors.Is(err, ErrDecode):
		return OutcomeDecodeFailure
	case errors.Is(err, ErrSurfaceUnavailable):
		return OutcomeSurfaceUnavailable
	case errors.Is(err, ErrEncode):
		return OutcomeEncodeFailure
	case errors.Is(err, ErrBudgetUnreachable):
		return OutcomeBudgetUnreachable
	case errors.Is(err, ErrNoImprovement):
		return OutcomeNoImprovement
	case errors.Is(err, ErrDeadline):
		return OutcomeDeadline
	}
	return OutcomeEncodeFailure
}

// expected reports whether err is a normal way for the search to end
// without a replacement, as opposed to a fault worth logging.
func expected(err error) bool {
	return errors.Is(err, ErrBudgetUnreachable) || errors.Is(err, ErrNoImprovement)
}
