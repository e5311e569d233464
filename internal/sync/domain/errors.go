package domain

import "errors"

// Error taxonomy for remote calendar operations. Infrastructure clients
// classify transport failures into exactly one of these sentinels; the
// reconciliation engine decides per class whether to abort the run, retry
// on the next run, or count the item as failed and continue.
var (
	// ErrNotAuthenticated means no credential is present at all. Fatal for
	// the current run; the user must re-authenticate.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrAuthExpired means the remote rejected the credential. Refresh is
	// only attempted proactively before a call, never as a reaction to this.
	ErrAuthExpired = errors.New("authorization expired")

	// ErrAuthRefresh means a proactive token refresh failed.
	ErrAuthRefresh = errors.New("token refresh failed")

	// ErrPermission means the credential lacks rights on the target calendar.
	ErrPermission = errors.New("permission denied")

	// ErrNotFound means the target calendar or record is missing. Deletes
	// treat this as success; everything else surfaces it.
	ErrNotFound = errors.New("remote record not found")

	// ErrTransient covers network faults, rate limits and 5xx responses.
	// Deletions park the key in the pending set; syncs count the event as
	// failed and the batch continues.
	ErrTransient = errors.New("transient remote failure")
)

// IsAuthError reports whether err belongs to the authentication class,
// which aborts a whole run since no further remote call can succeed.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrNotAuthenticated) ||
		errors.Is(err, ErrAuthExpired) ||
		errors.Is(err, ErrAuthRefresh)
}

// IsRetryable reports whether err should be retried on a later run.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransient)
}

// DeleteOutcome is the explicit result of a remote deletion attempt.
// Callers branch on the variant instead of inspecting error types.
type DeleteOutcome int

const (
	// DeleteDone means the remote record was removed by this call.
	DeleteDone DeleteOutcome = iota
	// DeleteAlreadyGone means the record no longer existed; treated as
	// success since deletes are idempotent.
	DeleteAlreadyGone
	// DeleteRetryable means the attempt failed transiently and should be
	// retried on the next run.
	DeleteRetryable
	// DeleteFatal means the attempt failed for a non-retryable reason.
	DeleteFatal
)

func (o DeleteOutcome) String() string {
	switch o {
	case DeleteDone:
		return "done"
	case DeleteAlreadyGone:
		return "already-gone"
	case DeleteRetryable:
		return "retryable"
	case DeleteFatal:
		return "fatal"
	default:
		return "unknown"
	}
}
