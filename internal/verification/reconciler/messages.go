package reconciler

import (
	"verigate/internal/verification/models"
	"verigate/internal/verification/provider"
)

// User-facing messages.
const (
	MsgApproved     = "Verification complete."
	MsgInProgress   = "Verification is still in progress. Please complete the check in the verification window and wait a moment before checking again."
	MsgDeclined     = "Verification was declined. Please try again by closing this window and starting a new verification."
	MsgNotCompleted = "Verification not completed yet. Please finish the check in the verification window and make sure it is fully completed before checking again."
	MsgUnavailable  = "Unable to retrieve verification status. The session may still be processing. Please wait a moment and try again."
	MsgCancelled    = "Verification was cancelled."
	MsgExpired      = "Verification took too long and was stopped. Please start a new verification."
	MsgCreateFailed = "Could not start verification. Please try again."
	MsgMisconfig    = "Verification is not available right now. Please contact support."
)

func checkMessage(status models.Status) string {
	switch {
	case status.IsApproved():
		return MsgApproved
	case status.IsNegative():
		return MsgDeclined
	case status == models.StatusPending || status == models.StatusInReview:
		return MsgInProgress
	default:
		return MsgNotCompleted
	}
}

func createFailureMessage(err error) string {
	if provider.CategoryOf(err) == provider.CategoryMisconfigured {
		return MsgMisconfig
	}
	return MsgCreateFailed
}
