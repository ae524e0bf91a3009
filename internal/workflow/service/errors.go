package service

import "errors"

// Configuration errors abort the triggering operation with no partial state.
var (
	// ErrNoDefinitionConfigured indicates the company has no active definition for the workflow type.
	ErrNoDefinitionConfigured = errors.New("no workflow definition configured for this workflow type")

	// ErrNoApplicableDefinition indicates no configured definition's applicability rules match the employee.
	ErrNoApplicableDefinition = errors.New("no applicable workflow definition for this employee")

	// ErrNoApproversResolved indicates a stage produced an empty approver set after evaluation.
	ErrNoApproversResolved = errors.New("no approvers resolved for stage")

	// ErrStageNotFound indicates a referenced stage does not exist on the definition.
	ErrStageNotFound = errors.New("stage not found")
)

// State errors reject an operation whose precondition does not hold; prior
// state is untouched.
var (
	// ErrNoPendingAssignment indicates the actor has no pending assignment on the request's current stage.
	ErrNoPendingAssignment = errors.New("no pending assignment for this user on the current stage")

	// ErrRequestNotPending indicates the request is not in a state that permits the operation.
	ErrRequestNotPending = errors.New("request is not pending")

	// ErrNotSubmitter indicates a withdraw attempt by someone other than the original submitter.
	ErrNotSubmitter = errors.New("only the original submitter may withdraw a request")

	// ErrRequestNotFound indicates the request does not exist.
	ErrRequestNotFound = errors.New("request not found")
)

// ErrApproverLookupFailed marks a single approver-type entry whose
// organizational graph edge is absent. The entry is omitted; the stage only
// hard-fails if the resulting set is empty.
var ErrApproverLookupFailed = errors.New("approver lookup failed")
