// Package errors defines the typed error taxonomy shared by every kernel
// component. Callers distinguish failure modes by Kind rather than by
// sentinel value or type assertion on a family of structs.
package errors

import "fmt"

// Kind classifies the failure mode of a KernelError.
type Kind string

const (
	// KindValidationFailure means caller-supplied input failed structural
	// or semantic validation.
	KindValidationFailure Kind = "validation_failure"

	// KindNotFound means the referenced entity does not exist.
	KindNotFound Kind = "not_found"

	// KindInvalidTransition means a requested state transition is not
	// permitted from the entity's current state.
	KindInvalidTransition Kind = "invalid_transition"

	// KindInsufficientBudget means a budget operation would overdraw an
	// account's available balance.
	KindInsufficientBudget Kind = "insufficient_budget"

	// KindMaxDepthExceeded means spawning a child would exceed the
	// configured hierarchy depth limit.
	KindMaxDepthExceeded Kind = "max_depth_exceeded"

	// KindConflict means a concurrent mutation invalidated the operation
	// (optimistic concurrency or uniqueness violation).
	KindConflict Kind = "conflict"

	// KindWorkflowInvalid means a workflow graph definition is structurally
	// invalid (cycle, dangling reference, unreachable node).
	KindWorkflowInvalid Kind = "workflow_invalid"

	// KindExecutorFailure means the external task executor returned an
	// error while running an agent's task.
	KindExecutorFailure Kind = "executor_failure"

	// KindWorkspaceFailure means a workspace/worktree operation failed.
	KindWorkspaceFailure Kind = "workspace_failure"

	// KindTransientStoreError means a storage operation failed in a way
	// that is expected to succeed on retry (connection reset, deadlock).
	KindTransientStoreError Kind = "transient_store_error"
)

// KernelError is the single error type returned by every kernel component.
// Components are expected to classify failures by Kind rather than by type
// assertion, keeping call sites uniform across the domain, ledger,
// lifecycle, queue, workflow, poller, and workspace packages.
type KernelError struct {
	Kind    Kind
	Op      string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *KernelError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *KernelError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a KernelError of the same Kind, so callers
// can use errors.Is(err, &KernelError{Kind: KindNotFound}).
func (e *KernelError) Is(target error) bool {
	other, ok := target.(*KernelError)
	if !ok {
		return false
	}
	return other.Kind == e.Kind
}

func newErr(kind Kind, op, message string, cause error) *KernelError {
	return &KernelError{Kind: kind, Op: op, Message: message, Cause: cause}
}

// NewValidationFailure builds a KindValidationFailure error.
func NewValidationFailure(op, message string) *KernelError {
	return newErr(KindValidationFailure, op, message, nil)
}

// NewNotFound builds a KindNotFound error for the named entity kind and id.
func NewNotFound(entity, id string) *KernelError {
	return newErr(KindNotFound, entity, fmt.Sprintf("%s %q not found", entity, id), nil)
}

// NewInvalidTransitionError builds a KindInvalidTransition error describing
// the rejected from -> to transition on the named entity.
func NewInvalidTransitionError(entity, from, to string) *KernelError {
	return newErr(KindInvalidTransition, entity, fmt.Sprintf("cannot transition from %s to %s", from, to), nil)
}

// NewInsufficientBudget builds a KindInsufficientBudget error. Field order
// is fixed as {agent, required, available} per the kernel's budget
// vocabulary.
func NewInsufficientBudget(agent string, required, available int64) *KernelError {
	return newErr(KindInsufficientBudget, "ledger", fmt.Sprintf(
		"agent %s requires %d but only %d is available", agent, required, available), nil)
}

// NewMaxDepthExceeded builds a KindMaxDepthExceeded error.
func NewMaxDepthExceeded(depth, max int) *KernelError {
	return newErr(KindMaxDepthExceeded, "lifecycle", fmt.Sprintf(
		"spawn would reach depth %d, exceeding maximum of %d", depth, max), nil)
}

// NewConflict builds a KindConflict error.
func NewConflict(op, message string) *KernelError {
	return newErr(KindConflict, op, message, nil)
}

// NewWorkflowInvalid builds a KindWorkflowInvalid error.
func NewWorkflowInvalid(message string) *KernelError {
	return newErr(KindWorkflowInvalid, "workflow", message, nil)
}

// NewExecutorFailure builds a KindExecutorFailure error wrapping cause.
func NewExecutorFailure(op, message string, cause error) *KernelError {
	return newErr(KindExecutorFailure, op, message, cause)
}

// NewWorkspaceFailure builds a KindWorkspaceFailure error wrapping cause.
func NewWorkspaceFailure(op, message string, cause error) *KernelError {
	return newErr(KindWorkspaceFailure, op, message, cause)
}

// NewTransientStoreError builds a KindTransientStoreError error wrapping cause.
func NewTransientStoreError(op string, cause error) *KernelError {
	return newErr(KindTransientStoreError, op, "transient storage failure", cause)
}

// IsRetryable reports whether err represents a failure that is safe to
// retry without caller-visible side effects: presently only transient store
// errors qualify.
func IsRetryable(err error) bool {
	kerr, ok := err.(*KernelError)
	if !ok {
		return false
	}
	return kerr.Kind == KindTransientStoreError
}

// KindOf extracts the Kind of err, returning "" if err is not a KernelError.
func KindOf(err error) Kind {
	kerr, ok := err.(*KernelError)
	if !ok {
		return ""
	}
	return kerr.Kind
}
