package workflow

import (
	stderrors "errors"
	"strings"

	apperrors "github.com/goliatone/go-errors"
)

const (
	ErrCodeModelLookup       = "MODEL_LOOKUP"
	ErrCodeActivityNotFound  = "ACTIVITY_NOT_FOUND"
	ErrCodePluginExecution   = "PLUGIN_EXECUTION_FAILED"
	ErrCodeCycleDetected     = "CYCLE_DETECTED"
	ErrCodePrecondition      = "PRECONDITION_FAILED"
	ErrCodeVeto              = "PLUGIN_VETO"
)

// Reasons attached to model lookup failures under the "reason" metadata key.
const (
	ReasonVersionNotFound   = "version_not_found"
	ReasonMissingVersion    = "missing_version"
	ReasonTaskNotFound      = "task_not_found"
	ReasonUnreachableBranch = "unreachable_branch"
	ReasonInvalidCondition  = "invalid_condition"
	ReasonManagerFailed     = "manager_failed"
)

var (
	// ErrModelLookup covers unknown model versions, unknown tasks and
	// branches that cannot be resolved. Always a model-authoring or
	// configuration defect from the caller's point of view.
	ErrModelLookup = apperrors.New("model lookup failed", apperrors.CategoryBadInput).
			WithTextCode(ErrCodeModelLookup)
	ErrActivityNotFound = apperrors.New("activity not found", apperrors.CategoryBadInput).
				WithTextCode(ErrCodeActivityNotFound)
	ErrPluginExecution = apperrors.New("plugin execution failed", apperrors.CategoryHandler).
				WithTextCode(ErrCodePluginExecution)
	ErrCycleDetected = apperrors.New("cycle detected", apperrors.CategoryConflict).
				WithTextCode(ErrCodeCycleDetected)
	ErrPrecondition = apperrors.New("precondition failed", apperrors.CategoryValidation).
			WithTextCode(ErrCodePrecondition)
	// ErrVeto is returned by plugins that refuse a transition.
	ErrVeto = apperrors.New("transition vetoed", apperrors.CategoryBadInput).
		WithTextCode(ErrCodeVeto)
)

// NewError clones one of the sentinel errors with a message, a source error
// and metadata.
func NewError(base *apperrors.Error, message string, source error, metadata map[string]any) *apperrors.Error {
	if base == nil {
		base = ErrPrecondition
	}
	err := base.Clone()
	if text := strings.TrimSpace(message); text != "" {
		err.Message = text
	}
	if source != nil {
		err.Source = source
	}
	if len(metadata) > 0 {
		err = err.WithMetadata(metadata)
	}
	return err
}

// ModelLookupError builds a model lookup failure tagged with reason.
func ModelLookupError(reason, message string, source error, metadata map[string]any) *apperrors.Error {
	meta := make(map[string]any, len(metadata)+1)
	for k, v := range metadata {
		meta[k] = v
	}
	meta["reason"] = reason
	return NewError(ErrModelLookup, message, source, meta)
}

// Veto returns an error a plugin uses to refuse the current transition.
func Veto(reason string) error {
	return NewError(ErrVeto, reason, nil, nil)
}

// ErrorCode returns the text code of the outermost go-errors value in err.
func ErrorCode(err error) string {
	var ge *apperrors.Error
	if stderrors.As(err, &ge) {
		return ge.TextCode
	}
	return ""
}

// ErrorReason returns the "reason" metadata of err, if any.
func ErrorReason(err error) string {
	var ge *apperrors.Error
	if !stderrors.As(err, &ge) || ge.Metadata == nil {
		return ""
	}
	reason, _ := ge.Metadata["reason"].(string)
	return reason
}

func IsModelLookup(err error) bool      { return ErrorCode(err) == ErrCodeModelLookup }
func IsActivityNotFound(err error) bool { return ErrorCode(err) == ErrCodeActivityNotFound }
func IsPluginExecution(err error) bool  { return ErrorCode(err) == ErrCodePluginExecution }
func IsCycleDetected(err error) bool    { return ErrorCode(err) == ErrCodeCycleDetected }
func IsPrecondition(err error) bool     { return ErrorCode(err) == ErrCodePrecondition }
func IsVeto(err error) bool             { return ErrorCode(err) == ErrCodeVeto }
