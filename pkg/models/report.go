package models

// ValidationFailure is one problem found while running a workflow. RowNumber
// is nil for file-level failures.
type ValidationFailure struct {
	Message   string `json:"message"`
	RowNumber *int   `json:"rowNumber"`
}

// FileFailure builds a failure without a row number.
func FileFailure(message string) ValidationFailure {
	return ValidationFailure{Message: message}
}

// RowFailure builds a failure attached to a 1-based data row.
func RowFailure(row int, message string) ValidationFailure {
	return ValidationFailure{Message: message, RowNumber: &row}
}

// WorkflowRunReport is the result of one server-side workflow run.
type WorkflowRunReport struct {
	WorkflowID         string              `json:"workflowId"`
	Filename           string              `json:"filename"`
	RowCount           int                 `json:"rowCount"`
	ValidationFailures []ValidationFailure `json:"validationFailures"`
}

// Succeeded reports whether the run produced no failures.
func (r WorkflowRunReport) Succeeded() bool {
	return len(r.ValidationFailures) == 0
}
