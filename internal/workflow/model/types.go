package model

// WorkflowType identifies the kind of attendance request a workflow definition governs.
type WorkflowType string

const (
	WorkflowTypeLeave             WorkflowType = "leave"
	WorkflowTypeOnDuty            WorkflowType = "on_duty"
	WorkflowTypeWFH               WorkflowType = "wfh"
	WorkflowTypeRegularization    WorkflowType = "regularization"
	WorkflowTypeShortLeave        WorkflowType = "short_leave"
	WorkflowTypeShiftSwap         WorkflowType = "shift_swap"
	WorkflowTypeRestrictedHoliday WorkflowType = "restricted_holiday"
)

// requestNumberPrefixes maps each workflow type to the short code used in request numbers.
var requestNumberPrefixes = map[WorkflowType]string{
	WorkflowTypeLeave:             "LV",
	WorkflowTypeOnDuty:            "OD",
	WorkflowTypeWFH:               "WF",
	WorkflowTypeRegularization:    "RG",
	WorkflowTypeShortLeave:        "SL",
	WorkflowTypeShiftSwap:         "SS",
	WorkflowTypeRestrictedHoliday: "RH",
}

// Valid reports whether the workflow type is one of the known codes.
func (t WorkflowType) Valid() bool {
	_, ok := requestNumberPrefixes[t]
	return ok
}

// Prefix returns the request-number prefix for the workflow type ("XX" for unknown types).
func (t WorkflowType) Prefix() string {
	if p, ok := requestNumberPrefixes[t]; ok {
		return p
	}
	return "XX"
}
