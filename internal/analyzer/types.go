package analyzer

// ErrorKind categorizes a deployment error message.
type ErrorKind string

const (
	KindMissingModule    ErrorKind = "missing_module"
	KindMissingComponent ErrorKind = "missing_component"
	KindImportError      ErrorKind = "import_error"
	KindSyntaxError      ErrorKind = "syntax_error"
	KindNavigationError  ErrorKind = "navigation_error"
	KindDependencyError  ErrorKind = "dependency_error"
	KindConfigError      ErrorKind = "configuration_error"
	KindTimeout          ErrorKind = "timeout"
	KindUnknown          ErrorKind = "unknown_error"
)

// ParsedError is the structured form of one raw error message. It is
// immutable after parsing.
type ParsedError struct {
	Kind          ErrorKind `json:"type"`
	Message       string    `json:"message"`
	FilePath      string    `json:"file_path,omitempty"`
	LineNumber    int       `json:"line_number,omitempty"`
	MissingModule string    `json:"missing_module,omitempty"`
	SuggestedFix  string    `json:"suggested_fix,omitempty"`
	AutoFixable   bool      `json:"auto_fixable"`
}

// FixAction is the kind of remediation a FixStep performs.
type FixAction string

const (
	ActionCreateComponent FixAction = "create_component"
	ActionAddDependency   FixAction = "add_dependency"
	ActionFixNavigation   FixAction = "fix_navigation"
	ActionManualReview    FixAction = "manual_review"
)

// Priority orders fix steps. Higher priorities are applied first.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

func priorityRank(p Priority) int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	default:
		return 1
	}
}

// FixStep is one remediation action derived from a ParsedError.
type FixStep struct {
	Description string    `json:"step"`
	Action      FixAction `json:"action"`
	Target      string    `json:"target"`
	Priority    Priority  `json:"priority"`
}

// Analysis is the full report over one batch of deployment errors.
type Analysis struct {
	TotalErrors        int               `json:"total_errors"`
	AutoFixableErrors  int               `json:"auto_fixable_errors"`
	Categories         map[ErrorKind]int `json:"error_categories"`
	Errors             []ParsedError     `json:"parsed_errors"`
	Plan               []FixStep         `json:"fix_plan"`
	SuccessProbability float64           `json:"success_probability"`
}
