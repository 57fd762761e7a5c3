package logging

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldCellID is the standardized key for grid cell identifiers.
	FieldCellID = "cell_id"
	// FieldTier is the standardized key for resource tier names (poster, small, full).
	FieldTier = "tier"
	// FieldEventType classifies a log line for filtering (e.g. "probe_failed").
	FieldEventType = "event_type"
	// FieldErrorHint carries the operator-facing next step for warnings and errors.
	FieldErrorHint = "error_hint"
	// FieldImpact is the standardized key for user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldSessionID identifies one viewer session (one grid instance).
	FieldSessionID = "session_id"
)
