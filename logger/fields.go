package logger

// Standard field names for structured logging across orbits.
const (
	FieldSymbol    = "symbol"
	FieldAgent     = "agent"
	FieldComponent = "component"
	FieldOperation = "operation"

	// Identifiers
	FieldID         = "id"
	FieldOriginalID = "original_id"
	FieldPreviousID = "previous_id"
	FieldSphereID   = "sphere_id"
	FieldParentID   = "parent_id"
	FieldEdgeID     = "edge_id"
	FieldEdgeTag    = "edge_tag"
	FieldPrefix     = "prefix"

	// Counts and sizes
	FieldCount = "count"
	FieldDepth = "depth"

	FieldError = "error"
	FieldPath  = "path"
)
