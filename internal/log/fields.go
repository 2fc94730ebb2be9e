package log

import "sort"

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldRunID       = "run_id"
	FieldOperation   = "operation"
	FieldError       = "error"
	FieldDuration    = "duration_ms"
	FieldVendorID    = "vendor_id"
	FieldVendorName  = "vendor_name"
	FieldVendorType  = "vendor_type"
	FieldCategory    = "service_category"
	FieldConfidence  = "confidence"
	FieldRule        = "rule"
	FieldReason      = "reason"
	FieldYear        = "year"
	FieldAmountCents = "amount_cents"
	FieldFile        = "file"
	FieldCount       = "count"
	FieldBackend     = "backend"
)

// Components defines standard component names
const (
	ComponentApp      = "app"
	ComponentIngest   = "ingest"
	ComponentPipeline = "pipeline"
	ComponentStorage  = "storage"
	ComponentExport   = "export"
	ComponentSheets   = "sheets"
	ComponentAMQP     = "amqp"
	ComponentMetrics  = "metrics"
	ComponentBackend  = "backend"
)

// Operations defines standard operation names
const (
	OpIngest    = "ingest"
	OpResolve   = "resolve"
	OpClassify  = "classify"
	OpCorrect   = "correct"
	OpAggregate = "aggregate"
	OpPersist   = "persist"
	OpExport    = "export"
	OpPublish   = "publish"
	OpStartup   = "startup"
	OpShutdown  = "shutdown"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithRunID adds the pipeline run id
func (f LogFields) WithRunID(runID string) LogFields {
	f[FieldRunID] = runID
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithVendor adds vendor identity fields
func (f LogFields) WithVendor(id, name string) LogFields {
	f[FieldVendorID] = id
	f[FieldVendorName] = name
	return f
}

// WithClassification adds the outcome of a classification
func (f LogFields) WithClassification(vendorType, category, confidence string) LogFields {
	f[FieldVendorType] = vendorType
	f[FieldCategory] = category
	f[FieldConfidence] = confidence
	return f
}

// ToSlice converts LogFields to a slice for slog. Keys are sorted so output
// is stable.
func (f LogFields) ToSlice() []any {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	slice := make([]any, 0, len(f)*2)
	for _, k := range keys {
		slice = append(slice, k, f[k])
	}
	return slice
}
