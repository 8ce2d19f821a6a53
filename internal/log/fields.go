package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldQuery      = "query"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldUserAgent  = "user_agent"
	FieldSuccess    = "success"
	FieldError      = "error"
	FieldOperation  = "operation"

	FieldUserID        = "user_id"
	FieldTransactionID = "transaction_id"
	FieldTemplateID    = "template_id"
	FieldPattern       = "recurrence_pattern"
	FieldLastGenerated = "last_generated_date"
	FieldNextDate      = "next_date"
	FieldAsOf          = "as_of"
	FieldExecutionID   = "execution_id"
	FieldTrigger       = "trigger"
	FieldGenerated     = "generated"
	FieldSkipped       = "skipped"
	FieldFailed        = "failed"
	FieldChecked       = "checked"

	FieldAction  = "action"
	FieldQueue   = "queue"
	FieldAttempt = "attempt"
	FieldBackoff = "backoff"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentAuth      = "auth"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentSheets    = "sheets"
	ComponentRecurring = "recurring"
	ComponentSecurity  = "security"
)

const (
	OpGenerate = "generate"
	OpExport   = "export"
	OpResync   = "resync"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithTemplate adds the fields identifying one recurring template.
func (f LogFields) WithTemplate(id, userID, pattern, lastGenerated string) LogFields {
	f[FieldTemplateID] = id
	f[FieldUserID] = userID
	f[FieldPattern] = pattern
	f[FieldLastGenerated] = lastGenerated
	return f
}

// WithHTTPRequest adds HTTP request fields
func (f LogFields) WithHTTPRequest(method, path, query, userAgent string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldQuery] = query
	if userAgent != "" {
		f[FieldUserAgent] = userAgent
	}
	return f
}

// WithHTTPResponse adds HTTP response fields
func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64, success bool) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = success
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
