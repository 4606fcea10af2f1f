package log

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldRequestID   = "request_id"
	FieldClientIP    = "client_ip"
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldQuery       = "query"
	FieldStatusCode  = "status_code"
	FieldDuration    = "duration_ms"
	FieldSuccess     = "success"
	FieldError       = "error"
	FieldErrorType   = "error_type"
	FieldOperation   = "operation"
	FieldYear        = "year"
	FieldInvoiceID   = "invoice_id"
	FieldNumber      = "number"
	FieldAmountCents = "amount_cents"
	FieldActivity    = "activity_type"
	FieldKind        = "kind"
	FieldPeriodStart = "period_start"
	FieldPeriodEnd   = "period_end"
	FieldAffected    = "affected"
	FieldLedgerRef   = "ledger_ref"
)

// Components
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentInvoice   = "invoice"
	ComponentFiscal    = "fiscal"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentLedger    = "ledger"
	ComponentPDF       = "pdf"
	ComponentScheduler = "scheduler"
	ComponentSecurity  = "security"
	ComponentTrace     = "trace"
)

// Operations
const (
	OpCreate      = "create"
	OpUpdate      = "update"
	OpList        = "list"
	OpMarkPaid    = "mark_paid"
	OpMarkUnpaid  = "mark_unpaid"
	OpDeclare     = "declare"
	OpDeclareZero = "declare_zero"
	OpEvaluate    = "evaluate_liability"
	OpSync        = "sync"
	OpReconcile   = "reconcile"
	OpRender      = "render"
	OpShutdown    = "shutdown"
	OpStartup     = "startup"
)

// Error type categories, matching the HTTP status mapping.
const (
	ErrorTypeValidation    = "validation_error"
	ErrorTypeConfiguration = "configuration_error"
	ErrorTypeDatabase      = "database_error"
	ErrorTypeNotFound      = "not_found_error"
	ErrorTypeConflict      = "conflict_error"
	ErrorTypeInternal      = "internal_error"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

func (f LogFields) WithRequestID(requestID string) LogFields {
	if requestID != "" {
		f[FieldRequestID] = requestID
	}
	return f
}

func (f LogFields) WithClientIP(ip string) LogFields {
	f[FieldClientIP] = ip
	return f
}

// WithError adds the error and its category. A nil error adds nothing.
func (f LogFields) WithError(err error, errorType string) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
		if errorType != "" {
			f[FieldErrorType] = errorType
		}
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithInvoice adds the invoice identity and its HT amount.
func (f LogFields) WithInvoice(id, number, amountCents int64, activity string) LogFields {
	f[FieldInvoiceID] = id
	f[FieldNumber] = number
	f[FieldAmountCents] = amountCents
	if activity != "" {
		f[FieldActivity] = activity
	}
	return f
}

// WithDeclaration adds the declaration kind and period bounds (ISO dates).
func (f LogFields) WithDeclaration(kind, start, end string) LogFields {
	f[FieldKind] = kind
	f[FieldPeriodStart] = start
	f[FieldPeriodEnd] = end
	return f
}

func (f LogFields) WithHTTPRequest(method, path, query string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	if query != "" {
		f[FieldQuery] = query
	}
	return f
}

func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = statusCode < 400
	return f
}

// ToSlice converts LogFields to key/value pairs for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
