package constant

// Error kinds as carried in the x-last-error header and in the
// errores_por_tipo telemetry map.
const (
	KindExpressionError    = "ExpressionError"
	KindSecurityError      = "SecurityError"
	KindTimeoutError       = "TimeoutError"
	KindMissingResultError = "MissingResultError"
	KindArithmeticError    = "ArithmeticError"
	KindDecodeError        = "DecodeError"
	KindBrokerError        = "BrokerError"
	KindTransientError     = "TransientError"
)

// Component states as published in telemetry messages.
const (
	EstadoActivo     = "activo"
	EstadoCompletado = "completado"
	EstadoTerminando = "terminando"
)
