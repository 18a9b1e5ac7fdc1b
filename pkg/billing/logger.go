package billing

// Field is one structured key/value attached to a log line.
type Field struct {
	Key   string
	Value interface{}
}

// Logger is the structured logger the providers write through. Webhook
// bodies, signatures and secrets are never passed as fields.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
}

// NoopLogger drops every line.
type NoopLogger struct{}

func (*NoopLogger) Debug(string, ...Field) {}
func (*NoopLogger) Info(string, ...Field)  {}
func (*NoopLogger) Warn(string, ...Field)  {}
func (*NoopLogger) Error(string, ...Field) {}
