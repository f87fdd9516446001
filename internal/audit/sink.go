package audit

// Severity classifies an audit record.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityError    Severity = "ERROR"
	SeverityCritical Severity = "CRITICAL"
)

// Sink is the append-only destination for the agent's decision trail. Every
// decision the core takes is observable only through records sent here.
// Implementations may apply their own size-bounded retention.
type Sink interface {
	Record(severity Severity, message string)
	Close() error
}

// Nop is a Sink that discards everything. Used in tests.
type Nop struct{}

func (Nop) Record(Severity, string) {}
func (Nop) Close() error            { return nil }
