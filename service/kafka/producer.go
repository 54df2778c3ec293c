package kafka

// AuditProducer exposes the shared sync producer behind a small value so that
// services depend on an interface instead of package state.
type AuditProducer struct{}

func NewAuditProducer() *AuditProducer { return &AuditProducer{} }

func (AuditProducer) Emit(topic string, data []byte) error {
	return SendSync(topic, data)
}
