package constant

// Message headers carried by scenario retries. The retry counter is
// authoritative: the consumer keeps no retry state of its own.
const (
	HeaderRetryCount = "x-retry-count"
	HeaderLastError  = "x-last-error"
	HeaderConsumerID = "x-consumer-id"
)
