package solana

// LogsFilter defines subscription filter for logs.
type LogsFilter struct {
	// Mentions filters logs that mention any of these addresses.
	Mentions []string
}

// LogNotification represents a logs subscription message.
type LogNotification struct {
	Signature string
	Slot      int64
	Logs      []string
	Err       interface{} // non-nil when the transaction failed on-chain
}

// LogStream is a live logs subscription. Notifications is closed when the
// underlying connection dies; the stream is not restartable, reconnection is
// the caller's concern.
type LogStream interface {
	// Notifications returns the channel of incoming log notifications.
	Notifications() <-chan LogNotification

	// Err returns the error that terminated the stream, if any.
	Err() error

	// Close closes the underlying connection.
	Close() error
}
