package notifier

// Notifier delivers fire-and-forget operator messages. Send failures are the
// caller's to log; they are never fatal.
type Notifier interface {
	Alert(text string) error
}

// Noop is used when no alerting channel is configured.
type Noop struct{}

func (Noop) Alert(string) error { return nil }
