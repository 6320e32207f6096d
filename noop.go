package strata

// noopClient is used when no client is bound. It reports itself inactive
// so that scope operations that need a client become no-ops.
type noopClient struct{}

var _ Client = noopClient{}

func (noopClient) CaptureEvent(*Event, *Hint, *Scope) *EventID {
	return nil
}

func (noopClient) Options() ClientOptions {
	return DefaultOptions()
}

func (noopClient) IsActive() bool {
	return false
}
