package metrics

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

func (n *NoopRecorder) IncUserRegistered() {}
func (n *NoopRecorder) IncLogin(outcome string) {}
func (n *NoopRecorder) IncEmailVerified() {}
func (n *NoopRecorder) IncGroupCreated() {}
func (n *NoopRecorder) IncGroupUpdated() {}
func (n *NoopRecorder) IncGroupDeleted() {}
func (n *NoopRecorder) IncGroupMembersReplaced() {}
func (n *NoopRecorder) IncVerificationEmailPublished(status string) {}
func (n *NoopRecorder) IncVerificationEmailProcessed(status string) {}
func (n *NoopRecorder) SetVerificationQueueDepth(depth int64) {}
