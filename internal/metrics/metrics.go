// Package metrics provides lightweight hooks for instrumentation.
package metrics

// Login outcomes.
const (
	LoginSuccess         = "success"
	LoginInvalidPassword = "invalid_password"
	LoginUnknownUser     = "unknown_user"
)

// Verification email statuses.
const (
	EmailStatusSuccess = "success"
	EmailStatusDropped = "dropped"
	EmailStatusFailed  = "failed"
	EmailStatusSkipped = "skipped"
)

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Account metrics
	IncUserRegistered()
	IncLogin(outcome string)
	IncEmailVerified()

	// Group management metrics
	IncGroupCreated()
	IncGroupUpdated()
	IncGroupDeleted()
	IncGroupMembersReplaced()

	// Verification email pipeline metrics
	IncVerificationEmailPublished(status string) // status: "success" or "dropped"
	IncVerificationEmailProcessed(status string) // status: "success", "failed", "skipped"
	SetVerificationQueueDepth(depth int64)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
