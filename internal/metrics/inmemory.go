package metrics

import "sync/atomic"

// Snapshot captures current in-memory counters.
type Snapshot struct {
	UsersRegistered      uint64
	LoginsSucceeded      uint64
	LoginsBadPassword    uint64
	LoginsUnknownUser    uint64
	EmailsVerified       uint64
	GroupsCreated        uint64
	GroupsUpdated        uint64
	GroupsDeleted        uint64
	GroupMemberReplaces  uint64
	EmailsPublished      uint64
	EmailsDropped        uint64
	EmailsProcessed      uint64
	EmailsFailed         uint64
	EmailsSkipped        uint64
	VerificationQueueLen int64
}

// InMemoryRecorder stores metrics in memory.
type InMemoryRecorder struct {
	usersRegistered      atomic.Uint64
	loginsSucceeded      atomic.Uint64
	loginsBadPassword    atomic.Uint64
	loginsUnknownUser    atomic.Uint64
	emailsVerified       atomic.Uint64
	groupsCreated        atomic.Uint64
	groupsUpdated        atomic.Uint64
	groupsDeleted        atomic.Uint64
	groupMemberReplaces  atomic.Uint64
	emailsPublished      atomic.Uint64
	emailsDropped        atomic.Uint64
	emailsProcessed      atomic.Uint64
	emailsFailed         atomic.Uint64
	emailsSkipped        atomic.Uint64
	verificationQueueLen atomic.Int64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	return Snapshot{
		UsersRegistered:      m.usersRegistered.Load(),
		LoginsSucceeded:      m.loginsSucceeded.Load(),
		LoginsBadPassword:    m.loginsBadPassword.Load(),
		LoginsUnknownUser:    m.loginsUnknownUser.Load(),
		EmailsVerified:       m.emailsVerified.Load(),
		GroupsCreated:        m.groupsCreated.Load(),
		GroupsUpdated:        m.groupsUpdated.Load(),
		GroupsDeleted:        m.groupsDeleted.Load(),
		GroupMemberReplaces:  m.groupMemberReplaces.Load(),
		EmailsPublished:      m.emailsPublished.Load(),
		EmailsDropped:        m.emailsDropped.Load(),
		EmailsProcessed:      m.emailsProcessed.Load(),
		EmailsFailed:         m.emailsFailed.Load(),
		EmailsSkipped:        m.emailsSkipped.Load(),
		VerificationQueueLen: m.verificationQueueLen.Load(),
	}
}

// IncUserRegistered increments the registration counter.
func (m *InMemoryRecorder) IncUserRegistered() {
	m.usersRegistered.Add(1)
}

// IncLogin counts a login attempt by outcome. Unknown outcomes are ignored.
func (m *InMemoryRecorder) IncLogin(outcome string) {
	switch outcome {
	case LoginSuccess:
		m.loginsSucceeded.Add(1)
	case LoginInvalidPassword:
		m.loginsBadPassword.Add(1)
	case LoginUnknownUser:
		m.loginsUnknownUser.Add(1)
	}
}

// IncEmailVerified increments the verified email counter.
func (m *InMemoryRecorder) IncEmailVerified() {
	m.emailsVerified.Add(1)
}

// IncGroupCreated increments group created counter.
func (m *InMemoryRecorder) IncGroupCreated() {
	m.groupsCreated.Add(1)
}

// IncGroupUpdated increments group updated counter.
func (m *InMemoryRecorder) IncGroupUpdated() {
	m.groupsUpdated.Add(1)
}

// IncGroupDeleted increments group deleted counter.
func (m *InMemoryRecorder) IncGroupDeleted() {
	m.groupsDeleted.Add(1)
}

// IncGroupMembersReplaced increments the member replacement counter.
func (m *InMemoryRecorder) IncGroupMembersReplaced() {
	m.groupMemberReplaces.Add(1)
}

// IncVerificationEmailPublished counts enqueue attempts by status.
func (m *InMemoryRecorder) IncVerificationEmailPublished(status string) {
	switch status {
	case EmailStatusSuccess:
		m.emailsPublished.Add(1)
	case EmailStatusDropped:
		m.emailsDropped.Add(1)
	}
}

// IncVerificationEmailProcessed counts worker outcomes by status.
func (m *InMemoryRecorder) IncVerificationEmailProcessed(status string) {
	switch status {
	case EmailStatusSuccess:
		m.emailsProcessed.Add(1)
	case EmailStatusFailed:
		m.emailsFailed.Add(1)
	case EmailStatusSkipped:
		m.emailsSkipped.Add(1)
	}
}

// SetVerificationQueueDepth records the pending message count.
func (m *InMemoryRecorder) SetVerificationQueueDepth(depth int64) {
	m.verificationQueueLen.Store(depth)
}
