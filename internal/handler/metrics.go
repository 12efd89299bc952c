package handler

import (
	"fmt"
	"net/http"

	"github.com/rollcall/rollcall/internal/metrics"
)

// MetricsHandler exposes in-memory metrics.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// Metrics returns metrics in Prometheus exposition format.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	writeMetric(w, "rollcall_users_registered_total %d\n", snap.UsersRegistered)
	writeMetric(w, "rollcall_logins_total{outcome=%q} %d\n", metrics.LoginSuccess, snap.LoginsSucceeded)
	writeMetric(w, "rollcall_logins_total{outcome=%q} %d\n", metrics.LoginInvalidPassword, snap.LoginsBadPassword)
	writeMetric(w, "rollcall_logins_total{outcome=%q} %d\n", metrics.LoginUnknownUser, snap.LoginsUnknownUser)
	writeMetric(w, "rollcall_emails_verified_total %d\n", snap.EmailsVerified)

	writeMetric(w, "rollcall_groups_created_total %d\n", snap.GroupsCreated)
	writeMetric(w, "rollcall_groups_updated_total %d\n", snap.GroupsUpdated)
	writeMetric(w, "rollcall_groups_deleted_total %d\n", snap.GroupsDeleted)
	writeMetric(w, "rollcall_group_member_replacements_total %d\n", snap.GroupMemberReplaces)

	writeMetric(w, "rollcall_verification_emails_published_total{status=%q} %d\n", metrics.EmailStatusSuccess, snap.EmailsPublished)
	writeMetric(w, "rollcall_verification_emails_published_total{status=%q} %d\n", metrics.EmailStatusDropped, snap.EmailsDropped)

	writeMetric(w, "rollcall_verification_emails_processed_total{status=%q} %d\n", metrics.EmailStatusSuccess, snap.EmailsProcessed)
	writeMetric(w, "rollcall_verification_emails_processed_total{status=%q} %d\n", metrics.EmailStatusFailed, snap.EmailsFailed)
	writeMetric(w, "rollcall_verification_emails_processed_total{status=%q} %d\n", metrics.EmailStatusSkipped, snap.EmailsSkipped)

	writeMetric(w, "rollcall_verification_queue_depth %d\n", snap.VerificationQueueLen)
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
