package mailer

import (
	"fmt"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/rollcall/rollcall/internal/model"
)

// ValidateJob checks a verification job before it is queued or delivered.
func ValidateJob(job model.VerificationEmail) error {
	if job.JobID == "" {
		return fmt.Errorf("job_id is required")
	}
	if _, err := ulid.ParseStrict(job.JobID); err != nil {
		return fmt.Errorf("job_id must be a ULID: %w", err)
	}
	if job.UserID <= 0 {
		return fmt.Errorf("user_id must be positive")
	}
	if strings.ContainsAny(job.Email, "\r\n") {
		return fmt.Errorf("email contains line breaks")
	}
	if err := model.ValidateEmail(job.Email); err != nil {
		return err
	}
	return nil
}
