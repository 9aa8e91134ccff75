package audit

import (
	"time"

	"github.com/google/uuid"
)

// Event records how one modification run ended. It is written outside the
// run's transaction so dry runs and failures are recorded too.
type Event struct {
	RunID        uuid.UUID `json:"runId"`
	Modification string    `json:"modification"`
	Mode         string    `json:"mode"`
	Outcome      string    `json:"outcome"`
	Message      string    `json:"message,omitempty"`
	RequestID    string    `json:"requestId,omitempty"`
	StartedAt    time.Time `json:"startedAt"`
	FinishedAt   time.Time `json:"finishedAt"`
}
