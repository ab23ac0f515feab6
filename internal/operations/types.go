package operations

import "time"

// Kind identifies the workflow an operation tracks.
type Kind string

const (
	KindCreatePool  Kind = "create_pool"
	KindRemovePool  Kind = "remove_pool"
	KindMountPool   Kind = "mount_pool"
	KindUnmountPool Kind = "unmount_pool"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transitions are allowed from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Operation is one tracked pool action. The registry owns every instance;
// callers only ever see snapshot copies.
type Operation struct {
	ID          string `json:"id"`
	PoolID      string `json:"pool_id"`
	Kind        Kind   `json:"kind"`
	Description string `json:"description"`
	Cancellable bool   `json:"cancellable"`

	Status   Status `json:"status"`
	Message  string `json:"message,omitempty"`
	Progress int    `json:"progress"`

	StartedAt  time.Time  `json:"started_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	Success bool   `json:"success"`
	Result  string `json:"result,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

// CancelledResult is the fixed result message recorded when an operation is
// cancelled on request, distinguishing cancellation from failure.
const CancelledResult = "cancelled by request"
