package domain

import "github.com/google/uuid"

// TaskRef is the minimal read model of a task needed to render messages:
// its identifiers and title. Tasks themselves are owned by the surrounding
// application; this core only reads them.
type TaskRef struct {
	ID         int64     `json:"task_id"`
	ExternalID uuid.UUID `json:"id"`
	Title      string    `json:"title"`
}

// TaskRecipients is the resolved notification audience of a task: the owner
// plus the explicit watchers, usernames of active users only. Owner is empty
// when the owning account has been deactivated.
type TaskRecipients struct {
	Owner    string
	Watchers []string
}
