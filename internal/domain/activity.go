package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ActivityAction identifies the kind of task mutation an activity entry records.
type ActivityAction string

// The closed set of action codes written by the tracker's mutation surface.
const (
	ActivityCreated           ActivityAction = "created"
	ActivityUpdated           ActivityAction = "updated"
	ActivityStatusChanged     ActivityAction = "status_changed"
	ActivityCommented         ActivityAction = "commented"
	ActivityCommentEdited     ActivityAction = "comment_edited"
	ActivityAttachmentAdded   ActivityAction = "attachment_added"
	ActivityAttachmentDeleted ActivityAction = "attachment_deleted"
)

// Activity-specific validation errors
var (
	// ErrActivityExternalIDEmpty is returned when an activity's external ID is nil.
	ErrActivityExternalIDEmpty = errors.New("activity external ID cannot be empty")

	// ErrActivityTaskIDInvalid is returned when an activity does not reference a task.
	ErrActivityTaskIDInvalid = errors.New("activity task ID must be positive")

	// ErrActivityActorEmpty is returned when an actor is present but blank.
	// A nil actor is valid and marks a system-generated entry.
	ErrActivityActorEmpty = errors.New("activity actor cannot be blank when set")
)

// FieldChange describes a single field transition inside an "updated" entry.
type FieldChange struct {
	Field string `json:"field"`
	Old   string `json:"old,omitempty"`
	New   string `json:"new,omitempty"`
}

// ActivityDetails carries the structured payload of an activity entry.
// Which fields are populated depends on the action: "created" sets Title,
// "updated" sets Changes, "status_changed" sets Old/New, comment actions set
// Content, and attachment actions set Filename. It is persisted as a single
// JSON document.
type ActivityDetails struct {
	Title    string        `json:"title,omitempty"`
	Changes  []FieldChange `json:"changes,omitempty"`
	Old      string        `json:"old,omitempty"`
	New      string        `json:"new,omitempty"`
	Content  string        `json:"content,omitempty"`
	Filename string        `json:"filename,omitempty"`
}

// Activity is an immutable log entry describing one task mutation. Entries
// are created once, never updated, and removed only when their task is
// deleted. The SkipNotification flag is set by the actor at mutation time and
// suppresses notification fan-out for this entry without suppressing the log
// itself.
type Activity struct {
	ID               int64           `json:"-"`
	ExternalID       uuid.UUID       `json:"id"`
	TaskID           int64           `json:"task_id"`
	Actor            *string         `json:"actor,omitempty"`
	Action           ActivityAction  `json:"action"`
	Details          ActivityDetails `json:"details"`
	SkipNotification bool            `json:"skip_notification"`
	LoggedAt         time.Time       `json:"logged_at"`
}

// NewActivity creates an activity entry for the given task mutation. A nil
// actor marks the entry as system-generated. Returns an error if validation
// fails.
func NewActivity(
	taskID int64,
	actor *string,
	action ActivityAction,
	details ActivityDetails,
	skipNotification bool,
) (*Activity, error) {
	activity := &Activity{
		ExternalID:       uuid.New(),
		TaskID:           taskID,
		Actor:            actor,
		Action:           action,
		Details:          details,
		SkipNotification: skipNotification,
		LoggedAt:         time.Now().UTC(),
	}

	if err := activity.Validate(); err != nil {
		return nil, err
	}

	return activity, nil
}

// Validate checks if the Activity has valid data.
// Returns an error if any field fails validation.
func (a *Activity) Validate() error {
	if a.ExternalID == uuid.Nil {
		return ErrActivityExternalIDEmpty
	}

	if a.TaskID <= 0 {
		return ErrActivityTaskIDInvalid
	}

	if a.Actor != nil && *a.Actor == "" {
		return ErrActivityActorEmpty
	}

	if !isValidActivityAction(a.Action) {
		return ErrInvalidActivityAction
	}

	return nil
}

// isValidActivityAction checks if the given action is a known ActivityAction.
func isValidActivityAction(action ActivityAction) bool {
	switch action {
	case ActivityCreated, ActivityUpdated, ActivityStatusChanged,
		ActivityCommented, ActivityCommentEdited,
		ActivityAttachmentAdded, ActivityAttachmentDeleted:
		return true
	default:
		return false
	}
}
