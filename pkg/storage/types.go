package storage

import (
	"time"

	"github.com/google/uuid"
)

// ProjectType enumerates the kinds of client applications a project tracks
type ProjectType string

const (
	ProjectBackEnd  ProjectType = "back-end"
	ProjectFrontEnd ProjectType = "front-end"
	ProjectIOS      ProjectType = "iOS"
	ProjectAndroid  ProjectType = "Android"
)

// Valid reports whether the project type is one of the allowed values
func (t ProjectType) Valid() bool {
	switch t {
	case ProjectBackEnd, ProjectFrontEnd, ProjectIOS, ProjectAndroid:
		return true
	}
	return false
}

// Priority enumerates issue priorities
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

// Valid reports whether the priority is one of the allowed values
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Tag enumerates issue tags
type Tag string

const (
	TagBug     Tag = "BUG"
	TagFeature Tag = "FEATURE"
	TagTask    Tag = "TASK"
)

// Valid reports whether the tag is one of the allowed values
func (t Tag) Valid() bool {
	switch t {
	case TagBug, TagFeature, TagTask:
		return true
	}
	return false
}

// Status enumerates issue workflow states
type Status string

const (
	StatusToDo       Status = "To Do"
	StatusInProgress Status = "In Progress"
	StatusFinished   Status = "Finished"
)

// Valid reports whether the status is one of the allowed values
func (s Status) Valid() bool {
	switch s {
	case StatusToDo, StatusInProgress, StatusFinished:
		return true
	}
	return false
}

// MinimumAge is the minimum age accepted at registration (RGPD consent floor)
const MinimumAge = 15

// User represents a registered account with RGPD consent attributes
type User struct {
	ID              int64     `json:"id"`
	Username        string    `json:"username"`
	Email           string    `json:"email"`
	PasswordHash    string    `json:"-"`
	Age             int       `json:"age"`
	CanBeContacted  bool      `json:"can_be_contacted"`
	CanDataBeShared bool      `json:"can_data_be_shared"`
	CreatedTime     time.Time `json:"created_time"`
}

// ActorID returns the user's id. It satisfies the small actor interface
// used by packages that must not import storage directly.
func (u *User) ActorID() int64 {
	return u.ID
}

// Project is a workspace owned by its author
type Project struct {
	ID          int64       `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Type        ProjectType `json:"type"`
	AuthorID    int64       `json:"author"`
	CreatedTime time.Time   `json:"created_time"`
}

// Contributor is a (user, project) membership record.
// At most one row exists per pair; the project author always has one.
type Contributor struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user"`
	ProjectID   int64     `json:"project"`
	CreatedTime time.Time `json:"created_time"`
}

// Issue is a tracked work item scoped to exactly one project
type Issue struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Priority    Priority  `json:"priority"`
	Tag         Tag       `json:"tag"`
	Status      Status    `json:"status"`
	ProjectID   int64     `json:"project"`
	AuthorID    int64     `json:"author"`
	AssignedTo  *int64    `json:"assigned_to,omitempty"`
	CreatedTime time.Time `json:"created_time"`
}

// Comment is a remark on exactly one issue. Its id is a UUID rather than a
// sequential integer so comment ids cannot be enumerated.
type Comment struct {
	ID          uuid.UUID `json:"id"`
	Description string    `json:"description"`
	IssueID     int64     `json:"issue"`
	AuthorID    int64     `json:"author"`
	CreatedTime time.Time `json:"created_time"`
}
