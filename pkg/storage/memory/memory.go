// Package memory provides an in-memory Store implementation. It enforces the
// same uniqueness and cascade rules as the postgres backend and is used for
// tests and for running the service locally without a database.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/softdesk/support/pkg/storage"
)

// Store is a mutex-guarded in-memory entity store
type Store struct {
	mu sync.RWMutex

	users        map[int64]*storage.User
	projects     map[int64]*storage.Project
	contributors map[int64]*storage.Contributor
	issues       map[int64]*storage.Issue
	comments     map[uuid.UUID]*storage.Comment

	nextUserID        int64
	nextProjectID     int64
	nextContributorID int64
	nextIssueID       int64
}

// New creates an empty in-memory store
func New() *Store {
	return &Store{
		users:        make(map[int64]*storage.User),
		projects:     make(map[int64]*storage.Project),
		contributors: make(map[int64]*storage.Contributor),
		issues:       make(map[int64]*storage.Issue),
		comments:     make(map[uuid.UUID]*storage.Comment),
	}
}

// HealthCheck always succeeds for the in-memory backend
func (s *Store) HealthCheck(ctx context.Context) error {
	return nil
}

// CreateUser inserts a user, rejecting duplicate usernames
func (s *Store) CreateUser(ctx context.Context, user *storage.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Username == user.Username {
			return &storage.ConflictError{Resource: "user", Detail: "username already taken"}
		}
	}

	s.nextUserID++
	user.ID = s.nextUserID
	user.CreatedTime = time.Now().UTC()
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

// GetUser retrieves a user by id
func (s *Store) GetUser(ctx context.Context, id int64) (*storage.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, storage.NewNotFound("user", id)
	}
	cp := *u
	return &cp, nil
}

// GetUserByUsername retrieves a user by username
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*storage.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, storage.NewNotFound("user", username)
}

// ListUsers returns all users ordered by id
func (s *Store) ListUsers(ctx context.Context) ([]*storage.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]*storage.User, 0, len(s.users))
	for _, u := range s.users {
		cp := *u
		users = append(users, &cp)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

// UpdateUser updates an existing user record
func (s *Store) UpdateUser(ctx context.Context, user *storage.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.users[user.ID]
	if !ok {
		return storage.NewNotFound("user", user.ID)
	}
	if user.Username != existing.Username {
		for _, u := range s.users {
			if u.ID != user.ID && u.Username == user.Username {
				return &storage.ConflictError{Resource: "user", Detail: "username already taken"}
			}
		}
	}
	user.CreatedTime = existing.CreatedTime
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

// DeleteUser removes a user with full cascade semantics: authored projects
// (and everything under them), authored issues and comments, contributor
// rows, and assignments are all cleaned up.
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return storage.NewNotFound("user", id)
	}

	for pid, p := range s.projects {
		if p.AuthorID == id {
			s.deleteProjectLocked(pid)
		}
	}
	for cid, c := range s.contributors {
		if c.UserID == id {
			delete(s.contributors, cid)
		}
	}
	for iid, issue := range s.issues {
		if issue.AuthorID == id {
			s.deleteIssueLocked(iid)
			continue
		}
		if issue.AssignedTo != nil && *issue.AssignedTo == id {
			issue.AssignedTo = nil
		}
	}
	for cid, c := range s.comments {
		if c.AuthorID == id {
			delete(s.comments, cid)
		}
	}
	delete(s.users, id)
	return nil
}

// CreateProject inserts the project and its author's contributor row as one
// unit; under the single store lock no reader can observe one without the
// other.
func (s *Store) CreateProject(ctx context.Context, project *storage.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[project.AuthorID]; !ok {
		return storage.NewNotFound("user", project.AuthorID)
	}

	s.nextProjectID++
	project.ID = s.nextProjectID
	project.CreatedTime = time.Now().UTC()
	cp := *project
	s.projects[project.ID] = &cp

	s.nextContributorID++
	s.contributors[s.nextContributorID] = &storage.Contributor{
		ID:          s.nextContributorID,
		UserID:      project.AuthorID,
		ProjectID:   project.ID,
		CreatedTime: project.CreatedTime,
	}
	return nil
}

// GetProject retrieves a project by id
func (s *Store) GetProject(ctx context.Context, id int64) (*storage.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.projects[id]
	if !ok {
		return nil, storage.NewNotFound("project", id)
	}
	cp := *p
	return &cp, nil
}

// ListProjectsForUser returns projects where the user holds a contributor row
func (s *Store) ListProjectsForUser(ctx context.Context, userID int64) ([]*storage.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var projects []*storage.Project
	for _, c := range s.contributors {
		if c.UserID != userID {
			continue
		}
		if p, ok := s.projects[c.ProjectID]; ok {
			cp := *p
			projects = append(projects, &cp)
		}
	}
	sort.Slice(projects, func(i, j int) bool { return projects[i].ID < projects[j].ID })
	return projects, nil
}

// UpdateProject updates name, description and type; author is immutable
func (s *Store) UpdateProject(ctx context.Context, project *storage.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.projects[project.ID]
	if !ok {
		return storage.NewNotFound("project", project.ID)
	}
	project.AuthorID = existing.AuthorID
	project.CreatedTime = existing.CreatedTime
	cp := *project
	s.projects[project.ID] = &cp
	return nil
}

// DeleteProject removes a project and cascades to contributors and issues
func (s *Store) DeleteProject(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[id]; !ok {
		return storage.NewNotFound("project", id)
	}
	s.deleteProjectLocked(id)
	return nil
}

func (s *Store) deleteProjectLocked(id int64) {
	for cid, c := range s.contributors {
		if c.ProjectID == id {
			delete(s.contributors, cid)
		}
	}
	for iid, issue := range s.issues {
		if issue.ProjectID == id {
			s.deleteIssueLocked(iid)
		}
	}
	delete(s.projects, id)
}

// AddContributor inserts a membership row, enforcing (user, project)
// uniqueness under the store lock
func (s *Store) AddContributor(ctx context.Context, c *storage.Contributor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[c.ProjectID]; !ok {
		return storage.NewNotFound("project", c.ProjectID)
	}
	if _, ok := s.users[c.UserID]; !ok {
		return storage.NewNotFound("user", c.UserID)
	}
	for _, existing := range s.contributors {
		if existing.UserID == c.UserID && existing.ProjectID == c.ProjectID {
			return &storage.ConflictError{Resource: "contributor", Detail: "user is already a contributor of this project"}
		}
	}

	s.nextContributorID++
	c.ID = s.nextContributorID
	c.CreatedTime = time.Now().UTC()
	cp := *c
	s.contributors[c.ID] = &cp
	return nil
}

// GetContributor retrieves the membership row for (project, user)
func (s *Store) GetContributor(ctx context.Context, projectID, userID int64) (*storage.Contributor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.contributors {
		if c.ProjectID == projectID && c.UserID == userID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, storage.NewNotFound("contributor", userID)
}

// ListContributors returns the membership rows of a project ordered by id
func (s *Store) ListContributors(ctx context.Context, projectID int64) ([]*storage.Contributor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var contributors []*storage.Contributor
	for _, c := range s.contributors {
		if c.ProjectID == projectID {
			cp := *c
			contributors = append(contributors, &cp)
		}
	}
	sort.Slice(contributors, func(i, j int) bool { return contributors[i].ID < contributors[j].ID })
	return contributors, nil
}

// RemoveContributor deletes the membership row for (project, user)
func (s *Store) RemoveContributor(ctx context.Context, projectID, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for cid, c := range s.contributors {
		if c.ProjectID == projectID && c.UserID == userID {
			delete(s.contributors, cid)
			return nil
		}
	}
	return storage.NewNotFound("contributor", userID)
}

// IsContributor reports whether a membership row exists for (user, project)
func (s *Store) IsContributor(ctx context.Context, userID, projectID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.contributors {
		if c.UserID == userID && c.ProjectID == projectID {
			return true, nil
		}
	}
	return false, nil
}

// CreateIssue inserts an issue for an existing project
func (s *Store) CreateIssue(ctx context.Context, issue *storage.Issue) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[issue.ProjectID]; !ok {
		return storage.NewNotFound("project", issue.ProjectID)
	}

	s.nextIssueID++
	issue.ID = s.nextIssueID
	issue.CreatedTime = time.Now().UTC()
	cp := *issue
	s.issues[issue.ID] = &cp
	return nil
}

// GetIssue retrieves an issue by id
func (s *Store) GetIssue(ctx context.Context, id int64) (*storage.Issue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	issue, ok := s.issues[id]
	if !ok {
		return nil, storage.NewNotFound("issue", id)
	}
	cp := *issue
	return &cp, nil
}

// ListIssues returns a project's issues ordered by id
func (s *Store) ListIssues(ctx context.Context, projectID int64) ([]*storage.Issue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var issues []*storage.Issue
	for _, issue := range s.issues {
		if issue.ProjectID == projectID {
			cp := *issue
			issues = append(issues, &cp)
		}
	}
	sort.Slice(issues, func(i, j int) bool { return issues[i].ID < issues[j].ID })
	return issues, nil
}

// UpdateIssue updates an existing issue; project and author are immutable
func (s *Store) UpdateIssue(ctx context.Context, issue *storage.Issue) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.issues[issue.ID]
	if !ok {
		return storage.NewNotFound("issue", issue.ID)
	}
	issue.ProjectID = existing.ProjectID
	issue.AuthorID = existing.AuthorID
	issue.CreatedTime = existing.CreatedTime
	cp := *issue
	s.issues[issue.ID] = &cp
	return nil
}

// DeleteIssue removes an issue and cascades to its comments
func (s *Store) DeleteIssue(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.issues[id]; !ok {
		return storage.NewNotFound("issue", id)
	}
	s.deleteIssueLocked(id)
	return nil
}

func (s *Store) deleteIssueLocked(id int64) {
	for cid, c := range s.comments {
		if c.IssueID == id {
			delete(s.comments, cid)
		}
	}
	delete(s.issues, id)
}

// CreateComment inserts a comment for an existing issue
func (s *Store) CreateComment(ctx context.Context, comment *storage.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.issues[comment.IssueID]; !ok {
		return storage.NewNotFound("issue", comment.IssueID)
	}
	if comment.ID == uuid.Nil {
		comment.ID = uuid.New()
	}
	comment.CreatedTime = time.Now().UTC()
	cp := *comment
	s.comments[comment.ID] = &cp
	return nil
}

// GetComment retrieves a comment by uuid
func (s *Store) GetComment(ctx context.Context, id uuid.UUID) (*storage.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.comments[id]
	if !ok {
		return nil, storage.NewNotFound("comment", id)
	}
	cp := *c
	return &cp, nil
}

// ListComments returns an issue's comments ordered by creation time
func (s *Store) ListComments(ctx context.Context, issueID int64) ([]*storage.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var comments []*storage.Comment
	for _, c := range s.comments {
		if c.IssueID == issueID {
			cp := *c
			comments = append(comments, &cp)
		}
	}
	sort.Slice(comments, func(i, j int) bool {
		if comments[i].CreatedTime.Equal(comments[j].CreatedTime) {
			return comments[i].ID.String() < comments[j].ID.String()
		}
		return comments[i].CreatedTime.Before(comments[j].CreatedTime)
	})
	return comments, nil
}

// UpdateComment updates a comment's description
func (s *Store) UpdateComment(ctx context.Context, comment *storage.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.comments[comment.ID]
	if !ok {
		return storage.NewNotFound("comment", comment.ID)
	}
	comment.IssueID = existing.IssueID
	comment.AuthorID = existing.AuthorID
	comment.CreatedTime = existing.CreatedTime
	cp := *comment
	s.comments[comment.ID] = &cp
	return nil
}

// DeleteComment removes a comment
func (s *Store) DeleteComment(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.comments[id]; !ok {
		return storage.NewNotFound("comment", id)
	}
	delete(s.comments, id)
	return nil
}
