package api

import (
	"github.com/softdesk/support/pkg/storage"
)

// PublicUser is the account view exposed to other users: enough to pick a
// contributor, nothing about consent or contact details.
type PublicUser struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

func toPublicUser(u *storage.User) PublicUser {
	return PublicUser{ID: u.ID, Username: u.Username}
}

func toPublicUsers(users []*storage.User) []PublicUser {
	out := make([]PublicUser, 0, len(users))
	for _, u := range users {
		out = append(out, toPublicUser(u))
	}
	return out
}

// listResponse is the envelope for collection endpoints
type listResponse struct {
	Count   int         `json:"count"`
	Results interface{} `json:"results"`
}

func newListResponse(count int, results interface{}) listResponse {
	return listResponse{Count: count, Results: results}
}
