// Package project implements the user roster and issue-scoped
// throw-away worktrees of spec §4.N.
package project

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/centy-io/centy-daemon/internal/atomicfile"
	"github.com/centy-io/centy-daemon/internal/centyerr"
)

// User is one entry in a project's `.centy/users.json` roster.
type User struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Email    string    `json:"email,omitempty"`
	JoinedAt time.Time `json:"joined_at"`
}

// UserStore manages the roster for one project.
type UserStore struct {
	projectPath string
}

// NewUserStore returns a user roster store rooted at projectPath.
func NewUserStore(projectPath string) *UserStore {
	return &UserStore{projectPath: projectPath}
}

func (s *UserStore) path() string {
	return filepath.Join(s.projectPath, ".centy", "users.json")
}

// List returns the roster, empty if users.json does not exist yet.
func (s *UserStore) List() ([]User, error) {
	data, err := os.ReadFile(s.path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, centyerr.Wrap(centyerr.IOError, "read users roster", err)
	}
	var users []User
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, centyerr.Wrap(centyerr.JSONError, "decode users roster", err)
	}
	return users, nil
}

func (s *UserStore) save(users []User) error {
	data, err := json.MarshalIndent(users, "", "  ")
	if err != nil {
		return centyerr.Wrap(centyerr.JSONError, "encode users roster", err)
	}
	return atomicfile.Write(s.path(), data, 0o644)
}

// Add appends a user to the roster, rejecting a duplicate id.
func (s *UserStore) Add(id, name, email string) (*User, error) {
	users, err := s.List()
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if u.ID == id {
			return nil, centyerr.Newf(centyerr.AlreadyExists, "user %q already in roster", id)
		}
	}
	u := User{ID: id, Name: name, Email: email, JoinedAt: time.Now().UTC()}
	users = append(users, u)
	if err := s.save(users); err != nil {
		return nil, err
	}
	return &u, nil
}

// Remove drops a user from the roster; a no-op if the id is absent.
func (s *UserStore) Remove(id string) error {
	users, err := s.List()
	if err != nil {
		return err
	}
	out := users[:0]
	for _, u := range users {
		if u.ID != id {
			out = append(out, u)
		}
	}
	return s.save(out)
}
