package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/erazemk/zaloga/internal/docstore"
	"github.com/erazemk/zaloga/internal/model"
)

// Usernames are reserved in their own collection, keyed by name, so two
// concurrent registrations cannot both succeed.
const collectionUsernames = "usernames"

// ErrUsernameTaken is returned by CreateUser for a name already in use,
// including names of deleted users.
var ErrUsernameTaken = errors.New("username already taken")

type userDoc struct {
	Username     string     `json:"username"`
	PasswordHash string     `json:"password_hash"`
	Role         string     `json:"role"`
	CreatedAt    time.Time  `json:"created_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
}

type usernameDoc struct {
	UserID string `json:"user_id"`
}

func userFromDoc(doc docstore.Document) (*model.User, error) {
	var d userDoc
	if err := doc.Decode(&d); err != nil {
		return nil, err
	}
	return &model.User{
		ID:           doc.ID,
		Username:     d.Username,
		PasswordHash: d.PasswordHash,
		Role:         d.Role,
		CreatedAt:    d.CreatedAt,
		DeletedAt:    d.DeletedAt,
	}, nil
}

// CreateUser creates a new user.
func CreateUser(ctx context.Context, st docstore.Store, username, passwordHash, role string) (*model.User, error) {
	res, err := st.Create(ctx, docstore.CollectionUsers, "", userDoc{
		Username:     username,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}
	id := res.Document.ID

	_, err = st.Create(ctx, collectionUsernames, username, usernameDoc{UserID: id})
	if err != nil {
		// Roll back the orphaned user record.
		_, _ = st.Delete(ctx, docstore.CollectionUsers, id)
		if errors.Is(err, docstore.ErrExists) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("reserving username: %w", err)
	}

	return userFromDoc(res.Document)
}

// GetUser returns a user by ID, or nil if there is none.
func GetUser(ctx context.Context, st docstore.Store, id string) (*model.User, error) {
	doc, err := st.Get(ctx, docstore.CollectionUsers, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return userFromDoc(doc)
}

// GetUserByUsername returns a user by username (including soft-deleted for auth checks).
func GetUserByUsername(ctx context.Context, st docstore.Store, username string) (*model.User, error) {
	doc, err := st.Get(ctx, collectionUsernames, username)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user by username: %w", err)
	}
	var ref usernameDoc
	if err := doc.Decode(&ref); err != nil {
		return nil, err
	}
	return GetUser(ctx, st, ref.UserID)
}

// ListUsers returns all non-deleted users, oldest first.
func ListUsers(ctx context.Context, st docstore.Store) ([]model.User, error) {
	snap, err := st.ReadOnce(ctx, docstore.CollectionUsers)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}

	var users []model.User
	for _, doc := range snap.Documents {
		u, err := userFromDoc(doc)
		if err != nil {
			return nil, err
		}
		if u.DeletedAt == nil {
			users = append(users, *u)
		}
	}
	sort.SliceStable(users, func(i, j int) bool {
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users, nil
}

// UpdateUserRole changes a live user's role.
func UpdateUserRole(ctx context.Context, st docstore.Store, id, role string) error {
	return updateLiveUser(ctx, st, id, docstore.Fields{"role": role})
}

// UpdateUserPassword updates a user's password hash.
func UpdateUserPassword(ctx context.Context, st docstore.Store, id, passwordHash string) error {
	return updateLiveUser(ctx, st, id, docstore.Fields{"password_hash": passwordHash})
}

// DeleteUser soft-deletes a user.
func DeleteUser(ctx context.Context, st docstore.Store, id string) error {
	return updateLiveUser(ctx, st, id, docstore.Fields{"deleted_at": time.Now().UTC()})
}

// updateLiveUser is a no-op for missing or deleted users.
func updateLiveUser(ctx context.Context, st docstore.Store, id string, fields docstore.Fields) error {
	u, err := GetUser(ctx, st, id)
	if err != nil {
		return err
	}
	if u == nil || u.DeletedAt != nil {
		return nil
	}
	if _, err := st.Update(ctx, docstore.CollectionUsers, id, fields); err != nil {
		return fmt.Errorf("updating user: %w", err)
	}
	return nil
}
