package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/yourorg/timetrack/internal/domain"
)

// UserRepository implements domain.UserRepository over the document store
type UserRepository struct {
	store  domain.DocumentStore
	logger *slog.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(store domain.DocumentStore, logger *slog.Logger) *UserRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserRepository{store: store, logger: logger}
}

// userDoc carries the password hash, which the API-facing User type
// never serializes
type userDoc struct {
	domain.User
	PasswordHash string `json:"passwordHash,omitempty"`
}

// Create stores a new user document
func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	doc, err := json.Marshal(userDoc{User: *user, PasswordHash: user.PasswordHash})
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}
	if err := r.store.Set(ctx, domain.CollectionUsers, user.ID, doc); err != nil {
		r.logger.Error("failed to create user",
			slog.String("email", user.Email),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	data, err := r.store.Get(ctx, domain.CollectionUsers, id)
	if err != nil {
		return nil, err
	}
	return unmarshalUser(data)
}

// GetByEmail retrieves an active user by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	docs, err := r.store.Query(ctx, domain.CollectionUsers, domain.Filter{"email": email, "isActive": "true"})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("user %s: %w", email, domain.ErrNotFound)
	}
	return unmarshalUser(docs[0])
}

// Update replaces an existing user document
func (r *UserRepository) Update(ctx context.Context, user *domain.User) error {
	doc, err := json.Marshal(userDoc{User: *user, PasswordHash: user.PasswordHash})
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}
	if err := r.store.Update(ctx, domain.CollectionUsers, user.ID, doc); err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

// ListByCompany returns every active user in a company
func (r *UserRepository) ListByCompany(ctx context.Context, companyID string) ([]*domain.User, error) {
	docs, err := r.store.Query(ctx, domain.CollectionUsers, domain.Filter{"companyId": companyID, "isActive": "true"})
	if err != nil {
		return nil, err
	}
	users := make([]*domain.User, 0, len(docs))
	for _, data := range docs {
		u, err := unmarshalUser(data)
		if err != nil {
			r.logger.Warn("skipping malformed user document", slog.String("error", err.Error()))
			continue
		}
		users = append(users, u)
	}
	return users, nil
}

func unmarshalUser(data []byte) (*domain.User, error) {
	var doc userDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user: %w", err)
	}
	u := doc.User
	u.PasswordHash = doc.PasswordHash
	return &u, nil
}
