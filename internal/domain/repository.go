package domain

import "context"

// UserRepository defines typed access to user documents
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, user *User) error
	ListByCompany(ctx context.Context, companyID string) ([]*User, error)
}

// CompanyRepository defines typed access to company documents
type CompanyRepository interface {
	Create(ctx context.Context, company *Company) error
	GetByID(ctx context.Context, id string) (*Company, error)
	Update(ctx context.Context, company *Company) error
}

// StatsRepository defines typed access to derived user statistics
type StatsRepository interface {
	Get(ctx context.Context, userID string) (*UserStats, error)
	Put(ctx context.Context, stats *UserStats) error
}
