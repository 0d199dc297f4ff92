package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/yourorg/timetrack/internal/domain"
)

// CompanyRepository implements domain.CompanyRepository over the document store
type CompanyRepository struct {
	store  domain.DocumentStore
	logger *slog.Logger
}

// NewCompanyRepository creates a new company repository
func NewCompanyRepository(store domain.DocumentStore, logger *slog.Logger) *CompanyRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &CompanyRepository{store: store, logger: logger}
}

// Create stores a new company document; an empty week configuration
// falls back to the default.
func (r *CompanyRepository) Create(ctx context.Context, company *domain.Company) error {
	if company.ID == "" {
		company.ID = uuid.NewString()
	}
	if len(company.WeekConfig.WorkingDays) == 0 {
		company.WeekConfig = domain.DefaultWeekConfig()
	}
	doc, err := json.Marshal(company)
	if err != nil {
		return fmt.Errorf("failed to marshal company: %w", err)
	}
	if err := r.store.Set(ctx, domain.CollectionCompanies, company.ID, doc); err != nil {
		return fmt.Errorf("failed to create company: %w", err)
	}
	return nil
}

// GetByID retrieves a company by ID
func (r *CompanyRepository) GetByID(ctx context.Context, id string) (*domain.Company, error) {
	data, err := r.store.Get(ctx, domain.CollectionCompanies, id)
	if err != nil {
		return nil, err
	}
	var c domain.Company
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal company: %w", err)
	}
	return &c, nil
}

// Update replaces an existing company document
func (r *CompanyRepository) Update(ctx context.Context, company *domain.Company) error {
	doc, err := json.Marshal(company)
	if err != nil {
		return fmt.Errorf("failed to marshal company: %w", err)
	}
	if err := r.store.Update(ctx, domain.CollectionCompanies, company.ID, doc); err != nil {
		return fmt.Errorf("failed to update company: %w", err)
	}
	return nil
}
