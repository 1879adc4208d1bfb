package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/fleveque/article-service/internal/model"
)

// ModelDescriptorRepository resolves logical model names. The partial unique
// index on active names guarantees lookups are deterministic: at most one
// active descriptor per logical name.
type ModelDescriptorRepository interface {
	GetActiveByName(ctx context.Context, name string) (*model.ModelDescriptor, error)
	Create(ctx context.Context, descriptor *model.ModelDescriptor) error
	ListActive(ctx context.Context) ([]model.ModelDescriptor, error)
}

type sqliteModelDescriptorRepository struct {
	db *sqlx.DB
}

// NewModelDescriptorRepository creates a new SQLite-backed ModelDescriptorRepository.
func NewModelDescriptorRepository(db *sqlx.DB) ModelDescriptorRepository {
	return &sqliteModelDescriptorRepository{db: db}
}

func (r *sqliteModelDescriptorRepository) GetActiveByName(ctx context.Context, name string) (*model.ModelDescriptor, error) {
	var descriptor model.ModelDescriptor
	// A display alias resolves the same way as the canonical name.
	err := r.db.GetContext(ctx, &descriptor, `
		SELECT * FROM model_descriptors
		WHERE (name = ? OR display_alias = ?) AND active = 1
		LIMIT 1
	`, name, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting model descriptor %s: %w", name, err)
	}
	return &descriptor, nil
}

func (r *sqliteModelDescriptorRepository) Create(ctx context.Context, descriptor *model.ModelDescriptor) error {
	result, err := r.db.NamedExecContext(ctx, `
		INSERT INTO model_descriptors (name, display_alias, provider, provider_model_id, active)
		VALUES (:name, :display_alias, :provider, :provider_model_id, :active)
	`, descriptor)
	if err != nil {
		return fmt.Errorf("creating model descriptor: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting last insert id: %w", err)
	}
	descriptor.ID = id
	return nil
}

func (r *sqliteModelDescriptorRepository) ListActive(ctx context.Context) ([]model.ModelDescriptor, error) {
	var descriptors []model.ModelDescriptor
	err := r.db.SelectContext(ctx, &descriptors,
		"SELECT * FROM model_descriptors WHERE active = 1 ORDER BY name ASC")
	if err != nil {
		return nil, fmt.Errorf("listing model descriptors: %w", err)
	}
	return descriptors, nil
}

// CredentialRepository resolves provider secrets. Only the gateway holds a
// reference to it — secrets never travel further than the outbound call.
type CredentialRepository interface {
	GetActive(ctx context.Context, provider model.Provider, category model.CredentialCategory) (*model.Credential, error)
	Create(ctx context.Context, credential *model.Credential) error
}

type sqliteCredentialRepository struct {
	db *sqlx.DB
}

// NewCredentialRepository creates a new SQLite-backed CredentialRepository.
func NewCredentialRepository(db *sqlx.DB) CredentialRepository {
	return &sqliteCredentialRepository{db: db}
}

func (r *sqliteCredentialRepository) GetActive(ctx context.Context, provider model.Provider, category model.CredentialCategory) (*model.Credential, error) {
	var credential model.Credential
	err := r.db.GetContext(ctx, &credential, `
		SELECT * FROM credentials
		WHERE provider = ? AND category = ? AND active = 1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, provider, category)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting credential for %s/%s: %w", provider, category, err)
	}
	return &credential, nil
}

func (r *sqliteCredentialRepository) Create(ctx context.Context, credential *model.Credential) error {
	result, err := r.db.NamedExecContext(ctx, `
		INSERT INTO credentials (provider, category, secret, active)
		VALUES (:provider, :category, :secret, :active)
	`, credential)
	if err != nil {
		return fmt.Errorf("creating credential: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting last insert id: %w", err)
	}
	credential.ID = id
	return nil
}

// ProviderCallRepository handles persistence of outbound call tracking.
type ProviderCallRepository interface {
	Create(ctx context.Context, call *model.ProviderCall) error
	Count(ctx context.Context) (int64, error)
	TotalTokens(ctx context.Context) (int64, error)
}

type sqliteProviderCallRepository struct {
	db *sqlx.DB
}

// NewProviderCallRepository creates a new SQLite-backed ProviderCallRepository.
func NewProviderCallRepository(db *sqlx.DB) ProviderCallRepository {
	return &sqliteProviderCallRepository{db: db}
}

func (r *sqliteProviderCallRepository) Create(ctx context.Context, call *model.ProviderCall) error {
	result, err := r.db.NamedExecContext(ctx, `
		INSERT INTO provider_calls (provider, model, tokens_used, tokens_estimated, success, duration_ms)
		VALUES (:provider, :model, :tokens_used, :tokens_estimated, :success, :duration_ms)
	`, call)
	if err != nil {
		return fmt.Errorf("creating provider call record: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting last insert id: %w", err)
	}
	call.ID = id
	return nil
}

func (r *sqliteProviderCallRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM provider_calls")
	return count, err
}

func (r *sqliteProviderCallRepository) TotalTokens(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.GetContext(ctx, &total,
		"SELECT COALESCE(SUM(tokens_used), 0) FROM provider_calls")
	return total, err
}
