package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-grants/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type GrantStore struct {
	db     *bun.DB
	repo   repository.Repository[*grantRecord]
	cipher core.TokenCipher
	now    func() time.Time
}

type GrantStoreOption func(*GrantStore)

// WithGrantTokenCipher seals access tokens before they are written.
func WithGrantTokenCipher(tokenCipher core.TokenCipher) GrantStoreOption {
	return func(s *GrantStore) {
		s.cipher = tokenCipher
	}
}

func NewGrantStore(db *bun.DB, opts ...GrantStoreOption) (*GrantStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*grantRecord](db, grantHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid grant repository wiring: %w", err)
		}
	}
	store := &GrantStore{
		db:   db,
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store, nil
}

func (s *GrantStore) Create(ctx context.Context, in core.CreateGrantInput) (core.Grant, error) {
	if s == nil || s.repo == nil {
		return core.Grant{}, fmt.Errorf("sqlstore: grant store is not configured")
	}
	in.AuthServerID = strings.TrimSpace(in.AuthServerID)
	if in.AuthServerID == "" {
		return core.Grant{}, fmt.Errorf("sqlstore: auth server id is required")
	}
	if err := in.AccessType.Validate(); err != nil {
		return core.Grant{}, err
	}
	if strings.TrimSpace(in.AccessToken) == "" {
		return core.Grant{}, fmt.Errorf("sqlstore: access token is required")
	}

	sealed, err := s.sealToken(ctx, in.AccessToken)
	if err != nil {
		return core.Grant{}, err
	}
	in.AccessToken = sealed

	record := newGrantRecord(uuid.NewString(), in, s.now())
	if _, err := s.repo.Create(ctx, record); err != nil {
		return core.Grant{}, err
	}
	return s.Get(ctx, record.ID)
}

// Get returns the grant by id, including soft-deleted grants.
func (s *GrantStore) Get(ctx context.Context, id string) (core.Grant, error) {
	if s == nil || s.db == nil {
		return core.Grant{}, fmt.Errorf("sqlstore: grant store is not configured")
	}
	trimmed := strings.TrimSpace(id)
	record := &grantRecord{}
	err := s.selectWithAuthServer(record).
		Where("?TableAlias.id = ?", trimmed).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Grant{}, fmt.Errorf("%w: id %q", core.ErrGrantNotFound, trimmed)
		}
		return core.Grant{}, err
	}
	return s.toDomain(ctx, record)
}

// FindUsable narrows candidates in SQL by auth server, type and liveness and
// applies the action subset test in Go. The oldest matching grant wins.
func (s *GrantStore) FindUsable(ctx context.Context, scope core.GrantScope) (core.Grant, error) {
	if s == nil || s.db == nil {
		return core.Grant{}, fmt.Errorf("sqlstore: grant store is not configured")
	}
	records := []*grantRecord{}
	err := s.selectWithAuthServer(&records).
		Where("oas.url = ?", strings.TrimSpace(scope.AuthServerURL)).
		Where("?TableAlias.access_type = ?", string(scope.AccessType)).
		Where("?TableAlias.deleted_at IS NULL").
		OrderExpr("og.created_at ASC, og.id ASC").
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return core.Grant{}, err
	}
	for _, record := range records {
		if record.toDomain().Covers(scope) {
			return s.toDomain(ctx, record)
		}
	}
	return core.Grant{}, core.ErrGrantNotFound
}

func (s *GrantStore) UpdateToken(ctx context.Context, id string, in core.UpdateGrantTokenInput) (core.Grant, error) {
	if s == nil || s.repo == nil {
		return core.Grant{}, fmt.Errorf("sqlstore: grant store is not configured")
	}
	if strings.TrimSpace(in.AccessToken) == "" {
		return core.Grant{}, fmt.Errorf("sqlstore: access token is required")
	}
	sealed, err := s.sealToken(ctx, in.AccessToken)
	if err != nil {
		return core.Grant{}, err
	}
	return s.update(ctx, id, func(record *grantRecord) {
		record.AccessToken = sealed
		record.ManagementID = in.ManagementID
		record.ExpiresAt = cloneTimePointer(in.ExpiresAt)
	})
}

func (s *GrantStore) SoftDelete(ctx context.Context, id string, deletedAt time.Time) (core.Grant, error) {
	if s == nil || s.repo == nil {
		return core.Grant{}, fmt.Errorf("sqlstore: grant store is not configured")
	}
	at := deletedAt.UTC()
	return s.update(ctx, id, func(record *grantRecord) {
		record.DeletedAt = &at
	})
}

func (s *GrantStore) update(ctx context.Context, id string, mutate func(*grantRecord)) (core.Grant, error) {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return core.Grant{}, fmt.Errorf("%w: id is required", core.ErrGrantNotFound)
	}
	current := &grantRecord{}
	err := s.db.NewSelect().
		Model(current).
		Where("?TableAlias.id = ?", trimmed).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Grant{}, fmt.Errorf("%w: id %q", core.ErrGrantNotFound, trimmed)
		}
		return core.Grant{}, err
	}
	mutate(current)
	current.UpdatedAt = s.now()

	if _, err := s.repo.Update(ctx, current, repository.UpdateByID(trimmed)); err != nil {
		return core.Grant{}, err
	}
	return s.Get(ctx, trimmed)
}

func (s *GrantStore) selectWithAuthServer(model any) *bun.SelectQuery {
	return s.db.NewSelect().
		Model(model).
		ColumnExpr("og.*").
		ColumnExpr("oas.url AS auth_server_url").
		Join("JOIN op_auth_servers AS oas ON oas.id = og.auth_server_id")
}

func (s *GrantStore) toDomain(ctx context.Context, record *grantRecord) (core.Grant, error) {
	grant := record.toDomain()
	token, err := s.openToken(ctx, grant.AccessToken)
	if err != nil {
		return core.Grant{}, fmt.Errorf("sqlstore: grant %s: %w", grant.ID, err)
	}
	grant.AccessToken = token
	return grant, nil
}

func (s *GrantStore) sealToken(ctx context.Context, token string) (string, error) {
	if s.cipher == nil {
		return token, nil
	}
	sealed, err := s.cipher.Encrypt(ctx, []byte(token))
	if err != nil {
		return "", fmt.Errorf("sqlstore: seal access token: %w", err)
	}
	return string(sealed), nil
}

func (s *GrantStore) openToken(ctx context.Context, stored string) (string, error) {
	if s.cipher == nil {
		return stored, nil
	}
	plaintext, err := s.cipher.Decrypt(ctx, []byte(stored))
	if err != nil {
		return "", fmt.Errorf("open access token: %w", err)
	}
	return string(plaintext), nil
}
