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

type AuthServerStore struct {
	db   *bun.DB
	repo repository.Repository[*authServerRecord]
}

func NewAuthServerStore(db *bun.DB) (*AuthServerStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*authServerRecord](db, authServerHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid auth server repository wiring: %w", err)
		}
	}
	return &AuthServerStore{db: db, repo: repo}, nil
}

func (s *AuthServerStore) Insert(ctx context.Context, url string) (core.AuthServer, error) {
	if s == nil || s.repo == nil {
		return core.AuthServer{}, fmt.Errorf("sqlstore: auth server store is not configured")
	}
	trimmed := strings.TrimSpace(url)
	if trimmed == "" {
		return core.AuthServer{}, fmt.Errorf("sqlstore: auth server url is required")
	}
	record := &authServerRecord{
		ID:        uuid.NewString(),
		URL:       trimmed,
		CreatedAt: time.Now().UTC(),
	}
	created, err := s.repo.Create(ctx, record)
	if err != nil {
		if isUniqueViolation(err) {
			return core.AuthServer{}, fmt.Errorf("%w: url %q", core.ErrAuthServerConflict, trimmed)
		}
		return core.AuthServer{}, err
	}
	return created.toDomain(), nil
}

func (s *AuthServerStore) Get(ctx context.Context, id string) (core.AuthServer, error) {
	if s == nil || s.db == nil {
		return core.AuthServer{}, fmt.Errorf("sqlstore: auth server store is not configured")
	}
	record := &authServerRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", strings.TrimSpace(id)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.AuthServer{}, fmt.Errorf("%w: id %q", core.ErrAuthServerNotFound, id)
		}
		return core.AuthServer{}, err
	}
	return record.toDomain(), nil
}

func (s *AuthServerStore) GetByURL(ctx context.Context, url string) (core.AuthServer, error) {
	if s == nil || s.repo == nil {
		return core.AuthServer{}, fmt.Errorf("sqlstore: auth server store is not configured")
	}
	trimmed := strings.TrimSpace(url)
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("url", "=", trimmed),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.AuthServer{}, err
	}
	if len(records) == 0 {
		return core.AuthServer{}, fmt.Errorf("%w: url %q", core.ErrAuthServerNotFound, trimmed)
	}
	return records[0].toDomain(), nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "unique constraint failed") ||
		strings.Contains(message, "duplicate key value violates unique constraint")
}
