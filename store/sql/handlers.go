package sqlstore

import (
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

func authServerHandlers() repository.ModelHandlers[*authServerRecord] {
	return repository.ModelHandlers[*authServerRecord]{
		NewRecord: func() *authServerRecord {
			return &authServerRecord{}
		},
		GetID: func(record *authServerRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *authServerRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "url"
		},
		GetIdentifierValue: func(record *authServerRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.URL)
		},
	}
}

func grantHandlers() repository.ModelHandlers[*grantRecord] {
	return repository.ModelHandlers[*grantRecord]{
		NewRecord: func() *grantRecord {
			return &grantRecord{}
		},
		GetID: func(record *grantRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *grantRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record *grantRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.ID)
		},
	}
}

func parseUUID(value string) uuid.UUID {
	parsed, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return uuid.Nil
	}
	return parsed
}
