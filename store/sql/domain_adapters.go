package sqlstore

import (
	"time"

	"github.com/goliatone/go-grants/core"
)

func (r *authServerRecord) toDomain() core.AuthServer {
	if r == nil {
		return core.AuthServer{}
	}
	return core.AuthServer{
		ID:        r.ID,
		URL:       r.URL,
		CreatedAt: r.CreatedAt,
	}
}

func newGrantRecord(id string, in core.CreateGrantInput, now time.Time) *grantRecord {
	actions := make([]string, 0, len(in.AccessActions))
	for _, action := range in.AccessActions {
		actions = append(actions, string(action))
	}
	return &grantRecord{
		ID:            id,
		AuthServerID:  in.AuthServerID,
		AccessType:    string(in.AccessType),
		AccessActions: actions,
		AccessToken:   in.AccessToken,
		ManagementID:  in.ManagementID,
		ExpiresAt:     cloneTimePointer(in.ExpiresAt),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func (r *grantRecord) toDomain() core.Grant {
	if r == nil {
		return core.Grant{}
	}
	actions := make([]core.AccessAction, 0, len(r.AccessActions))
	for _, action := range r.AccessActions {
		actions = append(actions, core.AccessAction(action))
	}
	return core.Grant{
		ID:            r.ID,
		AuthServerID:  r.AuthServerID,
		AuthServerURL: r.AuthServerURL,
		AccessType:    core.AccessType(r.AccessType),
		AccessActions: actions,
		AccessToken:   r.AccessToken,
		ManagementID:  r.ManagementID,
		ExpiresAt:     cloneTimePointer(r.ExpiresAt),
		DeletedAt:     cloneTimePointer(r.DeletedAt),
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func cloneTimePointer(input *time.Time) *time.Time {
	if input == nil {
		return nil
	}
	value := input.UTC()
	return &value
}
