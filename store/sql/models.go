package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type authServerRecord struct {
	bun.BaseModel `bun:"table:op_auth_servers,alias:oas"`

	ID        string    `bun:"id,pk"`
	URL       string    `bun:"url,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type grantRecord struct {
	bun.BaseModel `bun:"table:op_grants,alias:og"`

	ID            string     `bun:"id,pk"`
	AuthServerID  string     `bun:"auth_server_id,notnull"`
	AccessType    string     `bun:"access_type,notnull"`
	AccessActions []string   `bun:"access_actions,type:jsonb,notnull"`
	AccessToken   string     `bun:"access_token,notnull"`
	ManagementID  string     `bun:"management_id,notnull"`
	ExpiresAt     *time.Time `bun:"expires_at,nullzero"`
	DeletedAt     *time.Time `bun:"deleted_at,nullzero"`
	CreatedAt     time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt     time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`

	// AuthServerURL is filled from the op_auth_servers join on reads.
	AuthServerURL string `bun:"auth_server_url,scanonly"`
}
