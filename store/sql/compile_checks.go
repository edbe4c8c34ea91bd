package sqlstore

import "github.com/goliatone/go-grants/core"

var (
	_ core.AuthServerStore        = (*AuthServerStore)(nil)
	_ core.AuthServerStore        = (*CachedAuthServerStore)(nil)
	_ core.GrantStore             = (*GrantStore)(nil)
	_ core.StoreProvider          = (*RepositoryFactory)(nil)
	_ core.RepositoryStoreFactory = (*RepositoryFactory)(nil)
)
