package core

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

var (
	ErrInvalidAccessType   = errors.New("core: invalid access type")
	ErrInvalidAccessAction = errors.New("core: invalid access action")
	ErrInvalidGrantScope   = errors.New("core: invalid grant scope")
	ErrInvalidManagementID = errors.New("core: invalid management id")
)

type AccessType string

const (
	AccessTypeIncomingPayment AccessType = "incoming-payment"
	AccessTypeOutgoingPayment AccessType = "outgoing-payment"
	AccessTypeQuote           AccessType = "quote"
)

func (t AccessType) Validate() error {
	switch t {
	case AccessTypeIncomingPayment, AccessTypeOutgoingPayment, AccessTypeQuote:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidAccessType, string(t))
	}
}

type AccessAction string

const (
	AccessActionCreate   AccessAction = "create"
	AccessActionRead     AccessAction = "read"
	AccessActionReadAll  AccessAction = "read-all"
	AccessActionList     AccessAction = "list"
	AccessActionListAll  AccessAction = "list-all"
	AccessActionComplete AccessAction = "complete"
)

// impliedAccessActions lists the actions an action authorizes beyond itself.
var impliedAccessActions = map[AccessAction][]AccessAction{
	AccessActionReadAll: {AccessActionRead},
	AccessActionListAll: {AccessActionList},
}

func (a AccessAction) Validate() error {
	switch a {
	case AccessActionCreate,
		AccessActionRead,
		AccessActionReadAll,
		AccessActionList,
		AccessActionListAll,
		AccessActionComplete:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidAccessAction, string(a))
	}
}

type AuthServer struct {
	ID        string
	URL       string
	CreatedAt time.Time
}

type Grant struct {
	ID            string
	AuthServerID  string
	AuthServerURL string
	AccessType    AccessType
	AccessActions []AccessAction
	AccessToken   string
	ManagementID  string
	ExpiresAt     *time.Time
	DeletedAt     *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Expired reports whether the access token expiry is at or before now. Grants
// without an expiry never expire.
func (g Grant) Expired(now time.Time) bool {
	if g.ExpiresAt == nil {
		return false
	}
	return !g.ExpiresAt.After(now)
}

func (g Grant) Deleted() bool {
	return g.DeletedAt != nil
}

// Covers reports whether the grant is usable for scope. Stored actions were
// expanded at write time, so this is a plain subset test.
func (g Grant) Covers(scope GrantScope) bool {
	if g.Deleted() {
		return false
	}
	if g.AccessType != scope.AccessType {
		return false
	}
	if normalizeAuthServerURL(g.AuthServerURL) != normalizeAuthServerURL(scope.AuthServerURL) {
		return false
	}
	return ActionsCover(g.AccessActions, scope.AccessActions)
}

type GrantScope struct {
	AuthServerURL string
	AccessType    AccessType
	AccessActions []AccessAction
}

func (s GrantScope) Validate() error {
	if strings.TrimSpace(s.AuthServerURL) == "" {
		return fmt.Errorf("%w: auth server url is required", ErrInvalidGrantScope)
	}
	if err := s.AccessType.Validate(); err != nil {
		return err
	}
	if len(s.AccessActions) == 0 {
		return fmt.Errorf("%w: at least one access action is required", ErrInvalidGrantScope)
	}
	for _, action := range s.AccessActions {
		if err := action.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Key identifies the scope independently of action order.
func (s GrantScope) Key() string {
	return strings.Join([]string{
		normalizeAuthServerURL(s.AuthServerURL),
		string(s.AccessType),
		joinAccessActions(normalizeAccessActions(s.AccessActions)),
	}, "|")
}

func (s GrantScope) normalized() GrantScope {
	return GrantScope{
		AuthServerURL: normalizeAuthServerURL(s.AuthServerURL),
		AccessType:    AccessType(strings.TrimSpace(string(s.AccessType))),
		AccessActions: normalizeAccessActions(s.AccessActions),
	}
}

// ManagementURL builds the token management endpoint used for rotation.
func ManagementURL(authServerURL string, managementPath string, managementID string) string {
	base := strings.TrimRight(strings.TrimSpace(authServerURL), "/")
	path := strings.Trim(strings.TrimSpace(managementPath), "/")
	id := url.PathEscape(strings.TrimSpace(managementID))
	if path == "" {
		return base + "/" + id
	}
	return base + "/" + path + "/" + id
}

// ParseManagementID extracts the trailing path segment of a token management URL.
func ParseManagementID(manageURL string) (string, error) {
	trimmed := strings.TrimSpace(manageURL)
	if trimmed == "" {
		return "", ErrInvalidManagementID
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidManagementID, err)
	}
	index := strings.LastIndex(parsed.Path, "/")
	id := parsed.Path[index+1:]
	if id == "" {
		return "", ErrInvalidManagementID
	}
	if unescaped, unescapeErr := url.PathUnescape(id); unescapeErr == nil {
		id = unescaped
	}
	return id, nil
}

func normalizeAuthServerURL(value string) string {
	return strings.TrimSpace(value)
}
