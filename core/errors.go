package core

import (
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

var (
	// ErrGrantRequiresInteraction is returned when the authorization server
	// answered a grant request with an interaction instead of an access token.
	ErrGrantRequiresInteraction = errors.New("core: grant requires interaction")
	// ErrInvalidGrantRequest is returned when a grant request or rotation was
	// rejected or produced an unusable response.
	ErrInvalidGrantRequest = errors.New("core: invalid grant request")

	ErrUnknownWalletAddress = errors.New("core: unknown wallet address")
	ErrRemoteInvalidGrant   = errors.New("core: invalid grant")
	ErrRemoteInvalidRequest = errors.New("core: invalid remote request")
	ErrRemoteNotFound       = errors.New("core: remote resource not found")

	ErrGrantNotFound      = errors.New("core: grant not found")
	ErrAuthServerNotFound = errors.New("core: auth server not found")
	ErrAuthServerConflict = errors.New("core: auth server already exists")
)

const (
	GrantsErrorBadInput                 = "GRANTS_BAD_INPUT"
	GrantsErrorNotFound                 = "GRANTS_NOT_FOUND"
	GrantsErrorConflict                 = "GRANTS_CONFLICT"
	GrantsErrorPermissionDenied         = "GRANTS_PERMISSION_DENIED"
	GrantsErrorUpstream                 = "GRANTS_UPSTREAM_ERROR"
	GrantsErrorInternal                 = "GRANTS_INTERNAL_ERROR"
	GrantsErrorGrantRequiresInteraction = "GRANT_REQUIRES_INTERACTION"
	GrantsErrorInvalidGrantRequest      = "INVALID_GRANT_REQUEST"
	GrantsErrorUnknownWalletAddress     = "UNKNOWN_WALLET_ADDRESS"
	GrantsErrorInvalidGrant             = "INVALID_GRANT"
	GrantsErrorInvalidRequest           = "INVALID_REQUEST"
	GrantsErrorRemoteNotFound           = "NOT_FOUND"
)

type errorClass struct {
	sentinel error
	category goerrors.Category
	code     int
	textCode string
}

var classifiedErrors = []errorClass{
	{ErrGrantRequiresInteraction, goerrors.CategoryAuthz, http.StatusForbidden, GrantsErrorGrantRequiresInteraction},
	{ErrInvalidGrantRequest, goerrors.CategoryExternal, http.StatusBadGateway, GrantsErrorInvalidGrantRequest},
	{ErrUnknownWalletAddress, goerrors.CategoryNotFound, http.StatusNotFound, GrantsErrorUnknownWalletAddress},
	{ErrRemoteInvalidGrant, goerrors.CategoryAuthz, http.StatusForbidden, GrantsErrorInvalidGrant},
	{ErrRemoteInvalidRequest, goerrors.CategoryExternal, http.StatusBadGateway, GrantsErrorInvalidRequest},
	{ErrRemoteNotFound, goerrors.CategoryNotFound, http.StatusNotFound, GrantsErrorRemoteNotFound},
	{ErrGrantNotFound, goerrors.CategoryNotFound, http.StatusNotFound, GrantsErrorNotFound},
	{ErrAuthServerNotFound, goerrors.CategoryNotFound, http.StatusNotFound, GrantsErrorNotFound},
	{ErrAuthServerConflict, goerrors.CategoryConflict, http.StatusConflict, GrantsErrorConflict},
	{ErrInvalidGrantScope, goerrors.CategoryBadInput, http.StatusBadRequest, GrantsErrorBadInput},
	{ErrInvalidAccessType, goerrors.CategoryBadInput, http.StatusBadRequest, GrantsErrorBadInput},
	{ErrInvalidAccessAction, goerrors.CategoryBadInput, http.StatusBadRequest, GrantsErrorBadInput},
}

// classify wraps sentinel in an envelope carrying its stable category and
// codes. errors.Is(result, sentinel) holds.
func classify(sentinel error, message string, metadata map[string]any) *goerrors.Error {
	for _, class := range classifiedErrors {
		if class.sentinel != sentinel {
			continue
		}
		wrapped := goerrors.Wrap(sentinel, class.category, message).
			WithCode(class.code).
			WithTextCode(class.textCode)
		if len(metadata) > 0 {
			wrapped = wrapped.WithMetadata(metadata)
		}
		return wrapped
	}
	return ensureGrantsErrorEnvelope(goerrors.Wrap(sentinel, goerrors.CategoryInternal, message))
}

func grantsErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureGrantsErrorEnvelope(richErr)
	}

	for _, class := range classifiedErrors {
		if errors.Is(err, class.sentinel) {
			return goerrors.Wrap(err, class.category, err.Error()).
				WithCode(class.code).
				WithTextCode(class.textCode)
		}
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"):
		return newGrantsError(err, goerrors.CategoryBadInput, GrantsErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureGrantsErrorEnvelope(mapped)
}

func newGrantsError(err error, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureGrantsErrorEnvelope(
		goerrors.Wrap(err, category, err.Error()).
			WithTextCode(textCode),
	)
}

func ensureGrantsErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = grantsHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultGrantsTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultGrantsTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return GrantsErrorBadInput
	case goerrors.CategoryNotFound:
		return GrantsErrorNotFound
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return GrantsErrorPermissionDenied
	case goerrors.CategoryConflict:
		return GrantsErrorConflict
	case goerrors.CategoryExternal:
		return GrantsErrorUpstream
	default:
		return GrantsErrorInternal
	}
}

func grantsHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func mapError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}
