package server

import (
	"errors"
	"net/http"

	"github.com/goevery/sitepush/internal/auth"
	"github.com/goevery/sitepush/internal/handler"
	"github.com/goevery/sitepush/internal/ierr"
)

// SubscriberResolver decides which user a stream request belongs to. Without
// a JWT secret the userId query parameter is trusted as is.
type SubscriberResolver struct {
	authenticator   *auth.Authenticator
	userIdValidator *handler.UserIdValidator
}

func NewSubscriberResolver(
	authenticator *auth.Authenticator,
	userIdValidator *handler.UserIdValidator,
) *SubscriberResolver {
	return &SubscriberResolver{
		authenticator,
		userIdValidator,
	}
}

func (s *SubscriberResolver) Resolve(r *http.Request) (string, error) {
	userId := r.URL.Query().Get("userId")

	if !s.authenticator.JWTEnabled() {
		if userId == "" {
			return "", ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("userId is required"))
		}

		return userId, s.userIdValidator.Validate(userId)
	}

	token, ok := auth.BearerToken(r)
	if !ok {
		return "", ierr.New(ierr.ErrorCodeUnauthenticated, errors.New("missing bearer token"))
	}

	authentication, err := s.authenticator.AuthenticateJWT(token)
	if err != nil {
		return "", err
	}

	if userId == "" {
		userId = authentication.Subject
	}

	if err := s.userIdValidator.Validate(userId); err != nil {
		return "", err
	}

	if !authentication.CanSubscribeAs(userId) {
		return "", ierr.New(ierr.ErrorCodePermissionDenied, errors.New("not allowed to subscribe as this user"))
	}

	return userId, nil
}
