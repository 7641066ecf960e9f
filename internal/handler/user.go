package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"regexp"

	"github.com/goevery/sitepush/internal/ierr"
)

// UserId accepts both JSON strings and integers, since the application keys
// users by numeric id.
type UserId string

func (u *UserId) UnmarshalJSON(data []byte) error {
	if bytes.HasPrefix(data, []byte(`"`)) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}

		*u = UserId(s)

		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}

	if _, err := n.Int64(); err != nil {
		return errors.New("user id must be a string or an integer")
	}

	*u = UserId(n.String())

	return nil
}

type UserIdValidator struct {
	userIdRegex *regexp.Regexp
}

func NewUserIdValidator() *UserIdValidator {
	return &UserIdValidator{
		userIdRegex: regexp.MustCompile(`^[\w-]{1,128}$`),
	}
}

func (v *UserIdValidator) Validate(userId string) error {
	valid := v.userIdRegex.MatchString(userId)
	if !valid {
		return ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("invalid userId"))
	}

	return nil
}

func (v *UserIdValidator) ValidateAll(userIds []UserId) ([]string, error) {
	if len(userIds) == 0 {
		return nil, ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("userIds cannot be empty"))
	}

	validated := make([]string, len(userIds))
	for i, userId := range userIds {
		if err := v.Validate(string(userId)); err != nil {
			return nil, err
		}

		validated[i] = string(userId)
	}

	return validated, nil
}
