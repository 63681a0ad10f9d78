package actions

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/clusterdeck/internal/server/models"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

const (
	msgRequired            = "Required"
	msgInvalidEmail        = "Invalid email"
	msgInvalidEmailAddress = "Invalid email address"
	msgNameRequired        = "Name is required"
	msgPasswordsMismatch   = "Passwords don't match"
	msgExpectedNumber      = "Expected number, received string"
	msgInvalidInvitation   = "Invalid or expired invitation."
)

// fields remembers which keys the form carried; absent keys fail with
// "Required" before any other rule runs.
type fields map[string]bool

func seen(form url.Values) fields {
	f := make(fields, len(form))
	for k := range form {
		f[k] = true
	}
	return f
}

func (f fields) check(name string, value any, rules ...validation.Rule) error {
	if !f[name] {
		return errors.New(msgRequired)
	}
	return validation.Validate(value, rules...)
}

// firstError returns the first non-nil error in field order.
func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func minMsg(n int) string {
	return fmt.Sprintf("String must contain at least %d character(s)", n)
}

func maxMsg(n int) string {
	return fmt.Sprintf("String must contain at most %d character(s)", n)
}

// password builds the rules for a string of min..max characters; max 0
// means unbounded. An empty string fails the minimum.
func password(min, max int) []validation.Rule {
	rules := []validation.Rule{
		validation.Required.Error(minMsg(min)),
		validation.RuneLength(min, 0).Error(minMsg(min)),
	}
	if max > 0 {
		rules = append(rules, validation.RuneLength(0, max).Error(maxMsg(max)))
	}
	return rules
}

func email(msg string) []validation.Rule {
	return []validation.Rule{
		validation.Required.Error(msg),
		is.Email.Error(msg),
	}
}

type SignIn struct {
	Email    string
	Password string

	seen fields
}

func (s *SignIn) Bind(form url.Values) {
	s.seen = seen(form)
	s.Email = form.Get("email")
	s.Password = form.Get("password")
}

func (s *SignIn) Validate() error {
	emailRules := append(email(msgInvalidEmail),
		validation.RuneLength(3, 0).Error(minMsg(3)),
		validation.RuneLength(0, 255).Error(maxMsg(255)),
	)
	return firstError(
		s.seen.check("email", s.Email, emailRules...),
		s.seen.check("password", s.Password, password(8, 100)...),
	)
}

// SignUp optionally carries the id of the invitation being accepted.
type SignUp struct {
	Email    string
	Password string
	InviteID int64

	inviteRaw string
	seen      fields
}

func (s *SignUp) Bind(form url.Values) {
	s.seen = seen(form)
	s.Email = form.Get("email")
	s.Password = form.Get("password")
	s.inviteRaw = strings.TrimSpace(form.Get("inviteId"))
	if id, err := strconv.ParseInt(s.inviteRaw, 10, 64); err == nil {
		s.InviteID = id
	}
}

// HasInvite reports whether the sign-up accepts an invitation.
func (s *SignUp) HasInvite() bool {
	return s.InviteID > 0
}

func (s *SignUp) Validate() error {
	return firstError(
		s.seen.check("email", s.Email,
			validation.Required.Error(msgInvalidEmail),
			validation.RuneLength(0, 255).Error(maxMsg(255)),
			is.Email.Error(msgInvalidEmail),
		),
		s.seen.check("password", s.Password, password(8, 0)...),
		s.validateInvite(),
	)
}

func (s *SignUp) validateInvite() error {
	if s.inviteRaw != "" && s.InviteID <= 0 {
		return errors.New(msgInvalidInvitation)
	}
	return nil
}

type UpdatePassword struct {
	CurrentPassword string
	NewPassword     string
	ConfirmPassword string

	seen fields
}

func (s *UpdatePassword) Bind(form url.Values) {
	s.seen = seen(form)
	s.CurrentPassword = form.Get("currentPassword")
	s.NewPassword = form.Get("newPassword")
	s.ConfirmPassword = form.Get("confirmPassword")
}

func (s *UpdatePassword) Validate() error {
	if err := firstError(
		s.seen.check("currentPassword", s.CurrentPassword, password(8, 100)...),
		s.seen.check("newPassword", s.NewPassword, password(8, 100)...),
		s.seen.check("confirmPassword", s.ConfirmPassword, password(8, 100)...),
	); err != nil {
		return err
	}
	if s.NewPassword != s.ConfirmPassword {
		return errors.New(msgPasswordsMismatch)
	}
	return nil
}

type DeleteAccount struct {
	Password string

	seen fields
}

func (s *DeleteAccount) Bind(form url.Values) {
	s.seen = seen(form)
	s.Password = form.Get("password")
}

func (s *DeleteAccount) Validate() error {
	return s.seen.check("password", s.Password, password(8, 100)...)
}

type UpdateAccount struct {
	Name  string
	Email string

	seen fields
}

func (s *UpdateAccount) Bind(form url.Values) {
	s.seen = seen(form)
	s.Name = form.Get("name")
	s.Email = form.Get("email")
}

func (s *UpdateAccount) Validate() error {
	return firstError(
		s.seen.check("name", s.Name,
			validation.Required.Error(msgNameRequired),
			validation.RuneLength(0, 100).Error(maxMsg(100)),
		),
		s.seen.check("email", s.Email, email(msgInvalidEmailAddress)...),
	)
}

type RemoveMember struct {
	MemberID int64

	raw  string
	seen fields
}

func (s *RemoveMember) Bind(form url.Values) {
	s.seen = seen(form)
	s.raw = strings.TrimSpace(form.Get("memberId"))
	if id, err := strconv.ParseInt(s.raw, 10, 64); err == nil {
		s.MemberID = id
	}
}

func (s *RemoveMember) Validate() error {
	return s.seen.check("memberId", s.raw, validation.By(func(any) error {
		if _, err := strconv.ParseInt(s.raw, 10, 64); err != nil {
			return errors.New(msgExpectedNumber)
		}
		return nil
	}))
}

type InviteMember struct {
	Email string
	Role  string

	seen fields
}

func (s *InviteMember) Bind(form url.Values) {
	s.seen = seen(form)
	s.Email = form.Get("email")
	s.Role = form.Get("role")
}

func (s *InviteMember) Validate() error {
	roleMsg := fmt.Sprintf("Invalid enum value. Expected '%s' | '%s', received '%s'",
		models.RoleMember, models.RoleOwner, s.Role)
	return firstError(
		s.seen.check("email", s.Email, email(msgInvalidEmailAddress)...),
		s.seen.check("role", s.Role,
			validation.Required.Error(roleMsg),
			validation.In(models.RoleMember, models.RoleOwner).Error(roleMsg),
		),
	)
}
