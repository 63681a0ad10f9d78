package actions

import (
	"context"
	"net/url"

	"github.com/dmitrijs2005/clusterdeck/internal/server/models"
	"github.com/dmitrijs2005/clusterdeck/internal/server/session"
)

// Schema is a form input type. Bind copies raw values from the form,
// Validate returns the first failing field's message.
type Schema interface {
	Bind(form url.Values)
	Validate() error
}

// Action runs a mutation for a submitted form. A non-nil error means
// the action could not run at all (infrastructure failure or missing
// authentication); user-facing failures come back as Err.
type Action func(ctx context.Context, form url.Values) (Result, error)

// Validated binds and validates form into S before calling fn. Invalid
// input yields Err with the first validation message.
func Validated[S any, P interface {
	*S
	Schema
}](fn func(ctx context.Context, in *S) (Result, error)) Action {
	return func(ctx context.Context, form url.Values) (Result, error) {
		in, res := parse[S, P](form)
		if res != nil {
			return res, nil
		}
		return fn(ctx, in)
	}
}

// ValidatedWithUser is Validated for signed-in users only. The user is
// taken from the request scope before the form is looked at.
func ValidatedWithUser[S any, P interface {
	*S
	Schema
}](fn func(ctx context.Context, in *S, user *models.User) (Result, error)) Action {
	return func(ctx context.Context, form url.Values) (Result, error) {
		user := session.UserFrom(ctx)
		if user == nil {
			return nil, ErrNotAuthenticated
		}

		in, res := parse[S, P](form)
		if res != nil {
			return res, nil
		}
		return fn(ctx, in, user)
	}
}

func parse[S any, P interface {
	*S
	Schema
}](form url.Values) (*S, Result) {
	in := new(S)
	p := P(in)
	p.Bind(form)
	if err := p.Validate(); err != nil {
		return nil, Err{Message: err.Error()}
	}
	return in, nil
}
