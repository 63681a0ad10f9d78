// Package actions turns untyped form submissions into validated, typed
// inputs and describes the outcome of a mutation as a Result.
package actions

import (
	"fmt"

	"github.com/dmitrijs2005/clusterdeck/internal/common"
	"github.com/dmitrijs2005/clusterdeck/internal/server/auth"
	"github.com/dmitrijs2005/clusterdeck/internal/server/models"
)

// Result is either Ok or Err.
type Result interface {
	isResult()
}

// Ok is a successful action. Redirect, when set, wins over Message.
// Session asks the caller to set a fresh session cookie, EndSession to
// clear it.
type Ok struct {
	Message    string
	Redirect   string
	Session    *auth.Issued
	EndSession bool
	Invitation *models.Invitation
}

// Err is a validation or business-rule failure shown to the user.
type Err struct {
	Message string
}

func (Ok) isResult()  {}
func (Err) isResult() {}

// ErrNotAuthenticated is returned by actions that need a signed-in user
// when there is none.
var ErrNotAuthenticated = fmt.Errorf("user is not authenticated: %w", common.ErrorUnauthorized)
