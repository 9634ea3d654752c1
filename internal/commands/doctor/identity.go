package doctor

import (
	"context"

	"github.com/hay-kot/agenda/internal/core/identity"
)

// IdentityCheck reads the persisted sign-in state.
type IdentityCheck struct {
	path string
}

// NewIdentityCheck creates a new identity check.
func NewIdentityCheck(path string) *IdentityCheck {
	return &IdentityCheck{path: path}
}

func (c *IdentityCheck) Name() string {
	return "Identity"
}

func (c *IdentityCheck) Run(ctx context.Context) Result {
	result := Result{Name: c.Name()}

	l, err := identity.NewLocal(c.path)
	if err != nil {
		result.add(fail("Identity file", err.Error()))
		return result
	}

	u := l.CurrentUser()
	switch {
	case u == nil:
		result.add(warn("Signed in", "run 'agenda login' to sign in"))
	case u.Anonymous:
		result.add(pass("Signed in", "anonymous "+u.ID))
	default:
		result.add(pass("Signed in", u.Email))
	}

	return result
}
