// Package identity defines the signed-in user and the provider signals the
// sync layer reacts to.
package identity

import "github.com/hay-kot/agenda/pkg/dispose"

// User is a signed-in identity. Anonymous users have no email.
type User struct {
	ID        string `yaml:"id"`
	Anonymous bool   `yaml:"anonymous"`
	Email     string `yaml:"email,omitempty"`
}

// Provider reports the current user and identity transitions. Each On*
// registration is independent and released through its own handle.
type Provider interface {
	// CurrentUser returns the signed-in user, or nil.
	CurrentUser() *User
	// OnAuthStateChange is called with the new user (nil when signed out)
	// whenever the identity changes, including anonymous sign-in.
	OnAuthStateChange(fn func(*User)) dispose.Handle
	// OnSignIn is called after an explicit sign-in.
	OnSignIn(fn func(User)) dispose.Handle
	// OnSignOut is called after an explicit sign-out.
	OnSignOut(fn func()) dispose.Handle
}

// UserID returns the id of the current user or "" when signed out.
func UserID(p Provider) string {
	if u := p.CurrentUser(); u != nil {
		return u.ID
	}
	return ""
}
