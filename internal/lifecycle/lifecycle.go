// Package lifecycle drives sync store subscriptions from identity transitions.
package lifecycle

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/hay-kot/agenda/internal/core/identity"
	"github.com/hay-kot/agenda/pkg/dispose"
)

// State is the sign-in state tracked by the Adapter.
type State int

const (
	SignedOut State = iota
	SignedIn
)

func (s State) String() string {
	if s == SignedIn {
		return "signed_in"
	}
	return "signed_out"
}

// Syncable is a store whose subscription follows the signed-in user.
type Syncable interface {
	// Resubscribe re-runs the last registered subscription against the current user.
	Resubscribe(ctx context.Context)
	// Reset cancels the subscription, clears the cache and reports an empty result.
	Reset()
}

// Adapter listens to the identity provider's three signals and resubscribes
// or resets its stores as the user signs in and out.
type Adapter struct {
	ctx    context.Context
	log    zerolog.Logger
	stores []Syncable

	handles dispose.Group

	mu     sync.Mutex
	state  State
	userID string
}

// New registers the adapter with provider. ctx bounds the subscriptions the
// adapter starts. The initial state mirrors the provider's current user and
// triggers no store actions.
func New(ctx context.Context, provider identity.Provider, log zerolog.Logger, stores ...Syncable) *Adapter {
	a := &Adapter{
		ctx:    ctx,
		log:    log,
		stores: stores,
	}

	if u := provider.CurrentUser(); u != nil {
		a.state = SignedIn
		a.userID = u.ID
	}

	a.handles.Add(provider.OnAuthStateChange(func(u *identity.User) {
		if u == nil {
			a.signedOut()
			return
		}
		a.signedIn(*u)
	}))
	a.handles.Add(provider.OnSignIn(a.signedIn))
	a.handles.Add(provider.OnSignOut(a.signedOut))

	return a
}

// State returns the current sign-in state.
func (a *Adapter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// SignOut moves the adapter to SignedOut as if the provider had reported it.
func (a *Adapter) SignOut() {
	a.signedOut()
}

// Close removes all three provider registrations. It is safe to call more than once.
func (a *Adapter) Close() {
	a.handles.Dispose()
}

func (a *Adapter) signedIn(u identity.User) {
	a.mu.Lock()
	if a.state == SignedIn && a.userID == u.ID {
		a.mu.Unlock()
		return
	}
	switched := a.state == SignedIn
	a.state = SignedIn
	a.userID = u.ID
	a.mu.Unlock()

	if switched {
		// never let one user's cache survive into another's session
		for _, s := range a.stores {
			s.Reset()
		}
	}

	a.log.Info().Str("user_id", u.ID).Bool("anonymous", u.Anonymous).Msg("signed in, resubscribing")
	for _, s := range a.stores {
		s.Resubscribe(a.ctx)
	}
}

func (a *Adapter) signedOut() {
	a.mu.Lock()
	if a.state == SignedOut {
		a.mu.Unlock()
		return
	}
	a.state = SignedOut
	a.userID = ""
	a.mu.Unlock()

	a.log.Info().Msg("signed out, clearing caches")
	for _, s := range a.stores {
		s.Reset()
	}
}
