package identity

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/hay-kot/agenda/pkg/dispose"
)

// ErrInvalidEmail is returned by SignIn for blank email addresses.
var ErrInvalidEmail = errors.New("email is required")

// emailNamespace derives stable user ids so the same email maps to the same
// remote records on every device.
var emailNamespace = uuid.MustParse("6f1c7d3e-2b4a-4f0e-9d55-0c3f8a9e1b27")

type identityFile struct {
	User *User `yaml:"user"`
}

// Local is an in-process Provider. When constructed with a path, the signed-in
// user survives restarts.
type Local struct {
	path string

	mu     sync.Mutex
	user   *User
	nextID uint64

	authState map[uint64]func(*User)
	signIn    map[uint64]func(User)
	signOut   map[uint64]func()
}

// NewLocal creates a provider, restoring the user persisted at path. An empty
// path disables persistence.
func NewLocal(path string) (*Local, error) {
	l := &Local{
		path:      path,
		authState: make(map[uint64]func(*User)),
		signIn:    make(map[uint64]func(User)),
		signOut:   make(map[uint64]func()),
	}

	if path == "" {
		return l, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return l, nil
		}
		return nil, fmt.Errorf("read identity file: %w", err)
	}

	var file identityFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse identity file: %w", err)
	}
	l.user = file.User

	return l, nil
}

// CurrentUser returns a copy of the signed-in user, or nil.
func (l *Local) CurrentUser() *User {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.user == nil {
		return nil
	}
	u := *l.user
	return &u
}

func (l *Local) OnAuthStateChange(fn func(*User)) dispose.Handle {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := l.register()
	l.authState[id] = fn
	return dispose.Func(func() { l.remove(func() { delete(l.authState, id) }) })
}

func (l *Local) OnSignIn(fn func(User)) dispose.Handle {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := l.register()
	l.signIn[id] = fn
	return dispose.Func(func() { l.remove(func() { delete(l.signIn, id) }) })
}

func (l *Local) OnSignOut(fn func()) dispose.Handle {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := l.register()
	l.signOut[id] = fn
	return dispose.Func(func() { l.remove(func() { delete(l.signOut, id) }) })
}

// Listeners returns the number of registered callbacks across all signals.
func (l *Local) Listeners() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.authState) + len(l.signIn) + len(l.signOut)
}

// SignInAnonymously creates a fresh anonymous identity.
func (l *Local) SignInAnonymously() (User, error) {
	u := User{ID: uuid.NewString(), Anonymous: true}
	if err := l.setUser(&u); err != nil {
		return User{}, err
	}
	l.emitAuthState(&u)
	return u, nil
}

// SignIn signs in the account for email. The user id is derived from the
// normalised email address.
func (l *Local) SignIn(email string) (User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return User{}, ErrInvalidEmail
	}

	u := User{
		ID:    uuid.NewSHA1(emailNamespace, []byte(email)).String(),
		Email: email,
	}
	if err := l.setUser(&u); err != nil {
		return User{}, err
	}

	l.emitAuthState(&u)
	l.emitSignIn(u)
	return u, nil
}

// SignOut clears the current user. Signing out while signed out is a no-op.
func (l *Local) SignOut() error {
	if l.CurrentUser() == nil {
		return nil
	}
	if err := l.setUser(nil); err != nil {
		return err
	}

	l.emitAuthState(nil)
	l.emitSignOut()
	return nil
}

func (l *Local) register() uint64 {
	l.nextID++
	return l.nextID
}

func (l *Local) remove(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fn()
}

func (l *Local) setUser(u *User) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.path != "" {
		if err := l.save(u); err != nil {
			return err
		}
	}
	l.user = u
	return nil
}

// save writes the identity file atomically.
func (l *Local) save(u *User) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create identity directory: %w", err)
	}

	data, err := yaml.Marshal(identityFile{User: u})
	if err != nil {
		return fmt.Errorf("marshal identity: %w", err)
	}

	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

func (l *Local) emitAuthState(u *User) {
	l.mu.Lock()
	fns := make([]func(*User), 0, len(l.authState))
	for _, fn := range l.authState {
		fns = append(fns, fn)
	}
	l.mu.Unlock()

	for _, fn := range fns {
		if u == nil {
			fn(nil)
			continue
		}
		cp := *u
		fn(&cp)
	}
}

func (l *Local) emitSignIn(u User) {
	l.mu.Lock()
	fns := make([]func(User), 0, len(l.signIn))
	for _, fn := range l.signIn {
		fns = append(fns, fn)
	}
	l.mu.Unlock()

	for _, fn := range fns {
		fn(u)
	}
}

func (l *Local) emitSignOut() {
	l.mu.Lock()
	fns := make([]func(), 0, len(l.signOut))
	for _, fn := range l.signOut {
		fns = append(fns, fn)
	}
	l.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}
