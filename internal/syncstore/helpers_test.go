package syncstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/hay-kot/agenda/internal/core/identity"
	"github.com/hay-kot/agenda/internal/core/remote"
	"github.com/hay-kot/agenda/pkg/dispose"
)

var fixedNow = time.Date(2024, 5, 14, 9, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func signedIn(t *testing.T) *identity.Local {
	t.Helper()
	ident, err := identity.NewLocal("")
	require.NoError(t, err)
	_, err = ident.SignIn("ada@example.com")
	require.NoError(t, err)
	return ident
}

func signedOut(t *testing.T) *identity.Local {
	t.Helper()
	ident, err := identity.NewLocal("")
	require.NoError(t, err)
	return ident
}

func nopLogger() zerolog.Logger { return zerolog.Nop() }

// manualRemote hands listeners back to the test so deliveries can be
// reordered or replayed.
type manualRemote struct {
	mu        sync.Mutex
	listeners []remote.Listener
	disposed  int
	merges    []map[string]any

	// mergeErr is returned by every Merge; onMerge runs before it returns.
	mergeErr error
	onMerge  func()
}

func (m *manualRemote) Merge(_ context.Context, _, _, _ string, fields map[string]any) error {
	m.mu.Lock()
	m.merges = append(m.merges, fields)
	hook, err := m.onMerge, m.mergeErr
	m.mu.Unlock()

	if hook != nil {
		hook()
	}
	return err
}

func (m *manualRemote) Listen(_ context.Context, _ remote.Query, fn remote.Listener) (dispose.Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
	return dispose.Func(func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.disposed++
	}), nil
}

func (m *manualRemote) listener(i int) remote.Listener {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listeners[i]
}

func reservationDoc(id, status string) remote.Document {
	return remote.Document{ID: id, Fields: map[string]any{
		remote.FieldStatus:    status,
		remote.FieldTimestamp: fixedNow,
	}}
}

func bookmarkDoc(id string, flag bool) remote.Document {
	return remote.Document{ID: id, Fields: map[string]any{
		remote.FieldBookmarked: flag,
		remote.FieldTimestamp:  fixedNow,
	}}
}
