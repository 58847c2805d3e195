package session

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"barcaixa/internal/domain"
)

type staticAuth struct {
	user domain.UserAccount
	err  error
}

func (a staticAuth) Authenticate(_ context.Context, _ string, _ string) (domain.UserAccount, error) {
	return a.user, a.err
}

func testManager() *Manager {
	return NewManager(zap.NewNop().Sugar())
}

func TestStateMachineProgression(t *testing.T) {
	m := testManager()
	auth := staticAuth{user: domain.UserAccount{ID: "usr-1", Username: "admin", Role: domain.RoleAdmin}}

	sess, err := m.Login(context.Background(), auth, "admin", "secret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if sess.State() != StateAuthenticated {
		t.Fatalf("state after login = %v, want Authenticated", sess.State())
	}

	event := domain.Event{ID: "ev1", Name: "BAR 2025", Status: domain.EventStatusActive}
	if err := sess.SelectEvent(event); err != nil {
		t.Fatalf("select event: %v", err)
	}
	if sess.State() != StateEventSelected {
		t.Fatalf("state after select = %v, want EventSelected", sess.State())
	}
	if id, ok := sess.CurrentEventID(); !ok || id != "ev1" {
		t.Fatalf("current event = %q/%v", id, ok)
	}

	sess.ExitEvent()
	if sess.State() != StateAuthenticated {
		t.Fatalf("exit event must return to Authenticated")
	}

	m.Logout("admin")
	if sess.State() != StateUnauthenticated {
		t.Fatalf("logout must clear the session")
	}
	if _, ok := m.Get("admin"); ok {
		t.Fatalf("logged-out session must not be resolvable")
	}
}

func TestLoginFailurePropagates(t *testing.T) {
	m := testManager()
	wantErr := errors.New("invalid credentials")

	_, err := m.Login(context.Background(), staticAuth{err: wantErr}, "admin", "wrong")
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected auth error, got %v", err)
	}
	if _, ok := m.Get("admin"); ok {
		t.Fatalf("failed login must not create a session")
	}
}

func TestSelectEventRequiresUser(t *testing.T) {
	var sess Session
	err := sess.SelectEvent(domain.Event{ID: "ev1"})
	if !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
}

func TestFreshLoginResetsEventScope(t *testing.T) {
	m := testManager()
	auth := staticAuth{user: domain.UserAccount{ID: "usr-1", Username: "admin", Role: domain.RoleAdmin}}

	sess, _ := m.Login(context.Background(), auth, "admin", "secret")
	_ = sess.SelectEvent(domain.Event{ID: "ev1"})

	again, _ := m.Login(context.Background(), auth, "admin", "secret")
	if again != sess {
		t.Fatalf("relogin should reuse the per-user session")
	}
	if again.State() != StateAuthenticated {
		t.Fatalf("relogin must clear the event scope")
	}
}

func TestDetachEventOnlyTouchesMatchingSessions(t *testing.T) {
	m := testManager()
	a, _ := m.Login(context.Background(), staticAuth{user: domain.UserAccount{Username: "a", Role: domain.RoleUser}}, "a", "x")
	b, _ := m.Login(context.Background(), staticAuth{user: domain.UserAccount{Username: "b", Role: domain.RoleUser}}, "b", "x")

	_ = a.SelectEvent(domain.Event{ID: "ev1"})
	_ = b.SelectEvent(domain.Event{ID: "ev2"})

	m.DetachEvent("ev1")

	if a.State() != StateAuthenticated {
		t.Fatalf("session scoped to the deleted event must be detached")
	}
	if id, _ := b.CurrentEventID(); id != "ev2" {
		t.Fatalf("other sessions must keep their scope")
	}
}
