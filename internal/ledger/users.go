package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"barcaixa/internal/domain"
	"barcaixa/internal/store"
	"barcaixa/internal/sync"
	"barcaixa/internal/xid"
)

var ErrBadCredentials = errors.New("invalid username or password")

func (s *Service) Users() []domain.UserAccount {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedValues(s.users, func(u domain.UserAccount) string { return u.ID })
}

func (s *Service) CreateUser(ctx context.Context, req domain.UserCreateRequest) (domain.UserAccount, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.UserAccount{}, err
	}
	if err := s.checkRequest(req); err != nil {
		return domain.UserAccount{}, err
	}

	username := strings.ToLower(strings.TrimSpace(req.Username))

	s.mu.Lock()
	for _, existing := range s.users {
		if existing.Username == username {
			s.mu.Unlock()
			return domain.UserAccount{}, fmt.Errorf("%w: username %q already taken", store.ErrValidation, username)
		}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		s.mu.Unlock()
		return domain.UserAccount{}, fmt.Errorf("hash password: %w", err)
	}
	user := domain.UserAccount{
		ID:       xid.New("usr"),
		Name:     strings.TrimSpace(req.Name),
		Username: username,
		Password: string(hash),
		Role:     req.Role,
	}
	s.users[user.ID] = user
	s.mu.Unlock()

	op, err := sync.UserOp(sync.ActionInsert, user)
	if err != nil {
		s.log.Errorw("outbox op build failed", "entity", sync.EntityUser, "err", err)
	} else {
		s.outbox.Enqueue(ctx, op)
	}
	return user, nil
}

func (s *Service) DeleteUser(ctx context.Context, id string) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	user, ok := s.users[id]
	if !ok {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	if actor, ok := ActorFromContext(ctx); ok && actor.Username == user.Username {
		s.mu.Unlock()
		return fmt.Errorf("%w: cannot delete the account you are logged in as", store.ErrValidation)
	}
	delete(s.users, id)
	s.mu.Unlock()

	s.sessions.Logout(user.Username)
	s.enqueue(ctx, sync.EntityUser, sync.ActionDelete, id, nil)
	return nil
}

// Authenticate implements session.Authenticator. It refreshes the user list
// from the remote store first so a password changed elsewhere takes effect;
// a failing refresh is logged and the local copy is used.
//
// Legacy accounts carry plaintext credentials from the earliest deployments.
// A plaintext match is accepted once and the credential is upgraded to a
// bcrypt hash in place.
func (s *Service) Authenticate(ctx context.Context, username string, password string) (domain.UserAccount, error) {
	if err := s.refreshUsers(ctx); err != nil {
		s.log.Warnw("user refresh failed, authenticating against local copy", "err", err)
	}

	username = strings.ToLower(strings.TrimSpace(username))

	s.mu.RLock()
	var user domain.UserAccount
	found := false
	for _, u := range s.users {
		if u.Username == username {
			user = u
			found = true
			break
		}
	}
	s.mu.RUnlock()
	if !found {
		return domain.UserAccount{}, ErrBadCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err == nil {
		return user, nil
	}
	if !looksHashed(user.Password) && user.Password == password {
		s.upgradeCredential(ctx, user, password)
		return user, nil
	}
	return domain.UserAccount{}, ErrBadCredentials
}

func looksHashed(password string) bool {
	return strings.HasPrefix(password, "$2a$") || strings.HasPrefix(password, "$2b$") || strings.HasPrefix(password, "$2y$")
}

func (s *Service) upgradeCredential(ctx context.Context, user domain.UserAccount, password string) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		s.log.Errorw("credential upgrade failed", "username", user.Username, "err", err)
		return
	}
	user.Password = string(hash)

	s.mu.Lock()
	s.users[user.ID] = user
	s.mu.Unlock()

	op, err := sync.UserOp(sync.ActionUpdate, user)
	if err != nil {
		s.log.Errorw("outbox op build failed", "entity", sync.EntityUser, "err", err)
		return
	}
	s.outbox.Enqueue(ctx, op)
	s.log.Infow("legacy credential upgraded to bcrypt", "username", user.Username)
}

func (s *Service) refreshUsers(ctx context.Context) error {
	users, err := s.remote.ListUsers(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.users = make(map[string]domain.UserAccount, len(users))
	for _, u := range users {
		s.users[u.ID] = u
	}
	s.mu.Unlock()
	return nil
}
