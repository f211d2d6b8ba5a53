package auth

import (
	"context"
	"sync"
	"time"

	"github.com/trezcool/schoolconnect/core"
	"github.com/trezcool/schoolconnect/core/school"
	"github.com/trezcool/schoolconnect/core/user"
)

const (
	defaultTimeout  = 30 * time.Second
	defaultPageSize = 10
	filterAll       = "All"
)

type (
	// CredentialStore is the part of user.Store a Session relies on.
	CredentialStore interface {
		StoreCredential(ctx context.Context, username, password string, isDefault bool, fullName string) (user.Credential, error)
		Credentials(ctx context.Context) ([]user.Credential, error)
		Credential(ctx context.Context, username string) (user.Credential, error)
		CurrentUser(ctx context.Context) (user.Credential, error)
		SetCurrentUser(ctx context.Context, cred user.Credential) error
		ClearCurrentUser(ctx context.Context) error
		ClearGenericKeys(ctx context.Context) error
		ResetAll(ctx context.Context) error
	}

	Options struct {
		Store    CredentialStore
		Backend  school.Backend
		Bus      *core.EventBus // optional
		Logger   core.Logger
		PageSize int           // size of the content page requested with the login
		Timeout  time.Duration // bound of the whole authentication call, across host fallbacks
	}

	// Session is the AuthSession: it authenticates children against the backend and keeps the
	// current user pointer in step with the established session.
	Session struct {
		store   CredentialStore
		backend school.Backend
		bus     *core.EventBus
		logger  core.Logger
		opts    Options

		mu      sync.RWMutex
		state   State
		current *Payload
	}
)

var nowFunc = time.Now // mockable

func NewSession(opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = core.NopLogger{}
	}
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	return &Session{
		store:   opts.Store,
		backend: opts.Backend,
		bus:     opts.Bus,
		logger:  opts.Logger,
		opts:    opts,
	}
}

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Current returns a copy of the established session, or nil.
func (s *Session) Current() *Payload {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.clone()
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Session) publish(ctx context.Context, evType core.EventType, p *Payload) {
	if s.bus == nil {
		return
	}
	ev := core.Event{Type: evType}
	if p != nil {
		ev.Username = p.Username
		ev.Data = p.clone()
	}
	s.bus.Publish(ctx, ev)
}

// Login authenticates `username`, stores the credential (default unless isAddChild) and makes it current.
// Every error is a *Failure.
func (s *Session) Login(ctx context.Context, username, password string, isAddChild bool) (*Payload, error) {
	return s.login(ctx, username, password, isAddChild, core.EventSessionStarted)
}

func (s *Session) login(ctx context.Context, username, password string, isAddChild bool, evType core.EventType) (*Payload, error) {
	form := LoginForm{Username: core.CleanString(username), Password: core.CleanString(password)}
	if err := form.Validate(); err != nil {
		return nil, s.fail(newFailure(NoCredentialsEntered, msgNoCredentials, err))
	}

	s.setState(Connecting)
	if err := s.backend.Probe(ctx); err != nil {
		s.logger.Warn("backend unreachable", err)
		return nil, s.fail(failureFrom(err))
	}

	s.setState(Authenticating)
	authCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	req := school.NewLoginRequest(form.Username, form.Password, 0, s.opts.PageSize, filterAll, true, nowFunc())
	resp, err := s.backend.ValidateLogin(authCtx, req)
	if err != nil {
		s.logger.Warn("validating login", err, map[string]interface{}{"username": form.Username})
		return nil, s.fail(failureFrom(err))
	}
	if !resp.Succeeded() {
		msg := resp.ResultMsg
		if msg == "" {
			msg = msgInvalidLogin
		}
		return nil, s.fail(newFailure(ServerRejected, msg, nil))
	}

	payload := &Payload{
		Username:         user.NormalizeUsername(form.Username),
		OriginalUserName: form.Username,
		OriginalPassword: form.Password,
		IsDefault:        !isAddChild,
		StudentName:      resp.ProfileString("studentName"),
		Message:          resp.ResultMsg,
		Profile:          resp.Profile,
		List:             resp.List,
	}
	if payload.Message == "" {
		payload.Message = defaultSuccessResult
	}

	// the session is valid even if the device cannot remember it
	cred, err := s.store.StoreCredential(ctx, form.Username, form.Password, payload.IsDefault, payload.StudentName)
	if err != nil {
		s.logger.Error("storing credential after login", err, payload)
		cred = payload.Credential()
	}
	if err := s.store.SetCurrentUser(ctx, cred); err != nil {
		s.logger.Error("setting current user after login", err, payload)
	}

	s.mu.Lock()
	s.state = Succeeded
	s.current = payload
	s.mu.Unlock()

	s.logger.Info("logged in", payload)
	s.publish(ctx, evType, payload)
	return payload.clone(), nil
}

func (s *Session) fail(f *Failure) *Failure {
	s.setState(Failed)
	return f
}

// Logout clears the current user pointer and generic keys; every stored credential is kept.
func (s *Session) Logout(ctx context.Context) error {
	prev := s.Current()
	if err := s.store.ClearCurrentUser(ctx); err != nil {
		return failureFrom(err)
	}
	if err := s.store.ClearGenericKeys(ctx); err != nil {
		return failureFrom(err)
	}
	s.reset()
	s.publish(ctx, core.EventSessionEnded, prev)
	return nil
}

// CompleteLogout forgets every stored user.
func (s *Session) CompleteLogout(ctx context.Context) error {
	prev := s.Current()
	if err := s.store.ResetAll(ctx); err != nil {
		return failureFrom(err)
	}
	s.reset()
	s.publish(ctx, core.EventSessionEnded, prev)
	return nil
}

func (s *Session) reset() {
	s.mu.Lock()
	s.state = Idle
	s.current = nil
	s.mu.Unlock()
}

// SwitchUser only moves the current user pointer; nothing is re-authenticated.
func (s *Session) SwitchUser(ctx context.Context, cred user.Credential) error {
	if err := s.store.SetCurrentUser(ctx, cred); err != nil {
		return failureFrom(err)
	}
	return nil
}

// SwitchUserWithData moves the pointer to `username` and logs in again with its stored password.
// If that login fails the pointer is moved back, so pointer and session never disagree.
func (s *Session) SwitchUserWithData(ctx context.Context, username string) (*Payload, error) {
	cred, err := s.store.Credential(ctx, username)
	if err != nil {
		if err == user.ErrNotFound {
			return nil, newFailure(UserNotFound, msgUserNotFound, err)
		}
		return nil, failureFrom(err)
	}
	if !cred.HasPassword() {
		return nil, newFailure(InvalidStoredCredential, msgInvalidStored, nil)
	}

	prev, prevErr := s.store.CurrentUser(ctx)
	if err := s.SwitchUser(ctx, cred); err != nil {
		return nil, err
	}

	payload, err := s.login(ctx, cred.Username, cred.Password, !cred.IsDefault, core.EventSessionSwitched)
	if err != nil {
		s.rollbackPointer(ctx, prev, prevErr)
		return nil, err
	}
	return payload, nil
}

func (s *Session) rollbackPointer(ctx context.Context, prev user.Credential, prevErr error) {
	var err error
	if prevErr == nil {
		err = s.store.SetCurrentUser(ctx, prev)
	} else {
		err = s.store.ClearCurrentUser(ctx)
	}
	if err != nil {
		s.logger.Error("rolling back current user pointer", err, prev.Pointer())
	}
}

// AutoLogin silently logs the current user in again. A NoStoredCredentials failure means the
// caller should show the login form.
func (s *Session) AutoLogin(ctx context.Context) (*Payload, error) {
	cur, err := s.store.CurrentUser(ctx)
	if err != nil {
		if err == user.ErrNotFound {
			return nil, newFailure(NoStoredCredentials, msgNoStoredUser, err)
		}
		return nil, failureFrom(err)
	}
	if !cur.HasPassword() {
		return nil, newFailure(NoStoredCredentials, msgNoStoredUser, nil)
	}
	return s.login(ctx, cur.Username, cur.Password, !cur.IsDefault, core.EventSessionStarted)
}

// ListStoredUsers never fails: storage errors are logged and yield an empty list.
func (s *Session) ListStoredUsers(ctx context.Context) []user.Credential {
	creds, err := s.store.Credentials(ctx)
	if err != nil {
		s.logger.Error("listing stored users", err)
		return []user.Credential{}
	}
	if creds == nil {
		creds = []user.Credential{}
	}
	return creds
}
