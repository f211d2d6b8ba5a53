package auth

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/trezcool/schoolconnect/core"
	"github.com/trezcool/schoolconnect/core/user"
)

// user-facing messages
const (
	msgNoCredentials     = "Please enter both username and password"
	msgInvalidLogin      = "Invalid username or password"
	msgNetwork           = "Network error. Please check your internet connection and try again."
	msgTimeout           = "The server took too long to respond. Please try again."
	msgServer            = "Server error. Please try again later."
	msgUserNotFound      = "This user is not stored on this device"
	msgInvalidStored     = "The stored credential for this user is incomplete. Please log in again."
	msgNoStoredUser      = "No stored credentials"
	msgStorage           = "Could not access the device storage"
	defaultSuccessResult = "Login successful"
)

type State int

const (
	Idle State = iota
	Connecting
	Authenticating
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Authenticating:
		return "authenticating"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "idle"
	}
}

type FailureKind int

const (
	NoCredentialsEntered FailureKind = iota + 1
	NetworkUnreachable
	Timeout
	ServerRejected
	UserNotFound
	InvalidStoredCredential
	NoStoredCredentials
	StorageFailed
)

func (k FailureKind) String() string {
	switch k {
	case NoCredentialsEntered:
		return "no_credentials_entered"
	case NetworkUnreachable:
		return "network_unreachable"
	case Timeout:
		return "timeout"
	case ServerRejected:
		return "server_rejected"
	case UserNotFound:
		return "user_not_found"
	case InvalidStoredCredential:
		return "invalid_stored_credential"
	case NoStoredCredentials:
		return "no_stored_credentials"
	case StorageFailed:
		return "storage_failed"
	default:
		return "unknown"
	}
}

// Failure is every error returned by Session. Err carries the core error category (see core.KindOf).
type Failure struct {
	Kind    FailureKind
	Message string
	Err     error
}

func (f *Failure) Error() string { return f.Message }

func (f *Failure) Unwrap() error { return f.Err }

// AsFailure finds the *Failure in err's chain.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

func newFailure(kind FailureKind, msg string, err error) *Failure {
	if err == nil {
		switch kind {
		case NoCredentialsEntered, InvalidStoredCredential:
			err = core.NewValidationError(errors.New(msg))
		case NetworkUnreachable:
			err = core.NewNetworkError(errors.New(msg), false)
		case Timeout:
			err = core.NewNetworkError(errors.New(msg), true)
		case ServerRejected:
			err = core.NewServerError(msg, 0)
		case UserNotFound, NoStoredCredentials:
			err = user.ErrNotFound
		case StorageFailed:
			err = core.NewStorageError(msg, errors.New(msg))
		}
	}
	return &Failure{Kind: kind, Message: msg, Err: err}
}

// failureFrom converts a core error into a Failure.
func failureFrom(err error) *Failure {
	if f, ok := AsFailure(err); ok {
		return f
	}
	switch core.KindOf(err) {
	case core.KindValidation:
		return newFailure(NoCredentialsEntered, msgNoCredentials, err)
	case core.KindTimeout:
		return newFailure(Timeout, msgTimeout, err)
	case core.KindNetwork:
		return newFailure(NetworkUnreachable, msgNetwork, err)
	case core.KindServer:
		return newFailure(ServerRejected, msgServer, err)
	case core.KindNotFound:
		return newFailure(UserNotFound, msgUserNotFound, err)
	case core.KindStorage:
		return newFailure(StorageFailed, msgStorage, err)
	default:
		return newFailure(NetworkUnreachable, msgNetwork, err)
	}
}

// LoginForm is what the user typed.
type LoginForm struct {
	Username string `json:"username" validate:"notblank"`
	Password string `json:"password" validate:"notblank"`
}

func (f LoginForm) Validate() error {
	return core.ValidateStruct(f, msgNoCredentials)
}

// Payload is an established session: the child's profile as returned by the backend, the
// first content page when the backend embedded one, and the credential used for every
// further content request (the backend has no session token).
type Payload struct {
	Username         string
	OriginalUserName string
	OriginalPassword string
	IsDefault        bool
	StudentName      string
	Message          string
	Profile          map[string]json.RawMessage
	List             []json.RawMessage
}

// Field returns a profile field as a string.
func (p *Payload) Field(key string) string {
	raw, ok := p.Profile[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// HasList reports whether the login response embedded the first content page.
func (p *Payload) HasList() bool {
	return p.List != nil
}

// Credential is the stored form of the session's login.
func (p *Payload) Credential() user.Credential {
	return user.Credential{
		Username:  p.Username,
		Password:  p.OriginalPassword,
		IsDefault: p.IsDefault,
		FullName:  p.StudentName,
	}
}

func (p *Payload) LogPerson() (id, username, email string) {
	return p.Username, p.Username, ""
}

// MarshalJSON flattens the profile next to the session fields. The password is never encoded.
func (p Payload) MarshalJSON() ([]byte, error) {
	fields := make(map[string]interface{}, len(p.Profile)+5)
	for k, v := range p.Profile {
		fields[k] = v
	}
	fields["username"] = p.Username
	fields["originalUserName"] = p.OriginalUserName
	fields["isDefault"] = p.IsDefault
	fields["studentName"] = p.StudentName
	if p.List != nil {
		fields["LIST"] = p.List
	}
	return json.Marshal(fields)
}

// clone copies p (shallow for raw profile values, which are never mutated).
func (p *Payload) clone() *Payload {
	if p == nil {
		return nil
	}
	c := *p
	c.Profile = make(map[string]json.RawMessage, len(p.Profile))
	for k, v := range p.Profile {
		c.Profile[k] = v
	}
	if p.List != nil {
		c.List = append([]json.RawMessage{}, p.List...)
	}
	return &c
}
