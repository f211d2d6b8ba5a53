package shared

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/schoolconnect/core"
	"github.com/trezcool/schoolconnect/core/user"
)

const msgRemoveActiveChild = "Switch to another child before removing this one"

// CheckChildLimit refuses to add a child once Users.Max are stored on the device.
// Logging in again as a stored child is always allowed.
func (d *Deps) CheckChildLimit(ctx context.Context, username string) error {
	limit := d.Conf.Users.Max
	if limit <= 0 {
		return nil
	}
	if _, err := d.Store.Credential(ctx, username); err == nil {
		return nil
	} else if err != user.ErrNotFound {
		return errors.Wrap(err, "finding stored credential")
	}

	count, err := d.Store.Count(ctx)
	if err != nil {
		return errors.Wrap(err, "counting stored credentials")
	}
	if count >= limit {
		msg := fmt.Sprintf("You can add at most %d children on this device", limit)
		return core.NewValidationError(errors.New(msg), core.FieldError{Field: "add_child", Error: msg})
	}
	return nil
}

// RemoveUser forgets a stored child and its cached data. The child of the active session
// cannot be removed.
func (d *Deps) RemoveUser(ctx context.Context, username string) error {
	uname := user.NormalizeUsername(username)
	if p := d.Session.Current(); p != nil && p.Username == uname {
		return core.NewValidationError(errors.New(msgRemoveActiveChild), core.FieldError{Field: "username", Error: msgRemoveActiveChild})
	}
	if _, err := d.Store.Credential(ctx, uname); err != nil {
		return err
	}
	if err := d.Store.RemoveCredential(ctx, uname); err != nil {
		return errors.Wrap(err, "removing credential")
	}
	if err := d.Store.ClearUserData(ctx, uname); err != nil {
		d.Logger.Warn("clearing removed user data", err, map[string]interface{}{"username": uname})
	}
	return nil
}
