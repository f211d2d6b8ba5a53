package main

import (
	"context"
	"fmt"

	"github.com/trezcool/schoolconnect/core/auth"
	"github.com/trezcool/schoolconnect/core/user"
)

func (cli *commandLine) login(ctx context.Context, uname, pwd string, addChild bool) error {
	if addChild {
		if err := cli.deps.CheckChildLimit(ctx, uname); err != nil {
			return err
		}
	}
	p, err := cli.deps.Session.Login(ctx, uname, pwd, addChild)
	if err != nil {
		return err
	}
	cli.printSession(p)
	return nil
}

func (cli *commandLine) autoLogin(ctx context.Context) error {
	p, err := cli.deps.Session.AutoLogin(ctx)
	if err != nil {
		return err
	}
	cli.printSession(p)
	return nil
}

// ensureSession logs the current child in when no session is active yet.
func (cli *commandLine) ensureSession(ctx context.Context) error {
	if cli.deps.Session.Current() != nil {
		return nil
	}
	_, err := cli.deps.Session.AutoLogin(ctx)
	return err
}

func (cli *commandLine) listUsers(ctx context.Context) error {
	creds, err := cli.deps.Store.Credentials(ctx)
	if err != nil {
		return err
	}
	if len(creds) == 0 {
		fmt.Fprintln(cli.out, "No stored children")
		return nil
	}

	var current string
	if cur, err := cli.deps.Store.CurrentUser(ctx); err == nil {
		current = cur.Username
	} else if err != user.ErrNotFound {
		return err
	}
	for _, cred := range creds {
		mark := " "
		if cred.Username == current {
			mark = "*"
		}
		label := cred.FullName
		if cred.IsDefault {
			label += " (default)"
		}
		fmt.Fprintf(cli.out, "%s %-20s %s\n", mark, cred.Username, label)
	}
	return nil
}

func (cli *commandLine) switchUser(ctx context.Context, uname string) error {
	p, err := cli.deps.Session.SwitchUserWithData(ctx, uname)
	if err != nil {
		return err
	}
	cli.printSession(p)
	return nil
}

func (cli *commandLine) removeUser(ctx context.Context, uname string) error {
	if err := cli.deps.RemoveUser(ctx, uname); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "Removed %s\n", user.NormalizeUsername(uname))
	return nil
}

func (cli *commandLine) logout(ctx context.Context) error {
	if err := cli.deps.Session.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(cli.out, "Logged out")
	return nil
}

func (cli *commandLine) reset(ctx context.Context) error {
	if err := cli.deps.Session.CompleteLogout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(cli.out, "Every stored child was removed from this device")
	return nil
}

func (cli *commandLine) printSession(p *auth.Payload) {
	name := p.StudentName
	if name == "" {
		name = p.Username
	}
	fmt.Fprintf(cli.out, "%s: logged in as %s\n", p.Message, name)
}
