package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"

	"golang.org/x/term"

	"github.com/trezcool/schoolconnect/apps/shared"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	deps *shared.Deps
	out  io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  login -username USERNAME [-add-child] - log a child in (the password is prompted)")
	fmt.Fprintln(cli.out, "  autologin                             - log the current child in again")
	fmt.Fprintln(cli.out, "  users                                 - list the children stored on this device")
	fmt.Fprintln(cli.out, "  switch -username USERNAME             - switch to another stored child")
	fmt.Fprintln(cli.out, "  remove -username USERNAME             - forget a stored child")
	fmt.Fprintln(cli.out, "  logout                                - end the session, keep the stored children")
	fmt.Fprintln(cli.out, "  reset                                 - forget every stored child")
	fmt.Fprintln(cli.out, "  feed [-category CATEGORY] [-pages N]  - print the content feed")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS...]             - run a goose command on the SQL storage")
	fmt.Fprintln(cli.out, "  shell                                 - start an interactive shell")
}

func (cli *commandLine) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cli.out)
	return fs
}

func (cli *commandLine) run(ctx context.Context, args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	loginCmd := cli.newFlagSet("login")
	loginUname := loginCmd.String("username", "", "The child's username. The password will be prompted next.")
	loginAddChild := loginCmd.Bool("add-child", false, "Add the child next to the stored ones instead of as the default.")

	switchCmd := cli.newFlagSet("switch")
	switchUname := switchCmd.String("username", "", "The stored child to switch to.")

	removeCmd := cli.newFlagSet("remove")
	removeUname := removeCmd.String("username", "", "The stored child to forget.")

	feedCmd := cli.newFlagSet("feed")
	feedCategory := feedCmd.String("category", "all", "One of all, alerts, circulars, homework, moments.")
	feedPages := feedCmd.Int("pages", 1, "How many pages to load.")

	switch args[1] {
	case "login":
		if err := loginCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *loginUname == "" {
			loginCmd.Usage()
			return errHelp
		}
		fmt.Fprint(cli.out, "Enter password:")
		pwd, err := readPasswordFunc(int(syscall.Stdin))
		fmt.Fprintln(cli.out)
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			loginCmd.Usage()
			return errHelp
		}
		return cli.login(ctx, *loginUname, string(pwd), *loginAddChild)
	case "autologin":
		return cli.autoLogin(ctx)
	case "users":
		return cli.listUsers(ctx)
	case "switch":
		if err := switchCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *switchUname == "" {
			switchCmd.Usage()
			return errHelp
		}
		return cli.switchUser(ctx, *switchUname)
	case "remove":
		if err := removeCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *removeUname == "" {
			removeCmd.Usage()
			return errHelp
		}
		return cli.removeUser(ctx, *removeUname)
	case "logout":
		return cli.logout(ctx)
	case "reset":
		return cli.reset(ctx)
	case "feed":
		if err := feedCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *feedPages < 1 {
			feedCmd.Usage()
			return errHelp
		}
		return cli.feed(ctx, *feedCategory, *feedPages)
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "shell":
		return cli.shell(ctx)
	default:
		cli.printUsage()
		return errHelp
	}
}
