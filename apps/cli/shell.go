package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/pkg/errors"

	"github.com/trezcool/schoolconnect/core/auth"
)

const shellPrompt = "schoolconnect> "

func (cli *commandLine) shell(ctx context.Context) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          shellPrompt,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return errors.Wrap(err, "initializing readline")
	}
	defer rl.Close()

	cli.updatePrompt(rl)
	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			fmt.Fprintln(cli.out, "Use 'exit' or 'quit' to exit the shell.")
			continue
		} else if err == io.EOF {
			return nil
		} else if err != nil {
			return errors.Wrap(err, "reading line")
		}

		if quit := cli.exec(ctx, line); quit {
			return nil
		}
		cli.updatePrompt(rl)
	}
}

// exec runs one shell line against the in-process session. It reports whether the shell should end.
func (cli *commandLine) exec(ctx context.Context, line string) (quit bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	switch fields[0] {
	case "exit", "quit":
		return true
	case "help":
		cli.printUsage()
		return false
	case "shell":
		fmt.Fprintln(cli.out, "Already in the shell")
		return false
	}

	if err := cli.run(ctx, append([]string{"schoolconnect"}, fields...)); err != nil && err != errHelp {
		fmt.Fprintf(cli.out, "error: %s\n", errorMessage(err))
	}
	return false
}

func (cli *commandLine) updatePrompt(rl *readline.Instance) {
	if p := cli.deps.Session.Current(); p != nil {
		rl.SetPrompt(p.Username + "@" + shellPrompt)
		return
	}
	rl.SetPrompt(shellPrompt)
}

// errorMessage is the user-facing text of err.
func errorMessage(err error) string {
	if f, ok := auth.AsFailure(err); ok {
		return f.Message
	}
	return err.Error()
}
