package main

import (
	"github.com/pkg/errors"

	"github.com/trezcool/schoolconnect/storage/database"
)

var (
	gooseRunFunc = database.RunGoose // mockable

	errNoDatabase = errors.New("migrations need the sqlite3 or postgres storage engine")
)

func (cli *commandLine) migrate(args []string) error {
	if cli.deps.DB == nil {
		return errNoDatabase
	}
	arguments := make([]string, 0)
	if len(args) > 1 {
		arguments = append(arguments, args[1:]...)
	}
	return gooseRunFunc(args[0], cli.deps.DB, arguments...)
}
