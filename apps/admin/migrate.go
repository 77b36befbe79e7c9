package main

import (
	"context"
)

func (cli *commandLine) migrate(ctx context.Context, args []string) error {
	if cli.migrateFunc == nil {
		return errNoMigration
	}
	return cli.migrateFunc(ctx, args[0], args[1:]...)
}
