// Package backupgql serves the read-only backup status api over graphql,
// locally or as a lambda behind api gateway.
package backupgql

import (
	backupcli "github.com/SundaeSwap-finance/ddb-continuous-backup/backup-cli"
)

func AllowIntrospection() bool {
	return backupcli.CommonOpts.Env != "prod" || backupcli.CommonOpts.Console
}

type Resolver interface {
	Schema() string
	Config() *BaseConfig
}
