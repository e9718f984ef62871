package backupforwarder

import (
	backupcli "github.com/SundaeSwap-finance/ddb-continuous-backup/backup-cli"
	"github.com/urfave/cli/v2"
)

var ForwarderOpts struct {
	TableName string
}

var TableNameFlag = backupcli.StringFlag("table-name", "The table whose stream to replay into its delivery pipe, in console mode", &ForwarderOpts.TableName)

var ForwarderFlags = []cli.Flag{
	TableNameFlag,
}
