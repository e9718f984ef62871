package backupevents

import (
	backupcli "github.com/SundaeSwap-finance/ddb-continuous-backup/backup-cli"
	"github.com/urfave/cli/v2"
)

var EventsOpts struct {
	StreamName string
	Replay     bool
}

var StreamNameFlag = backupcli.StringFlag("stream-name", "The kinesis stream of cloudtrail log payloads to consume in console mode", &EventsOpts.StreamName)
var ReplayFlag = backupcli.BoolFlag("replay", "Whether to replay from the beginning of the stream when no checkpoint exists, or start from the next message", &EventsOpts.Replay)

var EventsFlags = []cli.Flag{
	StreamNameFlag,
	ReplayFlag,
}
