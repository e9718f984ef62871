package backupbulk

import (
	backupcli "github.com/SundaeSwap-finance/ddb-continuous-backup/backup-cli"
	"github.com/urfave/cli/v2"
)

var BulkOpts struct {
	Deprovision  bool
	Redeploy     bool
	Concurrency  int
	ReportBucket string
	OutFile      string
	GetLatest    bool
}

var DeprovisionFlag = backupcli.BoolFlag("deprovision", "Remove backup scaffolding from the tables instead of provisioning it", &BulkOpts.Deprovision)
var RedeployFlag = backupcli.BoolFlag("redeploy", "Push the configured artifact to the routing function before reconciling", &BulkOpts.Redeploy)
var ConcurrencyFlag = backupcli.IntFlag("concurrency", "How many tables to reconcile at once", &BulkOpts.Concurrency, 1)
var ReportBucketFlag = backupcli.StringFlag("report-bucket", "The bucket to write the reconcile report to", &BulkOpts.ReportBucket)
var OutFileFlag = backupcli.StringFlag("out-file", "The file to write the report to, when running in dry mode", &BulkOpts.OutFile)
var GetLatestFlag = backupcli.BoolFlag("get-latest", "Print the latest report from the bucket instead of reconciling", &BulkOpts.GetLatest)

var BulkFlags = []cli.Flag{
	DeprovisionFlag,
	RedeployFlag,
	ConcurrencyFlag,
	ReportBucketFlag,
	OutFileFlag,
	GetLatestFlag,
}
