// Command backup-tables reconciles every table, or a whitelist of tables, in
// one pass and publishes a report of the outcome.
package main

import (
	"log"
	"os"

	"github.com/SundaeSwap-finance/ddb-continuous-backup/backup"
	backupbulk "github.com/SundaeSwap-finance/ddb-continuous-backup/backup-bulk"
	backupcli "github.com/SundaeSwap-finance/ddb-continuous-backup/backup-cli"
	backupconfig "github.com/SundaeSwap-finance/ddb-continuous-backup/backup-config"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/cloudwatch"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/urfave/cli/v2"
)

var service = backupcli.NewService(backupbulk.ServiceName)

func main() {
	flags := append(backupcli.CommonFlags, backupconfig.ConfigFlags...)
	app := backupcli.App(
		service,
		action,
		append(
			flags,
			backupbulk.BulkFlags...,
		)...,
	)
	err := app.Run(os.Args)
	if err != nil {
		log.Fatalln(err)
	}
}

func action(_ *cli.Context) error {
	config, err := backupconfig.Resolve(session.Must(session.NewSession(aws.NewConfig())))
	if err != nil {
		return err
	}

	var (
		dry     = backupcli.CommonOpts.Dry
		logger  = backupcli.Logger(service)
		s       = config.Session()
		clients = backupconfig.Clients(s)
		metrics = backupcli.NewMetrics(service, cloudwatch.New(s))
		s3Api   = s3.New(s)
		engine  = backup.New(clients, config.Engine(dry), logger, backup.WithMetrics(metrics))
	)

	filter := config.Filter()
	if err := filter.Err(); err != nil {
		logger.Warn().Err(err).Str("pattern", filter.Pattern()).Msg("invalid table name pattern, every table is eligible")
	}

	reconciler := &backupbulk.Reconciler{
		Engine:      engine,
		Tables:      clients.Tables,
		Filter:      filter,
		Logger:      logger,
		Concurrency: backupbulk.BulkOpts.Concurrency,
		Dry:         dry,
	}
	publisher := backupbulk.NewPublisher(service, logger, s3Api, backupbulk.BulkOpts.ReportBucket, backupbulk.BulkOpts.OutFile, dry)

	handler := backupbulk.NewHandler(service, logger, reconciler, engine, publisher, metrics, s3Api)
	handler.Whitelist = config.Whitelist()
	return handler.Start()
}
