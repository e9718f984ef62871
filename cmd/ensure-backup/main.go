// Command ensure-backup provisions backups for tables as they are created and
// tears them down as they are deleted.
package main

import (
	"log"
	"os"

	"github.com/SundaeSwap-finance/ddb-continuous-backup/backup"
	backupcli "github.com/SundaeSwap-finance/ddb-continuous-backup/backup-cli"
	backupconfig "github.com/SundaeSwap-finance/ddb-continuous-backup/backup-config"
	backupevents "github.com/SundaeSwap-finance/ddb-continuous-backup/backup-events"
	"github.com/SundaeSwap-finance/ddb-continuous-backup/backup-events/cursordao"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/cloudwatch"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/urfave/cli/v2"
)

var service = backupcli.NewService("ensure-backup")

func main() {
	flags := append(backupcli.CommonFlags, backupconfig.ConfigFlags...)
	app := backupcli.App(
		service,
		action,
		append(
			flags,
			backupevents.EventsFlags...,
		)...,
	)
	err := app.Run(os.Args)
	if err != nil {
		log.Fatalln(err)
	}
}

func action(c *cli.Context) error {
	config, err := backupconfig.Resolve(session.Must(session.NewSession(aws.NewConfig())))
	if err != nil {
		return err
	}

	logger := backupcli.Logger(service)
	filter := config.Filter()
	if err := filter.Err(); err != nil {
		logger.Warn().Err(err).Str("pattern", filter.Pattern()).Msg("invalid table name pattern, every table is eligible")
	}

	s := config.Session()
	metrics := backupcli.NewMetrics(service, cloudwatch.New(s))
	engine := backup.New(backupconfig.Clients(s), config.Engine(backupcli.CommonOpts.Dry), logger, backup.WithMetrics(metrics))
	dispatcher := &backupevents.Dispatcher{
		Engine: engine,
		Filter: filter,
		Logger: logger,
	}

	handler := backupevents.NewHandler(service, logger, dispatcher,
		backupevents.WithMetrics(metrics),
		backupevents.WithCheckpoints(cursordao.Build(dynamodb.New(s), backupcli.CommonOpts.Env)),
	)
	return handler.Start(c)
}
