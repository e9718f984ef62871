// Command backup-status serves a read-only graphql api describing how far
// each table is from being backed up.
package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"time"

	"github.com/SundaeSwap-finance/ddb-continuous-backup/backup"
	backupbulk "github.com/SundaeSwap-finance/ddb-continuous-backup/backup-bulk"
	backupcli "github.com/SundaeSwap-finance/ddb-continuous-backup/backup-cli"
	backupconfig "github.com/SundaeSwap-finance/ddb-continuous-backup/backup-config"
	backupgql "github.com/SundaeSwap-finance/ddb-continuous-backup/backup-gql"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/urfave/cli/v2"
)

var service = backupcli.NewSubpathService("backup-status")

func main() {
	flags := append(backupcli.CommonFlags, backupconfig.ConfigFlags...)
	app := backupcli.App(
		service,
		action,
		append(
			flags,
			backupcli.PortFlag(5001),
			backupbulk.ReportBucketFlag,
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

	s := config.Session()
	clients := backupconfig.Clients(s)
	gqlConfig := backupgql.NewConfig(service)
	// read only
	engine := backup.New(clients, config.Engine(true), gqlConfig.Logger)

	var latest backupgql.LatestReport
	if bucket := backupbulk.BulkOpts.ReportBucket; bucket != "" {
		s3Api := s3.New(s)
		latest = func(ctx context.Context) (string, json.RawMessage, error) {
			data, key, err := backupbulk.GetRawAsOf(ctx, s3Api, bucket, backupbulk.ServiceName, backupbulk.ReportName, time.Now().UTC())
			if err != nil {
				return "", nil, err
			}
			return key, data, nil
		}
	}

	resolver := backupgql.NewStatusResolver(gqlConfig, engine, clients.Tables, config.Filter(), latest)
	return backupgql.Webserver(resolver)
}
