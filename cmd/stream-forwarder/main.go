// Command stream-forwarder is the routing function every backed up table's
// stream is bound to. It writes stream records into the table's delivery
// pipe.
package main

import (
	"log"
	"os"

	backupcli "github.com/SundaeSwap-finance/ddb-continuous-backup/backup-cli"
	backupforwarder "github.com/SundaeSwap-finance/ddb-continuous-backup/backup-forwarder"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodbstreams"
	"github.com/aws/aws-sdk-go/service/firehose"
	"github.com/urfave/cli/v2"
)

var service = backupcli.NewService("stream-forwarder")

func main() {
	app := backupcli.App(
		service,
		action,
		append(
			backupcli.CommonFlags,
			backupforwarder.ForwarderFlags...,
		)...,
	)
	err := app.Run(os.Args)
	if err != nil {
		log.Fatalln(err)
	}
}

func action(_ *cli.Context) error {
	s := session.Must(session.NewSession(aws.NewConfig()))
	forwarder := backupforwarder.New(firehose.New(s), backupcli.Logger(service))
	handler := backupforwarder.NewHandler(service, forwarder, dynamodbstreams.New(s))

	return handler.Start()
}
