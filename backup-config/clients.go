package backupconfig

import (
	"github.com/SundaeSwap-finance/ddb-continuous-backup/backup"
	"github.com/SundaeSwap-finance/ddb-continuous-backup/resources"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/firehose"
	"github.com/aws/aws-sdk-go/service/lambda"
)

// Session returns an aws session pinned to the configured region.
func (c Config) Session() *session.Session {
	return session.Must(session.NewSession(aws.NewConfig().WithRegion(c.Region)))
}

// Clients builds the resource capabilities the engine drives. A single
// routing registry backs both bindings and function deployment.
func Clients(s *session.Session) backup.Clients {
	registry := resources.NewLambdaRegistry(lambda.New(s))
	return backup.Clients{
		Tables:    resources.NewDynamoDBTables(dynamodb.New(s)),
		Pipes:     resources.NewFirehosePipes(firehose.New(s)),
		Routing:   registry,
		Functions: registry,
	}
}
