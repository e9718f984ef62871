package cursordao

import (
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
)

// Build checkpoint dao for the given environment
func Build(api dynamodbiface.DynamoDBAPI, env string) *DAO {
	return New(api, TableName(env))
}

func TableName(env string) string {
	tableName := env + "-ddb-continuous-backup--cursor"
	return tableName
}
