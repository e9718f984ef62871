package resources

import (
	"context"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
)

type DynamoDBTables struct {
	api dynamodbiface.DynamoDBAPI
}

func NewDynamoDBTables(api dynamodbiface.DynamoDBAPI) *DynamoDBTables {
	return &DynamoDBTables{api: api}
}

func (d *DynamoDBTables) Describe(ctx context.Context, tableName string) (Table, error) {
	out, err := d.api.DescribeTableWithContext(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(tableName),
	})
	if err != nil {
		return Table{}, Classify(err, TableResource, tableName)
	}
	if out.Table == nil {
		return Table{}, Errorf(Fatal, TableResource, tableName, "describe returned no table")
	}

	table := Table{
		Name:      tableName,
		Status:    aws.StringValue(out.Table.TableStatus),
		StreamArn: aws.StringValue(out.Table.LatestStreamArn),
	}
	if spec := out.Table.StreamSpecification; spec != nil {
		table.StreamEnabled = aws.BoolValue(spec.StreamEnabled)
	}
	return table, nil
}

func (d *DynamoDBTables) EnableStream(ctx context.Context, tableName string) error {
	_, err := d.api.UpdateTableWithContext(ctx, &dynamodb.UpdateTableInput{
		TableName: aws.String(tableName),
		StreamSpecification: &dynamodb.StreamSpecification{
			StreamEnabled:  aws.Bool(true),
			StreamViewType: aws.String(dynamodb.StreamViewTypeNewAndOldImages),
		},
	})
	return Classify(err, TableResource, tableName)
}

func (d *DynamoDBTables) List(ctx context.Context, startAfter string) ([]string, string, error) {
	input := &dynamodb.ListTablesInput{}
	if startAfter != "" {
		input.ExclusiveStartTableName = aws.String(startAfter)
	}
	out, err := d.api.ListTablesWithContext(ctx, input)
	if err != nil {
		return nil, "", Classify(err, TableResource, "*")
	}
	return aws.StringValueSlice(out.TableNames), aws.StringValue(out.LastEvaluatedTableName), nil
}
