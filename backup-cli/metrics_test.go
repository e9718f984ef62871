package backupcli

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/cloudwatch"
	"github.com/aws/aws-sdk-go/service/cloudwatch/cloudwatchiface"
	"github.com/tj/assert"
)

type fakeCloudWatch struct {
	cloudwatchiface.CloudWatchAPI
	inputs []*cloudwatch.PutMetricDataInput
}

func (f *fakeCloudWatch) PutMetricDataWithContext(_ aws.Context, input *cloudwatch.PutMetricDataInput, _ ...request.Option) (*cloudwatch.PutMetricDataOutput, error) {
	f.inputs = append(f.inputs, input)
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func TestMetrics(t *testing.T) {
	t.Run("event carries table and service dimensions", func(t *testing.T) {
		api := &fakeCloudWatch{}
		metrics := NewMetrics(Service{Name: "ensure-backup", Version: "abc"}, api)

		metrics.Event(context.Background(), TableProvisionedMetric, map[DimensionName]string{TableNameDimension: "orders"})

		assert.Len(t, api.inputs, 1)
		datum := api.inputs[0].MetricData[0]
		assert.Equal(t, "TableProvisioned", aws.StringValue(datum.MetricName))
		assert.Equal(t, cloudwatch.StandardUnitCount, aws.StringValue(datum.Unit))

		got := map[string]string{}
		for _, d := range datum.Dimensions {
			got[aws.StringValue(d.Name)] = aws.StringValue(d.Value)
		}
		assert.Equal(t, map[string]string{"Table": "orders", "Service": "ensure-backup", "Version": "abc"}, got)
	})

	t.Run("empty dimension values are dropped", func(t *testing.T) {
		dimensions := mapToDimensions(map[DimensionName]string{TableNameDimension: "", OperationNameDimension: "provision"})
		assert.Len(t, dimensions, 1)
		assert.Equal(t, "OperationName", aws.StringValue(dimensions[0].Name))
	})

	t.Run("nil client is a no-op", func(t *testing.T) {
		var metrics Metrics
		metrics.Event(context.Background(), TableFailedMetric)
	})
}
