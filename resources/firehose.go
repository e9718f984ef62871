package resources

import (
	"context"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/firehose"
	"github.com/aws/aws-sdk-go/service/firehose/firehoseiface"
)

type FirehosePipes struct {
	api firehoseiface.FirehoseAPI
}

func NewFirehosePipes(api firehoseiface.FirehoseAPI) *FirehosePipes {
	return &FirehosePipes{api: api}
}

func (f *FirehosePipes) Describe(ctx context.Context, name string) (DeliveryPipe, error) {
	out, err := f.api.DescribeDeliveryStreamWithContext(ctx, &firehose.DescribeDeliveryStreamInput{
		DeliveryStreamName: aws.String(name),
	})
	if err != nil {
		return DeliveryPipe{}, Classify(err, PipeResource, name)
	}
	desc := out.DeliveryStreamDescription
	if desc == nil || aws.StringValue(desc.DeliveryStreamARN) == "" {
		return DeliveryPipe{}, Errorf(NotFound, PipeResource, name, "describe returned no delivery stream arn")
	}
	return DeliveryPipe{
		Name:   name,
		Arn:    aws.StringValue(desc.DeliveryStreamARN),
		Status: aws.StringValue(desc.DeliveryStreamStatus),
	}, nil
}

func (f *FirehosePipes) Create(ctx context.Context, spec PipeSpec) (string, error) {
	out, err := f.api.CreateDeliveryStreamWithContext(ctx, &firehose.CreateDeliveryStreamInput{
		DeliveryStreamName: aws.String(spec.Name),
		DeliveryStreamType: aws.String(firehose.DeliveryStreamTypeDirectPut),
		S3DestinationConfiguration: &firehose.S3DestinationConfiguration{
			RoleARN:   aws.String(spec.RoleArn),
			BucketARN: aws.String(spec.BucketArn),
			Prefix:    aws.String(spec.Prefix),
			BufferingHints: &firehose.BufferingHints{
				SizeInMBs:         aws.Int64(spec.SizeMB),
				IntervalInSeconds: aws.Int64(spec.IntervalSeconds),
			},
			CompressionFormat: aws.String(firehose.CompressionFormatGzip),
		},
	})
	if err != nil {
		return "", Classify(err, PipeResource, spec.Name)
	}
	return aws.StringValue(out.DeliveryStreamARN), nil
}

func (f *FirehosePipes) Delete(ctx context.Context, name string) error {
	_, err := f.api.DeleteDeliveryStreamWithContext(ctx, &firehose.DeleteDeliveryStreamInput{
		DeliveryStreamName: aws.String(name),
	})
	return Classify(err, PipeResource, name)
}
