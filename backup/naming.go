package backup

import "fmt"

// MaxDeliveryPipeNameLength is the firehose limit on delivery stream names.
const MaxDeliveryPipeNameLength = 64

// DeliveryPipeName derives the delivery pipe name from the table name.
//
// Distinct table names sharing their first 64 characters map to the same
// pipe; dynamodb allows names up to 255 characters, so this is a known gap.
func DeliveryPipeName(tableName string) string {
	runes := []rune(tableName)
	if len(runes) <= MaxDeliveryPipeNameLength {
		return tableName
	}
	return string(runes[:MaxDeliveryPipeNameLength])
}

// BucketArn returns the s3 arn for a bucket name, passing arns through.
func BucketArn(bucket string) string {
	if len(bucket) > 4 && bucket[:4] == "arn:" {
		return bucket
	}
	return "arn:aws:s3:::" + bucket
}

// DeliveryPrefix is the s3 prefix archived records for a table land under.
func DeliveryPrefix(prefix, tableName string) string {
	if prefix == "" {
		return tableName + "/"
	}
	return fmt.Sprintf("%v/%v/", prefix, tableName)
}
