package resources

import (
	"strings"

	"github.com/aws/aws-sdk-go/aws/arn"
)

// TableFromStreamArn extracts the table name from a dynamodb stream arn of
// the form arn:aws:dynamodb:region:account:table/<name>/stream/<label>.
func TableFromStreamArn(streamArn string) (string, bool) {
	parsed, err := arn.Parse(streamArn)
	if err != nil || parsed.Service != "dynamodb" {
		return "", false
	}
	parts := strings.Split(parsed.Resource, "/")
	if len(parts) < 2 || parts[0] != "table" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// UnqualifiedFunctionArn strips a trailing version or alias qualifier, as
// returned by publishing calls, leaving arn:aws:lambda:region:account:function:name.
func UnqualifiedFunctionArn(functionArn string) string {
	parts := strings.Split(functionArn, ":")
	if len(parts) > 7 {
		return strings.Join(parts[:7], ":")
	}
	return functionArn
}
