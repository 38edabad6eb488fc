// internal/common/aws/sns.go
package aws

import (
	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// NewSNSClient returns a client that satisfies the alert worker's SNSService.
func NewSNSClient(cfg awssdk.Config, optFns ...func(*sns.Options)) *sns.Client {
	return sns.NewFromConfig(cfg, optFns...)
}
