// internal/common/aws/ses.go
package aws

import (
	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
)

// NewSESClient returns a client that satisfies the email worker's SESService.
func NewSESClient(cfg awssdk.Config, optFns ...func(*ses.Options)) *ses.Client {
	return ses.NewFromConfig(cfg, optFns...)
}
