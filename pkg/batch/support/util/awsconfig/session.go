// Package awsconfig builds AWS SDK sessions shared by the S3 storage adapter and the DynamoDB
// watermark store.
package awsconfig

import (
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/client"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"

	"github.com/tigerroll/deltaloader/pkg/batch/support/util/logger"
)

// DefaultMaxRetries is used when SessionOptions.MaxRetries is zero.
const DefaultMaxRetries = 10

// SessionOptions describes how to reach AWS (or an AWS-compatible endpoint).
type SessionOptions struct {
	Region          string
	Endpoint        string
	Profile         string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	MaxRetries      int
	ForcePathStyle  bool
}

// StaticCredentials returns the explicitly configured key pair, falling back to
// AWS_ACCESS_KEY_ID / AWS_SECRET_ACCESS_KEY / AWS_SESSION_TOKEN. ok is false when neither
// source has a complete key pair, in which case the SDK's default chain should be used.
func (o SessionOptions) StaticCredentials() (id, secret, token string, ok bool) {
	id, secret, token = o.AccessKeyID, o.SecretAccessKey, o.SessionToken
	if id == "" && secret == "" {
		id = os.Getenv("AWS_ACCESS_KEY_ID")
		secret = os.Getenv("AWS_SECRET_ACCESS_KEY")
		token = os.Getenv("AWS_SESSION_TOKEN")
	}
	return id, secret, token, id != "" && secret != ""
}

// Config converts the options into an aws.Config.
func (o SessionOptions) Config() *aws.Config {
	retries := o.MaxRetries
	if retries <= 0 {
		retries = DefaultMaxRetries
	}
	config := &aws.Config{
		// retry on ephemeral AWS errors
		Retryer: client.DefaultRetryer{NumMaxRetries: retries},
	}
	if o.Region != "" {
		config.Region = aws.String(o.Region)
	}
	if o.Endpoint != "" {
		config.Endpoint = aws.String(o.Endpoint)
	}
	if o.ForcePathStyle {
		config.S3ForcePathStyle = aws.Bool(true)
	}

	if id, secret, token, ok := o.StaticCredentials(); ok {
		config.Credentials = credentials.NewStaticCredentials(id, secret, token)
	} else if o.Profile != "" {
		config.Credentials = credentials.NewSharedCredentials("", o.Profile)
	}
	return config
}

// NewSession creates an AWS session from the options.
func NewSession(o SessionOptions) (*session.Session, error) {
	if o.Region != "" {
		logger.Debugf("Overriding default AWS region: %s", o.Region)
	}
	if o.Endpoint != "" {
		logger.Debugf("Using custom AWS endpoint: %s", o.Endpoint)
	}
	sess, err := session.NewSession(o.Config())
	if err != nil {
		return nil, fmt.Errorf("creating AWS session: %w", err)
	}
	return sess, nil
}
