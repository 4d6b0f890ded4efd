package awsconfig

import (
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticCredentialsFromOptions(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "env-id")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "env-secret")

	id, secret, token, ok := SessionOptions{AccessKeyID: "id", SecretAccessKey: "secret", SessionToken: "tok"}.StaticCredentials()
	require.True(t, ok)
	assert.Equal(t, []string{"id", "secret", "tok"}, []string{id, secret, token})
}

func TestStaticCredentialsFromEnvironment(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "env-id")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "env-secret")
	t.Setenv("AWS_SESSION_TOKEN", "env-token")

	id, secret, token, ok := SessionOptions{}.StaticCredentials()
	require.True(t, ok)
	assert.Equal(t, []string{"env-id", "env-secret", "env-token"}, []string{id, secret, token})
}

func TestStaticCredentialsAbsent(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "")

	_, _, _, ok := SessionOptions{}.StaticCredentials()
	assert.False(t, ok)
}

func TestConfig(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "")

	cfg := SessionOptions{Region: "eu-west-1", Endpoint: "http://localhost:4566", ForcePathStyle: true}.Config()
	assert.Equal(t, "eu-west-1", aws.StringValue(cfg.Region))
	assert.Equal(t, "http://localhost:4566", aws.StringValue(cfg.Endpoint))
	assert.True(t, aws.BoolValue(cfg.S3ForcePathStyle))
	assert.Nil(t, cfg.Credentials)
	assert.Equal(t, client.DefaultRetryer{NumMaxRetries: DefaultMaxRetries}, cfg.Retryer)

	withKeys := SessionOptions{AccessKeyID: "a", SecretAccessKey: "b", MaxRetries: 2}.Config()
	require.NotNil(t, withKeys.Credentials)
	v, err := withKeys.Credentials.Get()
	require.NoError(t, err)
	assert.Equal(t, "a", v.AccessKeyID)
	assert.Equal(t, client.DefaultRetryer{NumMaxRetries: 2}, withKeys.Retryer)
}

func TestNewSession(t *testing.T) {
	sess, err := NewSession(SessionOptions{Region: "us-east-1", AccessKeyID: "a", SecretAccessKey: "b"})
	require.NoError(t, err)
	assert.Equal(t, "us-east-1", aws.StringValue(sess.Config.Region))
}
