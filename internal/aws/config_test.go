package aws

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingsLoad_DefaultRegion(t *testing.T) {
	t.Setenv("AWS_REGION", "")

	cfg, err := Settings{}.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DefaultRegion, cfg.Region)
}

func TestSettingsLoad_ExplicitRegion(t *testing.T) {
	cfg, err := Settings{Region: "eu-west-1"}.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "eu-west-1", cfg.Region)
}

func TestSettings_BaseEndpoint(t *testing.T) {
	assert.Nil(t, Settings{}.baseEndpoint())

	ep := Settings{Endpoint: "http://localhost:4566"}.baseEndpoint()
	require.NotNil(t, ep)
	assert.Equal(t, "http://localhost:4566", *ep)
}

func TestNewClients(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")

	c, err := NewClients(context.Background(), Settings{Endpoint: "http://localhost:4566"})
	require.NoError(t, err)
	assert.NotNil(t, c.DynamoDB)
	assert.NotNil(t, c.SQS)
	assert.NotNil(t, c.CloudWatch)
}
