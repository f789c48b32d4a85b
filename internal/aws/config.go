package aws

import (
	"context"
	"fmt"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
)

// DefaultRegion is used when Settings.Region is empty.
const DefaultRegion = "us-east-1"

// Settings selects the region every client talks to and, for LocalStack,
// the endpoint all of them are pointed at.
type Settings struct {
	Region   string
	Endpoint string
}

func (s Settings) region() string {
	if s.Region == "" {
		return DefaultRegion
	}
	return s.Region
}

// baseEndpoint is nil unless an override is configured so the SDK keeps
// resolving real service endpoints.
func (s Settings) baseEndpoint() *string {
	if s.Endpoint == "" {
		return nil
	}
	return sdkaws.String(s.Endpoint)
}

// Load resolves the SDK config (credentials chain, shared profile) for s.
func (s Settings) Load(ctx context.Context) (sdkaws.Config, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(s.region()))
	if err != nil {
		return cfg, fmt.Errorf("load aws config for %s: %w", s.region(), err)
	}
	return cfg, nil
}
