package embeddings

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	lcembeddings "github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/embeddings/bedrock"

	"github.com/fyrsmithlabs/codectx/internal/config"
)

// newBedrockEmbedder builds an embedder for AWS Bedrock embedding models
// (Titan, Cohere). Credentials come from the standard AWS chain.
func newBedrockEmbedder(ctx context.Context, cfg *config.Config, model string) (lcembeddings.Embedder, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.AWS.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.AWS.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return bedrock.NewBedrock(
		bedrock.WithModel(model),
		bedrock.WithClient(bedrockruntime.NewFromConfig(awsCfg)),
	)
}
