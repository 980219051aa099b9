// Package awsclients builds the AWS service clients once per process.
package awsclients

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/codecommit"
	"github.com/aws/aws-sdk-go-v2/service/codepipeline"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	ferrors "github.com/dipmndl/cdk-digital-twin-r2ex/internal/foundation/errors"
)

// Bundle holds one client per service.
type Bundle struct {
	Config         aws.Config
	SQS            *sqs.Client
	SSM            *ssm.Client
	CodePipeline   *codepipeline.Client
	CodeCommit     *codecommit.Client
	S3             *s3.Client
	S3Presign      *s3.PresignClient
	SecretsManager *secretsmanager.Client
	EC2            *ec2.Client
	SESv2          *sesv2.Client
	DynamoDB       *dynamodb.Client
}

// Load resolves credentials from the default chain. An empty region uses the
// chain's region.
func Load(ctx context.Context, region string) (*Bundle, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "load AWS configuration").
			WithContext("region", region).
			Build()
	}
	return FromConfig(cfg), nil
}

// FromConfig creates every client from cfg.
func FromConfig(cfg aws.Config) *Bundle {
	s3Client := s3.NewFromConfig(cfg)
	return &Bundle{
		Config:         cfg,
		SQS:            sqs.NewFromConfig(cfg),
		SSM:            ssm.NewFromConfig(cfg),
		CodePipeline:   codepipeline.NewFromConfig(cfg),
		CodeCommit:     codecommit.NewFromConfig(cfg),
		S3:             s3Client,
		S3Presign:      s3.NewPresignClient(s3Client),
		SecretsManager: secretsmanager.NewFromConfig(cfg),
		EC2:            ec2.NewFromConfig(cfg),
		SESv2:          sesv2.NewFromConfig(cfg),
		DynamoDB:       dynamodb.NewFromConfig(cfg),
	}
}
