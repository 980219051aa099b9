package awsclients

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/codecommit"
	"github.com/aws/aws-sdk-go-v2/service/codepipeline"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/stretchr/testify/assert"

	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/command"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/correlation/sqsqueue"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/ledger"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/notify/logresolve"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/notify/mail"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/notify/secrets"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/pipeline"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/source"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/worker"
)

// The SDK clients must satisfy the narrow interfaces each package accepts.
var (
	_ sqsqueue.API              = (*sqs.Client)(nil)
	_ command.SSMAPI            = (*ssm.Client)(nil)
	_ pipeline.API              = (*codepipeline.Client)(nil)
	_ source.CodeCommitAPI      = (*codecommit.Client)(nil)
	_ logresolve.S3API          = (*s3.Client)(nil)
	_ logresolve.Presigner      = (*s3.PresignClient)(nil)
	_ secrets.SecretsManagerAPI = (*secretsmanager.Client)(nil)
	_ worker.EC2API             = (*ec2.Client)(nil)
	_ mail.SESAPI               = (*sesv2.Client)(nil)
	_ ledger.DynamoAPI          = (*dynamodb.Client)(nil)
)

func TestFromConfigBuildsEveryClient(t *testing.T) {
	b := FromConfig(aws.Config{Region: "ap-south-1"})

	assert.Equal(t, "ap-south-1", b.Config.Region)
	assert.NotNil(t, b.SQS)
	assert.NotNil(t, b.SSM)
	assert.NotNil(t, b.CodePipeline)
	assert.NotNil(t, b.CodeCommit)
	assert.NotNil(t, b.S3)
	assert.NotNil(t, b.S3Presign)
	assert.NotNil(t, b.SecretsManager)
	assert.NotNil(t, b.EC2)
	assert.NotNil(t, b.SESv2)
	assert.NotNil(t, b.DynamoDB)
}
