package secrets

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"

	ferrors "github.com/dipmndl/cdk-digital-twin-r2ex/internal/foundation/errors"
)

// SecretsManagerAPI is the subset of the Secrets Manager client used here.
type SecretsManagerAPI interface {
	GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// SecretsManagerSource reads a JSON secret string.
type SecretsManagerSource struct {
	api SecretsManagerAPI
	arn string
}

// NewSecretsManagerSource reads the secret identified by arn.
func NewSecretsManagerSource(api SecretsManagerAPI, arn string) *SecretsManagerSource {
	return &SecretsManagerSource{api: api, arn: arn}
}

func (s *SecretsManagerSource) GraphCredentials(ctx context.Context) (GraphCredentials, error) {
	out, err := s.api.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{SecretId: aws.String(s.arn)})
	if err != nil {
		return GraphCredentials{}, ferrors.RemoteServiceError(ferrors.CategoryAuth, "secretsmanager.GetSecretValue", err)
	}
	return decode([]byte(aws.ToString(out.SecretString)), "secretsmanager")
}
