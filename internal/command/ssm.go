package command

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"

	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/foundation"
	ferrors "github.com/dipmndl/cdk-digital-twin-r2ex/internal/foundation/errors"
)

// SSMAPI is the subset of the Systems Manager client used here.
type SSMAPI interface {
	SendCommand(ctx context.Context, in *ssm.SendCommandInput, optFns ...func(*ssm.Options)) (*ssm.SendCommandOutput, error)
	ListCommands(ctx context.Context, in *ssm.ListCommandsInput, optFns ...func(*ssm.Options)) (*ssm.ListCommandsOutput, error)
}

// SSMService runs commands through Systems Manager Run Command with
// CloudWatch output enabled.
type SSMService struct {
	api SSMAPI
}

// NewSSMService wraps api.
func NewSSMService(api SSMAPI) *SSMService {
	return &SSMService{api: api}
}

func (s *SSMService) Send(ctx context.Context, inv Invocation) (string, error) {
	in := &ssm.SendCommandInput{
		InstanceIds:            []string{inv.InstanceID},
		DocumentName:           aws.String(inv.DocumentName),
		Parameters:             inv.Parameters,
		CloudWatchOutputConfig: &types.CloudWatchOutputConfig{CloudWatchOutputEnabled: true},
	}
	if inv.Comment != "" {
		in.Comment = aws.String(inv.Comment)
	}

	out, err := s.api.SendCommand(ctx, in)
	if err != nil {
		return "", ferrors.RemoteServiceError(ferrors.CategoryCommand, "ssm.SendCommand", err).
			WithContext("instance_id", inv.InstanceID)
	}
	if out.Command == nil {
		return "", nil
	}
	return aws.ToString(out.Command.CommandId), nil
}

func (s *SSMService) Lookup(ctx context.Context, commandID, instanceID string) (foundation.Option[string], error) {
	out, err := s.api.ListCommands(ctx, &ssm.ListCommandsInput{
		CommandId:  aws.String(commandID),
		InstanceId: aws.String(instanceID),
	})
	if err != nil {
		return foundation.None[string](), ferrors.RemoteServiceError(ferrors.CategoryCommand, "ssm.ListCommands", err).
			WithContext("command_id", commandID)
	}
	if len(out.Commands) == 0 {
		return foundation.None[string](), nil
	}
	return foundation.Some(string(out.Commands[0].Status)), nil
}
