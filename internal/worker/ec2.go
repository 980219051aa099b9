package worker

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/ec2"

	ferrors "github.com/dipmndl/cdk-digital-twin-r2ex/internal/foundation/errors"
)

// EC2API is the subset of the EC2 client used by EC2Controller.
type EC2API interface {
	StartInstances(ctx context.Context, in *ec2.StartInstancesInput, optFns ...func(*ec2.Options)) (*ec2.StartInstancesOutput, error)
	StopInstances(ctx context.Context, in *ec2.StopInstancesInput, optFns ...func(*ec2.Options)) (*ec2.StopInstancesOutput, error)
	DescribeInstances(ctx context.Context, in *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
}

// EC2Controller manages builders that are EC2 instances.
type EC2Controller struct {
	api EC2API
}

// NewEC2Controller wraps api.
func NewEC2Controller(api EC2API) *EC2Controller {
	return &EC2Controller{api: api}
}

func (c *EC2Controller) Start(ctx context.Context, instanceID string) error {
	if _, err := c.api.StartInstances(ctx, &ec2.StartInstancesInput{InstanceIds: []string{instanceID}}); err != nil {
		return ferrors.RemoteServiceError(ferrors.CategoryWorkflow, "ec2.StartInstances", err).
			WithContext("instance_id", instanceID)
	}
	return nil
}

func (c *EC2Controller) Stop(ctx context.Context, instanceID string) error {
	if _, err := c.api.StopInstances(ctx, &ec2.StopInstancesInput{InstanceIds: []string{instanceID}}); err != nil {
		return ferrors.RemoteServiceError(ferrors.CategoryWorkflow, "ec2.StopInstances", err).
			WithContext("instance_id", instanceID)
	}
	return nil
}

func (c *EC2Controller) State(ctx context.Context, instanceID string) (State, error) {
	out, err := c.api.DescribeInstances(ctx, &ec2.DescribeInstancesInput{InstanceIds: []string{instanceID}})
	if err != nil {
		return StateFailed, ferrors.RemoteServiceError(ferrors.CategoryWorkflow, "ec2.DescribeInstances", err).
			WithContext("instance_id", instanceID)
	}
	for _, r := range out.Reservations {
		for _, inst := range r.Instances {
			if inst.State != nil {
				return MapNative(string(inst.State.Name)), nil
			}
		}
	}
	return StateFailed, ferrors.NewError(ferrors.CategoryNotFound, "builder instance not found").
		WithContext("instance_id", instanceID).
		Build()
}
