package ingress

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Job commands.
const (
	CommandRun    = "run"
	CommandStatus = "status"
)

// Timeout accepts a JSON number or string of seconds.
type Timeout int

func (t *Timeout) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*t = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	*t = Timeout(n)
	return nil
}

func (t Timeout) String() string { return strconv.Itoa(int(t)) }

// JobRequest is a command-run or command-status request.
type JobRequest struct {
	Command            string  `json:"command"`
	InstanceID         string  `json:"instanceId"`
	CommandID          string  `json:"commandId,omitempty"`
	CommandText        string  `json:"commandText,omitempty"`
	Timeout            Timeout `json:"timeout,omitempty"`
	WorkingDirectory   string  `json:"workingDirectory,omitempty"`
	InputBucketName    string  `json:"inputBucketName,omitempty"`
	InputObjectKey     string  `json:"inputObjectKey,omitempty"`
	OutputArtifactPath string  `json:"outputArtifactPath,omitempty"`
	OutputBucketName   string  `json:"outputBucketName,omitempty"`
	OutputObjectKey    string  `json:"outputObjectKey,omitempty"`
	ExecutionID        string  `json:"executionId,omitempty"`
	PipelineArn        string  `json:"pipelineArn,omitempty"`
	PipelineName       string  `json:"pipelineName,omitempty"`
	// JobID is the pipeline job the workflow reports its result to.
	JobID string `json:"jobId,omitempty"`
}

// Validate checks the fields required by the command.
func (j JobRequest) Validate() error {
	switch j.Command {
	case CommandRun:
		return check(KindJobRequest,
			requiredField{"instanceId", j.InstanceID},
			requiredField{"commandText", j.CommandText},
			requiredField{"pipelineName", j.PipelineName},
			requiredField{"executionId", j.ExecutionID},
		)
	case CommandStatus:
		return check(KindJobRequest,
			requiredField{"commandId", j.CommandID},
			requiredField{"instanceId", j.InstanceID},
		)
	case "":
		return missing(KindJobRequest, []string{"command"})
	default:
		return malformed(KindJobRequest, errUnknownCommand(j.Command))
	}
}

type errUnknownCommand string

func (e errUnknownCommand) Error() string { return "unknown command " + strconv.Quote(string(e)) }

// DecodeJobRequest decodes and validates a job request.
func DecodeJobRequest(data []byte) (JobRequest, error) {
	var j JobRequest
	if err := json.Unmarshal(data, &j); err != nil {
		return JobRequest{}, malformed(KindJobRequest, err)
	}
	if err := j.Validate(); err != nil {
		return JobRequest{}, err
	}
	return j, nil
}
