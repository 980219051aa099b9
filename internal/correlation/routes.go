package correlation

import (
	"strings"

	ferrors "github.com/dipmndl/cdk-digital-twin-r2ex/internal/foundation/errors"
)

// Route binds pipelines whose name contains Token to a queue.
type Route struct {
	Token string
	Queue Queue
}

// Routes selects the correlation queue for a pipeline. The first route whose
// token occurs in the pipeline name wins.
type Routes []Route

// For returns the queue serving pipeline. No match is a configuration error:
// the deployment has a pipeline the router was never told about.
func (r Routes) For(pipeline string) (Queue, error) {
	for _, route := range r {
		if route.Token != "" && strings.Contains(pipeline, route.Token) {
			return route.Queue, nil
		}
	}
	return nil, ferrors.ConfigurationError("no correlation queue for pipeline").
		WithContext("pipeline", pipeline).
		Build()
}
