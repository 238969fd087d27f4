// Package health reports whether the gateway components are ready to serve.
package health

import (
	"encoding/json"
	"net/http"
	"os"

	"github.com/pokt-network/poktroll/pkg/polylog"

	"github.com/poroburu/ic-cosmos/provider"
)

const (
	// imageTagEnvVar is set from a Docker build argument.
	imageTagEnvVar  = "IMAGE_TAG"
	defaultImageTag = "development"
)

type healthCheckStatus string

const (
	statusReady healthCheckStatus = "ready"
	// statusNotReady is reported while any component is down, e.g. the
	// registry state could not be restored or saved.
	statusNotReady healthCheckStatus = "not_ready"
)

type (
	// Checker aggregates the readiness of the gateway components.
	Checker struct {
		Logger     polylog.Logger
		Components []Check
		// ClusterReporter lists the configured clusters. Optional.
		ClusterReporter ClusterReporter
	}

	// Check is implemented by every component with a readiness state.
	Check interface {
		Name() string
		IsAlive() bool
	}

	// ClusterReporter is satisfied by the provider registry.
	ClusterReporter interface {
		Clusters() []provider.Cluster
	}
)

// healthCheckJSON is the body of GET /healthz.
type healthCheckJSON struct {
	Status             healthCheckStatus  `json:"status"`
	ImageTag           string             `json:"imageTag"`
	ReadyStates        map[string]bool    `json:"readyStates,omitempty"`
	ConfiguredClusters []provider.Cluster `json:"configuredClusters,omitempty"`
}

// HealthzHandler answers 200 when every component is alive and 503
// otherwise. The body is a healthCheckJSON in both cases.
func (c *Checker) HealthzHandler(w http.ResponseWriter, _ *http.Request) {
	report := c.report()

	body, err := json.Marshal(report)
	if err != nil {
		c.Logger.Error().Err(err).Msg("error marshaling health check response")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	code := http.StatusOK
	if report.Status != statusReady {
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(body); err != nil {
		c.Logger.Error().Err(err).Msg("error writing health check response")
	}
}

func (c *Checker) report() healthCheckJSON {
	report := healthCheckJSON{
		Status:      statusReady,
		ImageTag:    imageTag(),
		ReadyStates: make(map[string]bool, len(c.Components)),
	}
	for _, component := range c.Components {
		alive := component.IsAlive()
		report.ReadyStates[component.Name()] = alive
		if !alive {
			report.Status = statusNotReady
		}
	}
	if c.ClusterReporter != nil {
		report.ConfiguredClusters = c.ClusterReporter.Clusters()
	}
	return report
}

func imageTag() string {
	if tag := os.Getenv(imageTagEnvVar); tag != "" {
		return tag
	}
	return defaultImageTag
}
