package config

import (
	"errors"
	"fmt"
	"strings"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModeScheduler runs the cron scheduler that triggers sync jobs.
	ServiceModeScheduler ServiceMode = "scheduler"
	// ServiceModeReaper runs the job run reaper for orphan detection and cleanup.
	ServiceModeReaper ServiceMode = "reaper"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{
		ServiceModeScheduler,
		ServiceModeReaper,
	}
}

// ParseServices parses a comma-delimited string of service names and returns the enabled services.
// It validates that all service names are valid and returns an error if any are invalid.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	services := make(map[ServiceMode]bool)

	if servicesStr == "" {
		return services, errors.New("at least one service must be specified")
	}

	parts := strings.Split(servicesStr, ",")
	for _, part := range parts {
		serviceName := strings.TrimSpace(part)
		if serviceName == "" {
			continue
		}

		mode := ServiceMode(serviceName)
		switch mode {
		case ServiceModeScheduler, ServiceModeReaper:
			services[mode] = true
		default:
			return nil, fmt.Errorf("invalid service %q (valid: %v)", serviceName, ValidServiceModes())
		}
	}

	if len(services) == 0 {
		return services, errors.New("at least one service must be specified")
	}

	return services, nil
}
