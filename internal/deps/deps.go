package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// Requirement names an external binary the frame decoder shells out to.
type Requirement struct {
	Name        string
	Command     string
	Description string
	// ConfigKey is the config setting that overrides Command.
	ConfigKey string
	Optional  bool
}

// Status reports whether a requirement resolved on this host.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	// Path is the resolved executable when Available.
	Path   string
	Detail string
}

var lookPath = exec.LookPath

// CheckBinaries resolves each requirement against PATH or as a direct path.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		resolved, err := lookPath(cmd)
		if err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			if req.ConfigKey != "" {
				status.Detail += fmt.Sprintf(" (set %s)", req.ConfigKey)
			}
			results = append(results, status)
			continue
		}
		status.Available = true
		status.Path = resolved
		results = append(results, status)
	}
	return results
}

// Missing returns the required statuses that are unavailable.
func Missing(statuses []Status) []Status {
	var missing []Status
	for _, s := range statuses {
		if !s.Available && !s.Optional {
			missing = append(missing, s)
		}
	}
	return missing
}
