package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"vidsentry/internal/config"
	"vidsentry/internal/deps"
	"vidsentry/internal/detector"
)

const detectorCheckTimeout = 5 * time.Second

// CheckDetector verifies that the inference service answers its health probe.
// It uses a short timeout and a single attempt.
func CheckDetector(ctx context.Context, cfg config.Detector) Result {
	const name = "Detector"

	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return Result{Name: name, Detail: "missing endpoint"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, detectorCheckTimeout)
	defer cancel()

	client := detector.NewHTTPClient(detector.Config{
		Endpoint:       endpoint,
		Model:          cfg.Model,
		TimeoutSeconds: int(detectorCheckTimeout / time.Second),
	})
	if err := client.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (%s)", client.Endpoint(), summarizeDetectorError(err))}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (reachable)", client.Endpoint())}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSystemDeps evaluates the external binaries the decoder needs.
// Both the daemon and the CLI status command use this.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	if cfg == nil {
		return nil
	}
	return deps.CheckBinaries(deps.DecoderRequirements(cfg.Decoder.FFmpegBinary, cfg.Decoder.FFprobeBinary))
}

func summarizeDetectorError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out"
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return "unreachable"
	}
	return err.Error()
}
