package cmd

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/docserver/docserver/internal/config"
	"github.com/docserver/docserver/internal/embed"
	"github.com/docserver/docserver/internal/lifecycle"
	"github.com/docserver/docserver/internal/output"
	"github.com/docserver/docserver/internal/preflight"
)

func newDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run system diagnostics: disk, memory, file limits, store and upstream reachability",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd)
		},
	}
	return cmd
}

// runDoctor runs the generic system checks plus a store-config and
// upstream-reachability check, the way the teacher's preflight.RunAll
// validated a host before indexing, generalized here from "can we index
// this project" to "can we serve documents from this store."
func runDoctor(cmd *cobra.Command) error {
	w := output.New(cmd.OutOrStdout())

	cfg, err := config.Load(configDir)
	if err != nil {
		w.Errorf("config: %v", err)
		return fmt.Errorf("doctor: invalid configuration")
	}
	w.Successf("config loaded from %s", configDir)

	checker := preflight.New()
	results := []preflight.CheckResult{
		checker.CheckDiskSpace(cfg.Store.Path),
		checker.CheckMemory(),
		checker.CheckFileDescriptors(),
	}

	if cfg.Server.UpstreamContext7URL != "" {
		results = append(results, checkUpstream(cfg.Server.UpstreamContext7URL))
	}

	if embed.Provider(cfg.Embedder.Provider) == embed.ProviderOllama {
		results = append(results, checkOllama(cmd.Context(), cfg.Embedder.OllamaHost, cfg.Embedder.Model))
	}

	for _, r := range results {
		printCheckResult(w, r)
	}

	if checker.HasCriticalFailures(results) {
		return fmt.Errorf("doctor: one or more required checks failed")
	}
	return nil
}

// printCheckResult renders a single preflight result through the shared CLI
// output writer, choosing the success, warning or error style by status.
func printCheckResult(w *output.Writer, r preflight.CheckResult) {
	switch r.Status {
	case preflight.StatusPass:
		w.Successf("%s: %s", r.Name, r.Message)
	case preflight.StatusWarn:
		w.Warningf("%s: %s", r.Name, r.Message)
	default:
		w.Errorf("%s: %s", r.Name, r.Message)
	}
}

// checkUpstream does a lightweight HEAD request against the configured
// Context7 mirror's host to confirm it's reachable, without exercising the
// llms.txt content path itself (that needs a known context7_id).
func checkUpstream(baseURL string) preflight.CheckResult {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Head(baseURL)
	if err != nil {
		return preflight.CheckResult{
			Name:     "upstream_context7",
			Status:   preflight.StatusWarn,
			Message:  fmt.Sprintf("unreachable: %v", err),
			Required: false,
		}
	}
	defer func() { _ = resp.Body.Close() }()

	return preflight.CheckResult{
		Name:     "upstream_context7",
		Status:   preflight.StatusPass,
		Message:  fmt.Sprintf("reachable (status %d)", resp.StatusCode),
		Required: false,
	}
}

// checkOllama reports whether the configured Ollama daemon is installed,
// running, and holds the embedding model the store needs, without starting
// or pulling anything itself (that's EnsureReady's job at serve time).
func checkOllama(ctx context.Context, host, model string) preflight.CheckResult {
	manager := lifecycle.NewOllamaManagerWithHost(host)
	status, err := manager.Status(ctx, model)
	if err != nil {
		return preflight.CheckResult{Name: "ollama", Status: preflight.StatusWarn, Message: err.Error(), Required: false}
	}
	if !status.Installed {
		return preflight.CheckResult{Name: "ollama", Status: preflight.StatusWarn, Message: "not installed: " + lifecycle.InstallInstructions(), Required: false}
	}
	if !status.Running {
		return preflight.CheckResult{Name: "ollama", Status: preflight.StatusWarn, Message: "installed but not running", Required: false}
	}
	if !status.HasModel {
		return preflight.CheckResult{Name: "ollama", Status: preflight.StatusWarn, Message: fmt.Sprintf("running, missing model %s", model), Required: false}
	}
	return preflight.CheckResult{Name: "ollama", Status: preflight.StatusPass, Message: fmt.Sprintf("running with model %s", model), Required: false}
}
