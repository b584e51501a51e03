// Command optimizer is the CLI transport named in spec §6: a thin shim
// that reads a JSON bundle from a file, runs one Optimize call, and
// writes a JSON AllocationResult to a second file. It is explicitly
// outside the core's scope (spec §1) — any equivalent surface (HTTP,
// gRPC, library call) would serve equally well.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/llm-d-incubation/gpu-alloc-optimizer/internal/logger"
	"github.com/llm-d-incubation/gpu-alloc-optimizer/internal/metrics"
	"github.com/llm-d-incubation/gpu-alloc-optimizer/internal/optimizer"
	"github.com/llm-d-incubation/gpu-alloc-optimizer/internal/types"
)

// statefullFlag, matching the teacher's stateless-vs-statefull naming
// from pkg/rest, runs a long-lived metrics server instead of a
// one-shot file conversion.
const statefullFlag = "-F"

// request is the JSON wire shape of one optimize call, field names taken
// directly from the parameter list in spec §6.
type request struct {
	Variants      map[string]types.Variants `json:"variants"`
	Demand        types.Rates               `json:"demand"`
	Supply        types.Supply              `json:"supply"`
	Cost          types.Cost                `json:"cost"`
	ScaleToZero   []string                  `json:"scale_to_zero"`
	CurrentLayout types.ReplicaCounts       `json:"current_layout"`
	ChangePenalty float64                   `json:"change_penalty"`
	Homogeneous   bool                      `json:"homogeneous"`
	MaxReplicas   types.ReplicaCounts       `json:"max_replicas"`
	MinReplicas   types.ReplicaCounts       `json:"min_replicas"`
}

func (r request) toBundle() types.Bundle {
	return types.Bundle{
		Variants:      r.Variants,
		Demand:        r.Demand,
		Supply:        r.Supply,
		Cost:          r.Cost,
		ScaleToZero:   types.NewScaleToZero(r.ScaleToZero),
		CurrentLayout: r.CurrentLayout,
		MaxReplicas:   r.MaxReplicas,
		MinReplicas:   r.MinReplicas,
		Flags:         types.Flags{ChangePenalty: r.ChangePenalty, Homogeneous: r.Homogeneous},
	}
}

// errorEnvelope is written in place of a result on any I/O or encoding
// failure, per spec §6's transport contract.
type errorEnvelope struct {
	Error     string `json:"error"`
	IsSuccess bool   `json:"is_success"`
}

func main() {
	if len(os.Args) > 1 && os.Args[1] == statefullFlag {
		runStatefull()
		return
	}
	runStateless()
}

func runStateless() {
	if len(os.Args) != 3 {
		fmt.Fprintln(os.Stderr, "Usage: optimizer <input_file> <output_file>")
		os.Exit(1)
	}
	inputPath, outputPath := os.Args[1], os.Args[2]

	if err := convertFile(inputPath, outputPath); err != nil {
		logger.Log.Errorw("optimize failed", "error", err)
		os.Exit(1)
	}
}

func convertFile(inputPath, outputPath string) error {
	raw, err := os.ReadFile(inputPath)
	if err != nil {
		writeError(outputPath, err)
		return err
	}

	var req request
	if err := json.Unmarshal(raw, &req); err != nil {
		writeError(outputPath, err)
		return err
	}

	result, err := optimizer.Optimize(context.Background(), req.toBundle())
	if err != nil {
		writeError(outputPath, err)
		return err
	}

	out, err := json.MarshalIndent(result, "", "    ")
	if err != nil {
		writeError(outputPath, err)
		return err
	}
	if err := os.WriteFile(outputPath, out, 0o644); err != nil {
		return err
	}
	return nil
}

func writeError(outputPath string, cause error) {
	out, err := json.MarshalIndent(errorEnvelope{Error: cause.Error(), IsSuccess: false}, "", "    ")
	if err != nil {
		return
	}
	_ = os.WriteFile(outputPath, out, 0o644)
}

// runStatefull serves /metrics for longer-running deployments that want
// the optimizer's solve-duration and infeasibility counters scraped
// continuously, reusing the teacher's stateless/statefull split without
// its queueing-model REST surface.
func runStatefull() {
	registry := prometheus.NewRegistry()
	if err := metrics.InitMetrics(registry); err != nil {
		logger.Log.Fatalw("failed to init metrics", "error", err)
	}

	addr := os.Getenv("METRICS_ADDR")
	if addr == "" {
		addr = ":9090"
	}
	http.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	logger.Log.Infow("optimizer metrics server listening", "addr", addr)
	if err := http.ListenAndServe(addr, nil); err != nil {
		logger.Log.Fatalw("metrics server failed", "error", err)
	}
}
