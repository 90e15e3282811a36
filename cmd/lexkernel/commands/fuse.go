package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/rmj95fgb7x-art/lex-kernel-oracle/errors"
	"github.com/rmj95fgb7x-art/lex-kernel-oracle/kernel"
)

// FuseCmd performs one-shot batch fusion of source series from a JSON file.
var FuseCmd = &cobra.Command{
	Use:   "fuse <sources.json>",
	Short: "Fuse a batch of source series into one signal",
	Long: `Fuse measurements from multiple sources into a single robust signal.

The input file holds either a JSON array of sources or an object with a
"sources" key:

  [
    {"id": "imu",   "samples": [0.1, 0.5, 0.9]},
    {"id": "gps",   "samples": [0.2, 0.4, 1.1]},
    {"id": "lidar", "samples": [0.1, 0.6, 0.8]}
  ]

All sources must carry the same number of samples. Sources far from the
robust consensus receive near-zero trust weights.

Examples:
  lexkernel fuse sensors.json
  lexkernel fuse sensors.json --method trimmed_mean --alpha 2.0
  lexkernel fuse sensors.json --truth reference.json
  lexkernel fuse sensors.json --json > fused.json`,
	Args: cobra.ExactArgs(1),
	RunE: runFuse,
}

var (
	fuseAlpha     float64
	fuseMethod    string
	fuseTrimRatio float64
	fuseTruthPath string
	fuseJSON      bool
)

func init() {
	FuseCmd.Flags().Float64Var(&fuseAlpha, "alpha", 1.5, "Bandwidth sensitivity (larger is more tolerant)")
	FuseCmd.Flags().StringVar(&fuseMethod, "method", "median", "Robust center estimator: median or trimmed_mean")
	FuseCmd.Flags().Float64Var(&fuseTrimRatio, "trim-ratio", kernel.DefaultTrimRatio, "Per-tail trim fraction for trimmed_mean")
	FuseCmd.Flags().StringVar(&fuseTruthPath, "truth", "", "JSON file with a reference series to score against")
	FuseCmd.Flags().BoolVar(&fuseJSON, "json", false, "Emit the full result as JSON")
}

type sourceSeries struct {
	ID      string    `json:"id"`
	Samples []float64 `json:"samples"`
}

type fuseResult struct {
	Fused    []float64          `json:"fused"`
	Weights  map[string]float64 `json:"weights"`
	Outliers []string           `json:"outliers"`
	RMSE     *float64           `json:"rmse,omitempty"`
}

func runFuse(cmd *cobra.Command, args []string) error {
	sources, err := readSources(args[0])
	if err != nil {
		return err
	}

	batch := make([][]float64, len(sources))
	for i, src := range sources {
		batch[i] = src.Samples
	}

	k, err := kernel.New(kernel.Params{
		Alpha:     fuseAlpha,
		Method:    kernel.Method(fuseMethod),
		TrimRatio: fuseTrimRatio,
	})
	if err != nil {
		return err
	}

	fused, weights, err := k.Fit(batch)
	if err != nil {
		return err
	}

	result := fuseResult{
		Fused:   fused,
		Weights: make(map[string]float64, len(sources)),
	}
	for i, src := range sources {
		result.Weights[src.ID] = weights[i]
	}
	for _, idx := range kernel.Outliers(weights, 0.1) {
		result.Outliers = append(result.Outliers, sources[idx].ID)
	}

	if fuseTruthPath != "" {
		truth, err := readSeries(fuseTruthPath)
		if err != nil {
			return err
		}
		if len(truth) != len(fused) {
			return errors.Newf("truth series has %d samples, fused has %d", len(truth), len(fused))
		}
		rmse := kernel.RMSE(fused, truth)
		result.RMSE = &rmse
	}

	if fuseJSON {
		return json.NewEncoder(os.Stdout).Encode(result)
	}

	printFuseResult(sources, weights, result)
	return nil
}

func printFuseResult(sources []sourceSeries, weights []float64, result fuseResult) {
	rows := pterm.TableData{{"Source", "Weight", "Status"}}
	for i, src := range sources {
		status := "ok"
		if weights[i] < 0.1 {
			status = pterm.Red("outlier")
		}
		rows = append(rows, []string{src.ID, fmt.Sprintf("%.4f", weights[i]), status})
	}
	pterm.DefaultTable.WithHasHeader().WithData(rows).Render()

	pterm.Info.Printf("Fused %d sources, %d samples\n", len(sources), len(result.Fused))
	if len(result.Outliers) > 0 {
		pterm.Warning.Printf("Outlier sources: %v\n", result.Outliers)
	}
	if result.RMSE != nil {
		pterm.Info.Printf("RMSE vs reference: %.6f\n", *result.RMSE)
	}
}

// readSources accepts either a bare JSON array of sources or an object
// with a "sources" key, so server request payloads can be replayed as-is.
func readSources(path string) ([]sourceSeries, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}

	var wrapped struct {
		Sources []sourceSeries `json:"sources"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && len(wrapped.Sources) > 0 {
		return wrapped.Sources, nil
	}

	var sources []sourceSeries
	if err := json.Unmarshal(data, &sources); err != nil {
		return nil, errors.Wrapf(err, "failed to parse sources from %s", path)
	}
	return sources, nil
}

func readSeries(path string) ([]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}

	var series []float64
	if err := json.Unmarshal(data, &series); err != nil {
		var wrapped sourceSeries
		if err2 := json.Unmarshal(data, &wrapped); err2 == nil && len(wrapped.Samples) > 0 {
			return wrapped.Samples, nil
		}
		return nil, errors.Wrapf(err, "failed to parse series from %s", path)
	}
	return series, nil
}
