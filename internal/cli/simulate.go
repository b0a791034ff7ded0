package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vincentbai/pagebeacon/internal/beacon"
	"github.com/vincentbai/pagebeacon/internal/scenario"
)

// SimulationResult is the per-scenario output of the simulate command.
type SimulationResult struct {
	Scenario    string   `json:"scenario"`
	Path        string   `json:"path"`
	MaxScroll   int      `json:"max_scroll"`
	Navigations []string `json:"navigations"`
	Unloaded    bool     `json:"unloaded"`
}

// NewSimulateCommand creates the simulate command.
func NewSimulateCommand(rootOpts *RootOptions) *cobra.Command {
	var endpoint string

	cmd := &cobra.Command{
		Use:   "simulate <scenario.yaml>...",
		Short: "Replay scripted page visits through the beacon",
		Long: `Replay one or more scenario files through the beacon against a collector.

Each scenario describes a page (path, user agent, geometry, elements) and a
list of steps: scroll, click, wait and unload.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if endpoint != "" {
				rootOpts.Config.Beacon.Endpoint = endpoint
			}
			return runSimulate(cmd, rootOpts, args)
		},
	}

	cmd.Flags().StringVar(&endpoint, "endpoint", "", "collector origin (overrides beacon.endpoint)")
	return cmd
}

func runSimulate(cmd *cobra.Command, opts *RootOptions, files []string) error {
	runner := scenario.Runner{
		Endpoint: opts.Config.Beacon.Endpoint,
		Options:  []beacon.Option{beacon.WithLogger(opts.Logger)},
	}

	results := make([]SimulationResult, 0, len(files))
	for _, file := range files {
		s, err := scenario.Load(file)
		if err != nil {
			return err
		}
		opts.Logger.Info("replaying scenario", "scenario", file, "path", s.Path, "endpoint", runner.Endpoint)

		result, err := runner.Run(cmd.Context(), s)
		if err != nil {
			return fmt.Errorf("scenario %s: %w", file, err)
		}
		results = append(results, SimulationResult{
			Scenario:    file,
			Path:        result.Path,
			MaxScroll:   result.MaxScroll,
			Navigations: result.Navigations,
			Unloaded:    result.Unloaded,
		})
	}

	out := cmd.OutOrStdout()
	if opts.Format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	for _, r := range results {
		navigations := "-"
		if len(r.Navigations) > 0 {
			navigations = strings.Join(r.Navigations, ",")
		}
		fmt.Fprintf(out, "%s\tpath=%s\tmax_scroll=%d\tnavigations=%s\tunloaded=%t\n",
			r.Scenario, r.Path, r.MaxScroll, navigations, r.Unloaded)
	}
	return nil
}
