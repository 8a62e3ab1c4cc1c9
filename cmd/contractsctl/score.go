package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/contracts-tracker/internal/scoring"
)

func newScoreCmd(a *app) *cobra.Command {
	var breakdown bool
	cmd := &cobra.Command{
		Use:   "score <record.json|record.yaml|->",
		Short: "Score an extraction record",
		Long: `Score reads an extraction record (JSON, or YAML for .yaml/.yml files) and
prints the overall score, category scores, missing fields and confidence levels.
Use "-" to read JSON from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			record, err := decodeRecord(args[0], data)
			if err != nil {
				return err
			}
			scorer := scoring.NewScorer()
			if breakdown {
				scorer = scoring.NewScorer(scoring.WithBreakdown())
			}
			return a.write(cmd.OutOrStdout(), scorer.Score(scoring.RecordFromMap(record)))
		},
	}
	cmd.Flags().BoolVar(&breakdown, "breakdown", false, "include per-check results")
	return cmd
}

func decodeRecord(path string, data []byte) (map[string]any, error) {
	var record map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &record); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, &record); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	}
	return record, nil
}
