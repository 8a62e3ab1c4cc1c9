package main

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/contracts-tracker/internal/extract"
	"github.com/joseph-ayodele/contracts-tracker/internal/llm"
	"github.com/joseph-ayodele/contracts-tracker/internal/scoring"
)

func newExtractCmd(a *app) *cobra.Command {
	var withText bool
	cmd := &cobra.Command{
		Use:   "extract <file.pdf>",
		Short: "Extract text from a contract PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if err := extract.Validate(path); err != nil {
				return err
			}
			meta, err := extract.ReadMetadata(path)
			if err != nil {
				a.logger.Warn("metadata unavailable", "path", path, "error", err)
			}
			res, err := a.extractor().Extract(cmd.Context(), path)
			if err != nil {
				return err
			}
			out := map[string]any{
				"file":        filepath.Base(path),
				"method":      res.Method,
				"pages":       res.Pages,
				"chars":       len([]rune(res.Text)),
				"duration_ms": res.Duration.Milliseconds(),
				"metadata":    meta,
			}
			if len(res.Warnings) > 0 {
				out["warnings"] = res.Warnings
			}
			if withText {
				out["text"] = res.Text
			}
			return a.write(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().BoolVar(&withText, "text", false, "include the extracted text")
	return cmd
}

func newParseCmd(a *app) *cobra.Command {
	var breakdown bool
	cmd := &cobra.Command{
		Use:   "parse <file.pdf>",
		Short: "Extract, parse and score a contract PDF without storing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			ctx := cmd.Context()
			if err := extract.Validate(path); err != nil {
				return err
			}
			text, err := a.extractor().Extract(ctx, path)
			if err != nil {
				return err
			}
			parsed, err := a.parser().Parse(ctx, llm.ExtractRequest{
				FilenameHint: filepath.Base(path),
				Text:         text.Text,
			})
			if err != nil {
				return err
			}
			scorer := scoring.NewScorer()
			if breakdown {
				scorer = scoring.NewScorer(scoring.WithBreakdown())
			}
			out := map[string]any{
				"file":              filepath.Base(path),
				"extraction_method": text.Method,
				"parse_method":      parsed.Method,
				"model":             parsed.Model,
				"record":            parsed.Record,
				"report":            scorer.Score(scoring.RecordFromMap(parsed.Record)),
			}
			if len(parsed.Dropped) > 0 {
				out["dropped"] = parsed.Dropped
			}
			return a.write(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().BoolVar(&breakdown, "breakdown", false, "include per-check results")
	return cmd
}
