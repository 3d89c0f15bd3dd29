package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/setflow/callsheet-cli/internal/model"
	"github.com/setflow/callsheet-cli/internal/normalize"
	"github.com/setflow/callsheet-cli/internal/orchestrator"
)

var batchDir string

var batchCmd = &cobra.Command{
	Use:   "batch [files...]",
	Short: "Extract a set of callsheets concurrently",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		paths, err := batchPaths(args)
		if err != nil {
			return err
		}
		if len(paths) == 0 {
			return eris.New("no input files (pass paths or --dir)")
		}

		opts, err := extractOptions()
		if err != nil {
			return err
		}

		o, err := buildOrchestrator()
		if err != nil {
			return err
		}

		inputs := make([]orchestrator.Input, 0, len(paths))
		for _, p := range paths {
			inputs = append(inputs, orchestrator.Input{FilePath: p})
		}

		report := o.ExtractBatch(ctx, inputs, opts)

		zap.L().Info("batch complete",
			zap.Int("succeeded", report.Succeeded),
			zap.Int("failed", report.Failed),
		)

		return printReport(report)
	},
}

// batchPaths merges positional file arguments with a --dir scan, keeping
// only extensions the normalizer recognizes.
func batchPaths(args []string) ([]string, error) {
	paths := append([]string{}, args...)

	if batchDir != "" {
		entries, err := os.ReadDir(batchDir)
		if err != nil {
			return nil, eris.Wrap(err, "read batch dir")
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			p := filepath.Join(batchDir, e.Name())
			if normalize.DetectKind(p, "") == "" {
				continue
			}
			paths = append(paths, p)
		}
	}

	sort.Strings(paths)
	return paths, nil
}

type reportJSON struct {
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
	Documents []documentJSON `json:"documents"`
}

type documentJSON struct {
	Source string `json:"source"`
	Error  string `json:"error,omitempty"`
	Result any    `json:"result,omitempty"`
}

func printReport(report *model.BatchReport) error {
	out := reportJSON{
		Succeeded: report.Succeeded,
		Failed:    report.Failed,
	}
	for _, res := range report.Results {
		doc := documentJSON{Source: res.Source}
		if res.Err != nil {
			doc.Error = res.Err.Error()
		} else if res.Extraction != nil {
			if res.Extraction.CrewFirst != nil {
				doc.Result = res.Extraction.CrewFirst
			} else {
				doc.Result = res.Extraction.Simple
			}
		}
		out.Documents = append(out.Documents, doc)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func init() {
	batchCmd.Flags().StringVar(&batchDir, "dir", "", "directory of callsheet files to process")
	addExtractionFlags(batchCmd)
	rootCmd.AddCommand(batchCmd)
}
