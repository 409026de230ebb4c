package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/cleanlist/pkg/apperrors"
	"github.com/ekaya-inc/cleanlist/pkg/models"
	"github.com/ekaya-inc/cleanlist/pkg/services"
)

// processOptions are the flags of the process command.
type processOptions struct {
	Input    string
	Output   string
	Template string
	Maps     []string
	Verify   bool
	APIKey   string
}

var processOpts processOptions

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Map, verify and export one file without starting the server",
	Long: `Process runs a single file through the pipeline.

The mapping comes from a saved template (--template), explicit
Target=Source pairs (--map, repeatable, applied after the template), or,
when neither is given, from name-similarity suggestions.`,
	Example: `  cleanlist process --input leads.csv --map "Email=E-mail Address" --map "Name=Full Name"
  cleanlist process --input leads.xlsx --template crm-export --verify`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		return processFile(cmd.Context(), a, processOpts, cmd.OutOrStdout(), logger)
	},
}

func init() {
	processCmd.Flags().StringVarP(&processOpts.Input, "input", "i", "", "CSV or XLSX file to process (required)")
	processCmd.Flags().StringVarP(&processOpts.Output, "output", "o", "", "Output CSV path (default: <input>_clean.csv beside the input)")
	processCmd.Flags().StringVarP(&processOpts.Template, "template", "t", "", "Saved template to apply")
	processCmd.Flags().StringArrayVarP(&processOpts.Maps, "map", "m", nil, "Target=Source pair (repeatable)")
	processCmd.Flags().BoolVar(&processOpts.Verify, "verify", false, "Drop rows whose identifier does not verify as valid")
	processCmd.Flags().StringVar(&processOpts.APIKey, "api-key", "", "Verification API key (default: NEVERBOUNCE_API_KEY)")
	_ = processCmd.MarkFlagRequired("input")
}

// processFile loads opts.Input, builds the mapping, processes it and writes
// the clean CSV. A summary is printed to out.
func processFile(ctx context.Context, a *app, opts processOptions, out io.Writer, logger *zap.Logger) error {
	raw, err := os.ReadFile(opts.Input)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", opts.Input, err)
	}

	session := a.pipeline.NewSession()
	if err := session.Load(opts.Input, raw); err != nil {
		return err
	}

	pairs, err := parseMapFlags(opts.Maps)
	if err != nil {
		return err
	}

	if opts.Template != "" {
		t, err := a.templates.Load(ctx, opts.Template)
		if err != nil {
			return err
		}
		skipped, err := session.ApplyTemplate(t)
		if err != nil {
			return err
		}
		for _, p := range skipped {
			logger.Warn("Template pair does not fit this file, skipped",
				zap.String("template", t.Name),
				zap.String("target", p.Target),
				zap.String("source", p.Source))
		}
	}

	for _, p := range pairs {
		if err := session.Assign(p.Target, p.Source); err != nil {
			return err
		}
	}

	if opts.Template == "" && len(pairs) == 0 {
		suggested, err := session.Suggest()
		if err != nil {
			return err
		}
		for _, p := range suggested {
			fmt.Fprintf(out, "suggested: %s <- %s\n", p.Target, p.Source)
		}
	}

	result, err := session.Process(ctx, services.ProcessOptions{Verify: opts.Verify, APIKey: opts.APIKey})
	if err != nil {
		return err
	}

	outPath := opts.Output
	if outPath == "" {
		outPath = filepath.Join(filepath.Dir(opts.Input), session.OutputName())
	}
	if err := writeExport(session, outPath); err != nil {
		return err
	}

	printSummary(out, result, outPath)
	return nil
}

func writeExport(session *services.Session, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := session.Export(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func printSummary(out io.Writer, result *models.ProcessResult, path string) {
	fmt.Fprintf(out, "rows in: %d, rows out: %d\n", result.InputRows, result.OutputRows)
	if r := result.Report; r != nil {
		fmt.Fprintf(out, "verified %s: %d valid, %d invalid, %d unknown, %d errored\n",
			r.Field, r.Valid, r.Invalid, r.Unknown, r.Errored)
	}
	fmt.Fprintf(out, "wrote %s\n", path)
}

// parseMapFlags parses repeated Target=Source flags. The source may itself
// contain '=' characters; the target may not.
func parseMapFlags(values []string) ([]models.MappingPair, error) {
	pairs := make([]models.MappingPair, 0, len(values))
	for _, v := range values {
		target, source, ok := strings.Cut(v, "=")
		target = strings.TrimSpace(target)
		if !ok || target == "" || source == "" {
			return nil, fmt.Errorf("%w: --map %q, want Target=Source", apperrors.ErrInvalidInput, v)
		}
		pairs = append(pairs, models.MappingPair{Target: target, Source: source})
	}
	return pairs, nil
}
