package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"dredge/internal/blob"
	"dredge/internal/core"
	"dredge/internal/infra/abundance"
	"dredge/internal/infra/fetch"
)

func newImportCmd(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load test results and abundance samples into project storage",
	}
	cmd.AddCommand(newImportTestsCmd(g), newImportAbundanceCmd(g))
	return cmd
}

func newImportTestsCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tests <treatmentA> <treatmentB> <file>",
		Short: "Upload a pairwise test-result file to the blob store",
		Long:  "Upload a pairwise test-result file to the blob store under the key the project's URL template gives treatmentA versus treatmentB. The file is parsed first and rejected if it holds no transcripts.",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, b, path := args[0], args[1], args[2]
			s, err := g.open(cmd)
			if err != nil {
				return err
			}
			for _, key := range []string{a, b} {
				if _, ok := s.project.Treatment(key); !ok {
					return core.ErrUnknownTreatment{Key: key}
				}
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			c, err := core.ParsePairwise(bytes.NewReader(data), core.ParseOptions{
				TreatmentA: a,
				TreatmentB: b,
				Collisions: s.file.CollisionPolicy(),
				Canonical:  s.project.CanonicalLabel,
			})
			if err != nil {
				return fmt.Errorf("parse %s: %w", path, err)
			}
			if c.Len() == 0 {
				return fmt.Errorf("%s holds no transcripts", path)
			}
			if n := len(c.Anomalies()); n > 0 {
				s.logger.Warn("test-result file has anomalies", "file", path, "anomalies", n)
			}

			loader := core.NewLoader(s.project, nil)
			location, _, err := loader.Locations(a, b)
			if err != nil {
				return err
			}
			key, err := fetch.Key(location)
			if err != nil {
				return err
			}
			store, err := blob.Open(cmd.Context())
			if err != nil {
				return err
			}
			info, err := store.Put(cmd.Context(), key, bytes.NewReader(data), blob.PutOptions{
				ContentType: "text/tab-separated-values",
				Metadata:    map[string]string{"treatment_a": a, "treatment_b": b},
			})
			if err != nil {
				return err
			}
			s.logger.Info("imported test results", "key", info.Key, "driver", string(store.Driver()), "records", c.Len())
			fmt.Fprintln(cmd.OutOrStdout(), info.Key)
			return nil
		},
	}
}

func newImportAbundanceCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "abundance <file>",
		Short: "Write replicate abundance samples to the project's SQL store",
		Long:  "Write replicate abundance samples (treatment, transcript, replicate, value; tab-separated with a header) to the sqlite or postgres store the project selects. Existing samples with the same key are replaced.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := g.open(cmd)
			if err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer func() { _ = f.Close() }()
			samples, err := abundance.ReadSamplesTSV(f)
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			cfg := s.file.AbundanceConfig()
			if err := abundance.Write(cmd.Context(), cfg, samples); err != nil {
				return err
			}
			s.logger.Info("imported abundance samples", "driver", string(cfg.Driver), "samples", len(samples))
			fmt.Fprintf(cmd.OutOrStdout(), "%d samples\n", len(samples))
			return nil
		},
	}
}
