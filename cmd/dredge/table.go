package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"dredge/internal/adapters/httpapi"
	"dredge/internal/core"
)

func newTableCmd(g *globalOptions) *cobra.Command {
	var (
		query     httpapi.DisplayQuery
		threshold float64
		brush     []float64
		bin       []string
		watch     []string
	)
	cmd := &cobra.Command{
		Use:   "table [treatmentA treatmentB]",
		Short: "Print the sorted display table of a comparison as TSV",
		Long: `Print the display table of a comparison as tab-separated values.

Rows are chosen by one selection: --brush (minAbundance,maxFoldChange,maxAbundance,minFoldChange),
--bin (transcripts of a selected bin) or --watch (a watch list). Names absent from the
comparison appear as rows holding only the name.`,
		Args: cobra.MatchAll(cobra.RangeArgs(0, 2), noSingleArg),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch {
			case len(brush) > 0:
				if len(brush) != 4 {
					return fmt.Errorf("brush needs 4 coordinates, got %d", len(brush))
				}
				b := core.BrushFromCoords([4]float64(brush))
				query.Selection.Brush = &b
			case cmd.Flags().Changed("bin"):
				query.Selection.SelectedBin = append([]string{}, bin...)
			case cmd.Flags().Changed("watch"):
				query.Selection.Watched = append([]string{}, watch...)
			}
			query.Threshold = &threshold

			s, err := g.open(cmd)
			if err != nil {
				return err
			}
			a, b, err := s.pair(args)
			if err != nil {
				return err
			}
			loader, err := s.loader(cmd.Context())
			if err != nil {
				return err
			}
			c, err := loader.Load(cmd.Context(), a, b)
			if err != nil {
				return err
			}
			rows, err := query.Rows(s.project, c)
			if err != nil {
				return err
			}
			s.logger.Debug("display rows", "pair", a+"/"+b, "rows", len(rows))
			return core.WriteDisplayTSV(cmd.OutOrStdout(), rows, s.project.TreatmentLabel(a), s.project.TreatmentLabel(b))
		},
	}
	cmd.Flags().StringVar(&query.Sort, "sort", string(core.FieldName), "sort field")
	cmd.Flags().StringVar(&query.Order, "order", "asc", "asc|desc")
	cmd.Flags().Float64Var(&threshold, "threshold", 1, "largest p-value a brush admits")
	cmd.Flags().Float64SliceVar(&brush, "brush", nil, "brush extent in data coordinates")
	cmd.Flags().StringSliceVar(&bin, "bin", nil, "transcripts of the selected bin")
	cmd.Flags().StringSliceVar(&watch, "watch", nil, "watched transcripts")
	cmd.MarkFlagsMutuallyExclusive("brush", "bin", "watch")
	return cmd
}
