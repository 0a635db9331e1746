package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"dredge/internal/core"
)

func newBinsCmd(g *globalOptions) *cobra.Command {
	var (
		width, height, unit, threshold float64
	)
	cmd := &cobra.Command{
		Use:   "bins [treatmentA treatmentB]",
		Short: "Print the non-empty plot bins of a comparison",
		Long:  "Print the non-empty plot bins of a comparison as tab-separated rows. Without arguments the project's first two treatments are compared.",
		Args:  cobra.MatchAll(cobra.RangeArgs(0, 2), noSingleArg),
		RunE: func(cmd *cobra.Command, args []string) error {
			if width <= 0 || height <= 0 || unit <= 0 {
				return fmt.Errorf("width, height and unit must be positive")
			}
			if threshold < 0 || threshold > 1 {
				return fmt.Errorf("threshold %v outside [0, 1]", threshold)
			}
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
			xLim, yLim := s.project.AbundanceLimits()
			xScale, yScale := core.PlotScales(c, xLim, yLim, width, height)
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "x0\tx1\ty0\ty1\tlogATA\tlogFC\tcount\tcolor\ttranscripts")
			for _, bin := range core.ComputeBins(c, core.PValueAtMost(threshold), xScale, yScale, unit) {
				style, ok := core.StyleFor(bin)
				if !ok {
					continue
				}
				fmt.Fprintf(out, "%d\t%d\t%d\t%d\t%s..%s\t%s..%s\t%d\t%s\t%s\n",
					bin.X0, bin.X1, bin.Y0, bin.Y1,
					core.FormatNumber(&bin.Abundance.Min, 3), core.FormatNumber(&bin.Abundance.Max, 3),
					core.FormatNumber(&bin.FoldChange.Min, 3), core.FormatNumber(&bin.FoldChange.Max, 3),
					style.Count, style.Color, strings.Join(core.BinNames(bin), ","))
			}
			return nil
		},
	}
	cmd.Flags().Float64Var(&width, "width", 800, "plot width in pixels")
	cmd.Flags().Float64Var(&height, "height", 600, "plot height in pixels")
	cmd.Flags().Float64Var(&unit, "unit", core.DefaultBinUnit, "grid square edge in pixels")
	cmd.Flags().Float64Var(&threshold, "threshold", 1, "largest p-value plotted")
	return cmd
}

func noSingleArg(_ *cobra.Command, args []string) error {
	if len(args) == 1 {
		return fmt.Errorf("name both treatments or neither")
	}
	return nil
}
