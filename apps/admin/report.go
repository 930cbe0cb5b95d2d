package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/trezcool/vigil/core/rubric"
)

var tierColors = map[rubric.Tier]*color.Color{
	rubric.GoodStanding: color.New(color.FgGreen),
	rubric.Warning:      color.New(color.FgYellow),
	rubric.FinalWriteUp: color.New(color.FgRed),
	rubric.Separation:   color.New(color.FgRed, color.Bold),
}

func tierColor(tier rubric.Tier) *color.Color {
	if c, ok := tierColors[tier]; ok {
		return c
	}
	return color.New(color.Reset)
}

func (cli *commandLine) reportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report GUARD_ID",
		Short: "Print the evaluation history of a guard",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				_ = cmd.Usage()
				return errHelp
			}
			return cli.report(args[0])
		},
	}
}

func (cli *commandLine) report(guardID string) error {
	sum, err := cli.evalSvc.GuardSummary(context.Background(), guardID)
	if err != nil {
		return err
	}

	header := color.New(color.FgCyan, color.Bold)
	_, _ = header.Fprintf(cli.out, "%s  %s\n", sum.Guard.GuardID, sum.Guard.Name)
	_, _ = fmt.Fprintf(cli.out, "evaluations: %d  average: %s\n", sum.Count, rubric.FormatPoints(sum.AverageTotal))
	if sum.LatestRecommendation == nil {
		_, _ = fmt.Fprintln(cli.out, "no evaluations yet")
		return nil
	}
	latest := *sum.LatestRecommendation
	_, _ = fmt.Fprint(cli.out, "latest: ")
	_, _ = tierColor(latest.Tier).Fprintf(cli.out, "%s\n", latest.Tier)

	for _, v := range sum.History {
		_, _ = fmt.Fprintf(cli.out, "%s  %-8s %-6s ", v.EvaluationDate.Format("2006-01-02"), v.ClientID, rubric.FormatPoints(v.TotalPoints))
		_, _ = tierColor(v.Recommendation.Tier).Fprintf(cli.out, "%s\n", v.Recommendation.Tier)
	}
	return nil
}
