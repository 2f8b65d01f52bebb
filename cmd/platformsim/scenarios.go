package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rmax-ai/platformsim/pkg/store"
)

func newScenarioCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scenario",
		Short: "Load learning scenarios and track their objectives",
	}

	list := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List available scenarios",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			scs, err := c.client().Scenarios(cmd.Context())
			if err != nil {
				return explain(err)
			}
			return c.print(cmd, scs, func(w io.Writer) {
				fmt.Fprintln(w, "ID\tDIFFICULTY\tTITLE")
				for _, sc := range scs {
					fmt.Fprintf(w, "%s\t%s\t%s\n", sc.ID, sc.Difficulty, sc.Title)
				}
			})
		},
	}

	load := &cobra.Command{
		Use:   "load <id>",
		Short: "Reset the simulation to a scenario",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := c.client().LoadScenario(cmd.Context(), args[0])
			if err != nil {
				return explain(err)
			}
			return c.print(cmd, sc, func(w io.Writer) {
				fmt.Fprintf(w, "Loaded\t%s\n", sc.Title)
				fmt.Fprintf(w, "Components\t%d\n", len(sc.InitialComponents))
				for _, o := range sc.Objectives {
					fmt.Fprintf(w, "Objective\t%s\n", o.Description)
				}
			})
		},
	}

	progress := &cobra.Command{
		Use:   "progress",
		Short: "Score the loaded scenario",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := c.client().Progress(cmd.Context())
			if err != nil {
				return explain(err)
			}
			return c.print(cmd, p, func(w io.Writer) {
				fmt.Fprintln(w, "OBJECTIVE\tMETRIC\tEXPECTED\tACTUAL\tMET")
				for _, o := range p.Objectives {
					fmt.Fprintf(w, "%s\t%s\t%s\t%.1f\t%t\n", o.ID, o.Metric, o.Expected, o.Actual, o.Met)
				}
				fmt.Fprintf(w, "score\t\t\t%.0f\t%t\n", p.Score, p.Completed)
			})
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Drop the scenario and start from an empty simulation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.client().ClearScenario(cmd.Context()); err != nil {
				return explain(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Scenario cleared")
			return nil
		},
	}

	cmd.AddCommand(list, load, progress, clearCmd)
	return cmd
}

func newEventsCmd(c *cli) *cobra.Command {
	var limit int
	var entity string
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show the session journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				events []store.Event
				err    error
			)
			if entity != "" {
				events, err = c.client().EntityEvents(cmd.Context(), entity)
			} else {
				events, err = c.client().GetEvents(cmd.Context(), limit)
			}
			if err != nil {
				return explain(err)
			}
			return c.print(cmd, events, func(w io.Writer) {
				fmt.Fprintln(w, "TIME\tTYPE\tENGINE\tENTITY\tORIGIN")
				for _, e := range events {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
						e.TsEvent.Format("15:04:05.000"), e.EventType, e.Subject.Engine, e.Subject.EntityID, e.Source.OriginKind)
				}
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of recent events")
	cmd.Flags().StringVar(&entity, "entity", "", "only events about this entity id")
	return cmd
}

func newReportCmd(c *cli) *cobra.Command {
	var filters []string
	var output string
	cmd := &cobra.Command{
		Use:       "report <issues|utilization|events>",
		Short:     "Download a CSV report",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"issues", "utilization", "events"},
		RunE: func(cmd *cobra.Command, args []string) error {
			params := map[string]string{}
			for _, f := range filters {
				k, v, ok := strings.Cut(f, "=")
				if !ok {
					return fmt.Errorf("filter %q is not key=value", f)
				}
				params[k] = v
			}
			data, err := c.client().Report(cmd.Context(), args[0], params)
			if err != nil {
				return explain(err)
			}
			if output == "" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("failed to write report: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Report written to %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&filters, "filter", nil, "report filter as key=value (repeatable)")
	cmd.Flags().StringVarP(&output, "out", "o", "", "write to file instead of stdout")
	return cmd
}
