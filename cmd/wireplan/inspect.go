package main

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"wireplan/internal/diag"
	"wireplan/internal/graph"
)

var (
	classifyFormat string
	graphFormat    string
)

func init() {
	classifyCmd.Flags().StringVar(&classifyFormat, "format", "pretty", "output format (pretty|json)")
	graphCmd.Flags().StringVar(&graphFormat, "format", "pretty", "output format (pretty|json)")
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(graphCmd)
}

var classifyCmd = &cobra.Command{
	Use:   "classify [path]",
	Short: "Dump the role table for every declared type",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, res, _, err := runAnalysis(cmd, args, nil, "pretty")
		if err != nil {
			return err
		}
		if res.Merged == nil {
			return fmt.Errorf("classification unavailable: %d error(s)", countErrors(res))
		}

		names := make([]string, 0, len(res.Merged.Roles))
		for name := range res.Merged.Roles {
			names = append(names, name)
		}
		sort.Strings(names)

		out := cmd.OutOrStdout()
		if classifyFormat == "json" {
			table := make(map[string][]string, len(names))
			for _, name := range names {
				table[name] = res.Merged.Roles[name].Names()
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(table)
		}
		for _, name := range names {
			fmt.Fprintf(out, "%-40s %s\n", name, res.Merged.Roles[name])
		}
		if res.Bag.HasErrors() {
			return fmt.Errorf("classify failed: %d error(s)", countErrors(res))
		}
		return nil
	},
}

type graphEdgeJSON struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Param string `json:"param,omitempty"`
}

type graphJSON struct {
	Edges  []graphEdgeJSON `json:"edges"`
	Order  []string        `json:"order"`
	Cyclic bool            `json:"cyclic"`
}

var graphCmd = &cobra.Command{
	Use:   "graph [path]",
	Short: "Dump dependency edges and construction order",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, res, _, err := runAnalysis(cmd, args, nil, "pretty")
		if err != nil {
			return err
		}
		if res.Merged == nil {
			return fmt.Errorf("graph unavailable: %d error(s)", countErrors(res))
		}

		// The cached path skips analysis, so rebuild silently here.
		g := graph.Build(res.Merged, diag.NopReporter{})
		topo := graph.Toposort(g)

		out := cmd.OutOrStdout()
		if graphFormat == "json" {
			doc := graphJSON{Cyclic: topo.Cyclic}
			for _, e := range g.Edges {
				doc.Edges = append(doc.Edges, graphEdgeJSON{
					From:  g.Service(e.From).Name,
					To:    g.Service(e.To).Name,
					Param: e.Param.Key,
				})
			}
			for _, id := range topo.Order {
				doc.Order = append(doc.Order, g.Service(id).Name)
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(doc)
		}

		for _, e := range g.Edges {
			from, to := g.Service(e.From), g.Service(e.To)
			if e.Param.Key != "" {
				fmt.Fprintf(out, "%s -> %s (%s)\n", from.Name, to.Name, e.Param.Key)
			} else {
				fmt.Fprintf(out, "%s -> %s\n", from.Name, to.Name)
			}
		}
		for i, batch := range topo.Batches {
			fmt.Fprintf(out, "wave %d:", i)
			for _, id := range batch {
				fmt.Fprintf(out, " %s", g.Service(id).Name)
			}
			fmt.Fprintln(out)
		}
		if topo.Cyclic {
			return fmt.Errorf("graph is cyclic")
		}
		return nil
	},
}
