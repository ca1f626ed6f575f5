package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/openbootdotdev/devenv/internal/deps"
	"github.com/openbootdotdev/devenv/internal/tools"
	"github.com/openbootdotdev/devenv/internal/ui"
)

var depsCmd = &cobra.Command{
	Use:   "deps",
	Short: "Inspect dependencies between tools",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDepsOverview(cmd.Context(), cmd.OutOrStdout())
	},
}

var depsOrderCmd = &cobra.Command{
	Use:   "order <id>...",
	Short: "Print the install order for a set of tools",
	Long: `Print the given tools so that each comes after the tools it depends on.
Only dependencies inside the given set are considered.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		templates, err := cur.catalog.ListTemplates(cmd.Context())
		if err != nil {
			return err
		}
		order, err := deps.ResolveOrder(args, templates)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		for i, id := range order {
			fmt.Fprintf(w, "%d. %s\n", i+1, id)
		}
		return nil
	},
}

var depsTreeCmd = &cobra.Command{
	Use:   "tree <id>",
	Short: "Show the dependency tree of a tool with install status",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		templates, dets, err := cur.detectAll(cmd.Context(), !asJSON)
		if err != nil {
			return err
		}
		tree, err := deps.BuildTree(args[0], tools.InstalledSet(dets), templates)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		if asJSON {
			data, err := json.MarshalIndent(tree, "", "  ")
			if err != nil {
				return fmt.Errorf("marshal tree: %w", err)
			}
			fmt.Fprintln(w, string(data))
			return nil
		}
		printTree(w, tree)
		return nil
	},
}

var depsReverseCmd = &cobra.Command{
	Use:   "reverse <id>",
	Short: "List the tools that depend on a tool",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		templates, err := cur.catalog.ListTemplates(cmd.Context())
		if err != nil {
			return err
		}
		if _, ok := tools.IndexByID(templates)[args[0]]; !ok {
			return &deps.UnknownToolError{ID: args[0]}
		}

		w := cmd.OutOrStdout()
		dependents := deps.ReverseDependencies(args[0], templates)
		if len(dependents) == 0 {
			fmt.Fprintf(w, "No tools depend on %s.\n", args[0])
			return nil
		}
		for _, d := range dependents {
			fmt.Fprintf(w, "  %-18s %s\n", d.ID, d.Name)
		}
		return nil
	},
}

func init() {
	depsTreeCmd.Flags().Bool("json", false, "print the tree as JSON")

	depsCmd.AddCommand(depsOrderCmd)
	depsCmd.AddCommand(depsTreeCmd)
	depsCmd.AddCommand(depsReverseCmd)
}

func printTree(w io.Writer, tree *deps.Tree) {
	var walk func(n deps.Node, prefix string, last, root bool)
	walk = func(n deps.Node, prefix string, last, root bool) {
		branch, next := "", ""
		if !root {
			branch, next = "├── ", "│   "
			if last {
				branch, next = "└── ", "    "
			}
		}
		fmt.Fprintf(w, "%s%s%s\n", prefix, branch, ui.Check(n.Installed, n.Name+" ("+n.ToolID+")"))
		for i, child := range n.Dependencies {
			walk(child, prefix+next, i == len(n.Dependencies)-1, false)
		}
	}
	walk(tree.Root, "", true, true)

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%d tools, %d installed, %d missing\n", tree.TotalTools, tree.InstalledCount, tree.MissingCount)
}

// runDepsOverview lists every tool that has dependencies together with its
// install order.
func runDepsOverview(ctx context.Context, w io.Writer) error {
	templates, err := cur.catalog.ListTemplates(ctx)
	if err != nil {
		return err
	}

	found := false
	for _, t := range templates {
		if len(t.Dependencies) == 0 {
			continue
		}
		found = true
		closure, err := deps.Closure([]string{t.ID}, templates, nil)
		if err != nil {
			fmt.Fprintf(w, "  %-18s %s\n", t.ID, ui.Red(err.Error()))
			continue
		}
		order, err := deps.ResolveOrder(closure, templates)
		if err != nil {
			fmt.Fprintf(w, "  %-18s %s\n", t.ID, ui.Red(err.Error()))
			continue
		}
		fmt.Fprintf(w, "  %-18s %s\n", t.ID, strings.Join(order, " → "))
	}
	if !found {
		fmt.Fprintln(w, "No tools declare dependencies.")
	}
	return nil
}
