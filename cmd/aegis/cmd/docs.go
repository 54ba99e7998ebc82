package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aegis-authz/aegis/internal/adapter/outbound/rulefile"
	"github.com/aegis-authz/aegis/pkg/rules"
)

var docsCmd = &cobra.Command{
	Use:   "docs <rules-file>",
	Short: "Render a sample policy file from declared documentation",
	Long: `Load a rules file and print a commented sample policy file: each
rule's documentation, its authorization attributes, and its current
text. Useful as a starting point for site-specific policy files.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		defs, err := rulefile.Load(args[0])
		if err != nil {
			return err
		}
		p := rules.NewPolicy()
		for i := range defs {
			if err := defs[i].Install(p); err != nil {
				return err
			}
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "rules:")
		for _, doc := range p.GetDocs() {
			if formatted := doc.Format(); formatted != "" {
				fmt.Fprint(out, formatted)
			}
			rule, ok := p.GetRule(doc.Name)
			text := ""
			if ok {
				text = rule.Text()
			}
			fmt.Fprintf(out, "  - name: %s\n    text: %q\n", doc.Name, text)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(docsCmd)
}
