package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aegis-authz/aegis/internal/adapter/outbound/rulefile"
	"github.com/aegis-authz/aegis/pkg/rules"
)

var (
	evalRulesFile string
	evalVars      []string
)

var evalCmd = &cobra.Command{
	Use:   "eval <rule>",
	Short: "Evaluate one rule against variable bindings",
	Long: `Load a rules file, evaluate the named rule, and print the
resulting authorization as JSON.

Variables are bound with repeated --var flags. Values parse as JSON when
possible and fall back to plain strings:

  aegis eval update_user \
      --rules aegis-rules.yaml \
      --var user='{"admin": true}' \
      --var target='"bob"'

The exit status is 0 when the rule authorizes and 1 when it denies, so
the command composes with shell conditionals.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		defs, err := rulefile.Load(evalRulesFile)
		if err != nil {
			return err
		}
		p := rules.NewPolicy()
		for i := range defs {
			if err := defs[i].Install(p); err != nil {
				return fmt.Errorf("installing rule %q: %w", defs[i].Name, err)
			}
		}

		variables, err := parseVarFlags(evalVars)
		if err != nil {
			return err
		}

		az, evalErr := p.Evaluate(args[0], rules.FromGoMap(variables))
		attrs := make(map[string]any, len(az.Attrs()))
		for name, v := range az.Attrs() {
			attrs[name] = rules.ToGo(v)
		}
		out := map[string]any{
			"rule":    args[0],
			"allowed": az.Verdict(),
			"attrs":   attrs,
		}
		if evalErr != nil {
			out["error"] = evalErr.Error()
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return err
		}
		if !az.Verdict() {
			os.Exit(1)
		}
		return nil
	},
}

// parseVarFlags turns repeated "name=value" flags into bindings. Values
// are decoded as JSON when they parse, else taken as literal strings.
func parseVarFlags(flags []string) (map[string]any, error) {
	vars := make(map[string]any, len(flags))
	for _, f := range flags {
		name, raw, ok := strings.Cut(f, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("bad --var %q: want name=value", f)
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			v = raw
		}
		vars[name] = v
	}
	return vars, nil
}

func init() {
	evalCmd.Flags().StringVar(&evalRulesFile, "rules", "aegis-rules.yaml", "rules file to load")
	evalCmd.Flags().StringArrayVar(&evalVars, "var", nil, "variable binding name=value (value parses as JSON; repeatable)")
	rootCmd.AddCommand(evalCmd)
}
