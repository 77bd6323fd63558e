package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/salesops-cli/internal/rules"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect profile rules files",
}

var rulesCheckCmd = &cobra.Command{
	Use:   "check <profile>",
	Short: "Validate a profile and its rules file and print the rules in evaluation order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := cfg.Profile(args[0])
		if err != nil {
			return err
		}
		if p.RulesFile == "" {
			fmt.Fprintf(os.Stdout, "profile %s has no rules file; channels come from the branch table only\n", args[0])
			return nil
		}
		rf, err := rules.Load(p.RulesFile)
		if err != nil {
			return eris.Wrap(err, "rules check")
		}
		formatRules(os.Stdout, rf)
		return nil
	},
}

// formatRules prints the override rules in the order they are evaluated,
// followed by the relabel map and threshold table sizes.
func formatRules(out io.Writer, rf *rules.File) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "#\tNAME\tTYPE\tCHANNEL\tCONDITION")
	for i, r := range rf.Rules {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", i+1, r.Name, r.Type, r.Channel, describeRule(r))
	}
	_ = w.Flush()

	if len(rf.Relabel) > 0 {
		legacy := make([]string, 0, len(rf.Relabel))
		for k := range rf.Relabel {
			legacy = append(legacy, k)
		}
		sort.Strings(legacy)
		_, _ = fmt.Fprintln(out, "\nrelabel:")
		for _, k := range legacy {
			_, _ = fmt.Fprintf(out, "  %s -> %s\n", k, rf.Relabel[k])
		}
	}

	t := rf.SLA.Thresholds
	_, _ = fmt.Fprintf(out, "\nsla thresholds: partner=%d channel=%d category=%d product_type=%d buckets=%d\n",
		len(t.Partner), len(t.Channel), len(t.Category), len(t.ProductType), len(rf.SLA.Buckets))
}

func describeRule(r rules.RuleConfig) string {
	var parts []string
	switch r.Type {
	case rules.TypeDateGate:
		parts = append(parts, "sale date >= "+r.Since)
		if len(r.Responsibles) > 0 {
			parts = append(parts, "responsible in ["+strings.Join(r.Responsibles, ", ")+"]")
		}
	case rules.TypeCategory:
		parts = append(parts, "category = "+r.Category)
	case rules.TypeCategorySet:
		parts = append(parts, "category in ["+strings.Join(r.Categories, ", ")+"]")
	case rules.TypePartnerCategory:
		parts = append(parts, "partner = "+r.Partner, "category = "+r.Category)
	}
	if len(r.ExcludeResponsibles) > 0 {
		parts = append(parts, "responsible not in ["+strings.Join(r.ExcludeResponsibles, ", ")+"]")
	}
	return strings.Join(parts, " and ")
}

func init() {
	rulesCmd.AddCommand(rulesCheckCmd)
	rootCmd.AddCommand(rulesCmd)
}
