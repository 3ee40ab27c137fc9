package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/solatis/netkeeper/internal/drules"
	"github.com/solatis/netkeeper/internal/logger"
	"github.com/solatis/netkeeper/internal/payload"
	"github.com/solatis/netkeeper/internal/types"
)

// cliActor runs local administrative commands with full rights.
var cliActor = types.Actor{ID: "cli", Capability: types.SuperAdmin}

// ruleFile is the YAML document read by "drule apply" and written by
// "drule list".
type ruleFile struct {
	Rules []map[string]any `yaml:"drules"`
}

var druleCmd = &cobra.Command{
	Use:   "drule",
	Short: "Manage discovery rules directly against the database",
}

var druleListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print discovery rules with their checks as YAML",
	Args:  cobra.NoArgs,
	RunE:  runDRuleList,
}

var druleApplyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Create or update discovery rules from a YAML file",
	Long: `Rules without a druleid are created; rules with one are updated.
Updates run first. Each batch is validated in full before it is written.`,
	Args: cobra.NoArgs,
	RunE: runDRuleApply,
}

var druleDeleteCmd = &cobra.Command{
	Use:   "delete DRULEID...",
	Short: "Delete discovery rules and everything referencing them",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runDRuleDelete,
}

func init() {
	druleListCmd.Flags().String("search", "", "case-insensitive name substring")
	druleListCmd.Flags().StringSlice("name", nil, "exact rule name (repeatable)")
	druleApplyCmd.Flags().StringP("file", "f", "", "YAML file with a drules list (- for stdin)")
	_ = druleApplyCmd.MarkFlagRequired("file")

	druleCmd.AddCommand(druleListCmd, druleApplyCmd, druleDeleteCmd)
	rootCmd.AddCommand(druleCmd)
}

func newRuleService(store drules.Store) *drules.Service {
	return drules.NewService(store, drules.Config{IPRangeLimit: cfg.Discovery.IPRangeLimit}, logger.GetLogger())
}

func runDRuleList(cmd *cobra.Command, args []string) error {
	store, closeStore, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer closeStore()

	search, _ := cmd.Flags().GetString("search")
	names, _ := cmd.Flags().GetStringSlice("name")

	opts := drules.GetOptions{
		Search:       search,
		SelectChecks: drules.OutputExtend,
		SortField:    types.FieldName,
	}
	if len(names) > 0 {
		opts.Filter = map[string][]string{types.FieldName: names}
	}

	res, err := newRuleService(store).Get(cmd.Context(), cliActor, opts)
	if err != nil {
		return err
	}
	return writeRules(cmd.OutOrStdout(), res.Rules)
}

// writeRules renders rules in the same shape "drule apply" reads.
func writeRules(w io.Writer, views []drules.RuleView) error {
	doc := ruleFile{Rules: make([]map[string]any, len(views))}
	for i, v := range views {
		rule := map[string]any(v.Rule.Object())
		delete(rule, types.FieldNextCheck)
		checks := make([]map[string]any, len(v.Checks))
		for j, c := range v.Checks {
			check := map[string]any(c.Object())
			delete(check, types.FieldRuleID)
			checks[j] = check
		}
		rule[types.FieldChecks] = checks
		doc.Rules[i] = rule
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode rules: %w", err)
	}
	return enc.Close()
}

// readRules parses a rule file and splits it into new rules and updates.
func readRules(r io.Reader) (creates, updates []types.Object, err error) {
	var doc ruleFile
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, nil, fmt.Errorf("failed to parse rule file: %w", err)
	}
	for _, m := range doc.Rules {
		o := types.Object(m)
		if id, ok := payload.RuleID(o); ok && id != "" {
			updates = append(updates, o)
		} else {
			delete(o, types.FieldRuleID)
			creates = append(creates, o)
		}
	}
	return creates, updates, nil
}

func runDRuleApply(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("file")

	var in io.Reader = cmd.InOrStdin()
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	creates, updates, err := readRules(in)
	if err != nil {
		return err
	}
	if len(creates) == 0 && len(updates) == 0 {
		return fmt.Errorf("%s: no drules found", path)
	}

	store, closeStore, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer closeStore()

	svc := newRuleService(store)
	out := cmd.OutOrStdout()

	if len(updates) > 0 {
		ids, err := svc.Update(cmd.Context(), cliActor, updates)
		if err != nil {
			return fmt.Errorf("update failed: %w", err)
		}
		for _, id := range ids {
			fmt.Fprintf(out, "updated %s\n", id)
		}
	}
	if len(creates) > 0 {
		ids, err := svc.Create(cmd.Context(), cliActor, creates)
		if err != nil {
			return fmt.Errorf("create failed: %w", err)
		}
		for i, id := range ids {
			fmt.Fprintf(out, "created %s (%v)\n", id, creates[i][types.FieldName])
		}
	}
	return nil
}

func runDRuleDelete(cmd *cobra.Command, args []string) error {
	store, closeStore, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer closeStore()

	ids := make([]types.RuleID, len(args))
	for i, a := range args {
		ids[i] = types.RuleID(a)
	}

	deleted, err := newRuleService(store).Delete(cmd.Context(), cliActor, ids)
	if err != nil {
		return err
	}
	for _, id := range deleted {
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", id)
	}
	return nil
}
