package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jude27mad/tax-prep-app/pkg/rejectcode"
)

// RejectsCmd returns the rejects command.
func RejectsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rejects",
		Short: "List recorded rejections with triage guidance",
		Long: `Scan the submission log for rejected outcomes and annotate each
reject code with its RC4018 category, summary, and remediation.`,
		RunE: runRejects,
	}
	cmd.Flags().Int("limit", 50, "Maximum rejections to list")
	return cmd
}

func runRejects(cmd *cobra.Command, args []string) error {
	svc, cleanup, err := openService(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	limit, _ := cmd.Flags().GetInt("limit")
	rejected, err := svc.RejectScan(cmd.Context(), limit)
	if err != nil {
		return err
	}
	if len(rejected) == 0 {
		fmt.Println("no rejected submissions recorded")
		return nil
	}

	for _, r := range rejected {
		info := rejectcode.Lookup(r.ErrorCode)
		fmt.Printf("%s  %s  [%s]\n",
			r.RefID,
			color.New(color.FgYellow).Sprint(r.ErrorCode),
			info.Category)
		fmt.Printf("  %s\n", info.Summary)
		fmt.Printf("  fix: %s\n", info.Remediation)
		if r.Detail != "" {
			fmt.Printf("  detail: %s\n", r.Detail)
		}
	}
	return nil
}
