package cli

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// PurgeCmd returns the purge command.
func PurgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete retention records past their purge-eligible date",
		Long: `Irreversibly delete retained consent artifacts whose purge-eligible
date (signature date plus the statutory retention period) has passed.
Records still inside the retention window are never touched.`,
		RunE: runPurge,
	}
	cmd.Flags().String("as-of", "", "Purge as of this RFC 3339 time instead of now")
	return cmd
}

func runPurge(cmd *cobra.Command, args []string) error {
	svc, cleanup, err := openService(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	now := time.Now().UTC()
	if asOf, _ := cmd.Flags().GetString("as-of"); asOf != "" {
		parsed, err := time.Parse(time.RFC3339, asOf)
		if err != nil {
			return fmt.Errorf("invalid --as-of value: %w", err)
		}
		now = parsed
	}

	count, ids, err := svc.Retention().Purge(cmd.Context(), now)
	if err != nil {
		return err
	}
	if count == 0 {
		fmt.Println("nothing purge-eligible")
		return nil
	}
	fmt.Printf("%s %d record(s)\n", color.New(color.FgRed).Sprint("purged"), count)
	for _, id := range ids {
		fmt.Printf("  %s\n", id)
	}
	return nil
}
