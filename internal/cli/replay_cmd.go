package cli

import (
	"fmt"
	"sync"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jude27mad/tax-prep-app/pkg/transport"
)

// ReplayCmd returns the replay command.
func ReplayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay REF [REF...]",
		Short: "Re-feed stored envelopes through the transmission client",
		Long: `Replay previously assembled submissions against the configured
endpoint, for certification testing and for recovery after the circuit
breaker interrupted delivery. Each reference is replayed once; outcomes
update the submission log and digest ledger.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runReplay,
	}
	cmd.Flags().Int("parallel", 1, "Number of replays in flight at once")
	return cmd
}

func runReplay(cmd *cobra.Command, args []string) error {
	svc, cleanup, err := openService(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	parallel, _ := cmd.Flags().GetInt("parallel")
	if parallel < 1 {
		parallel = 1
	}

	var mu sync.Mutex
	results := make(map[string]string, len(args))

	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(parallel)
	for _, refID := range args {
		refID := refID
		g.Go(func() error {
			res, err := svc.Replay(ctx, refID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil && res == nil:
				results[refID] = color.New(color.FgRed).Sprintf("failed: %v", err)
			case res.Outcome.Kind == transport.OutcomeAccepted:
				results[refID] = color.New(color.FgGreen).Sprintf("accepted (%s)", res.Outcome.ConfirmationID)
			case res.Outcome.Kind == transport.OutcomeRejected:
				results[refID] = color.New(color.FgYellow).Sprintf("rejected (%s)", res.Outcome.ErrorCode)
			default:
				results[refID] = color.New(color.FgRed).Sprintf("errored after %d attempts", len(res.Outcome.Attempts))
			}
			// Replay outcomes are reported per reference; a rejection or
			// breaker trip on one must not cancel the rest.
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, refID := range args {
		fmt.Printf("%s: %s\n", refID, results[refID])
	}
	return nil
}
