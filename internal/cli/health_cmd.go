package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jude27mad/tax-prep-app/pkg/reliability"
)

// HealthCmd returns the health command.
func HealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show the core's health surface",
		Long: `Print the circuit breaker state, the last accepted submission
reference, the schema versions in use, and the per-year transmit gate.`,
		RunE: runHealth,
	}
}

func runHealth(cmd *cobra.Command, args []string) error {
	svc, cleanup, err := openService(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	h, err := svc.Health(cmd.Context())
	if err != nil {
		return err
	}

	breaker := color.New(color.FgGreen).Sprint(h.Breaker.State.String())
	switch h.Breaker.State {
	case reliability.StateOpen:
		breaker = color.New(color.FgRed).Sprint(h.Breaker.State.String())
	case reliability.StateHalfOpen:
		breaker = color.New(color.FgYellow).Sprint(h.Breaker.State.String())
	}

	fmt.Printf("environment:    %s\n", h.Environment)
	fmt.Printf("breaker:        %s (failures %d)\n", breaker, h.Breaker.Failures)
	if !h.Breaker.RetryAt.IsZero() {
		fmt.Printf("  retry at:     %s\n", h.Breaker.RetryAt)
	}
	fmt.Printf("last accepted:  %s\n", orDash(h.LastAcceptedRef))
	fmt.Printf("digest:         %s\n", h.DigestAlgorithm)
	fmt.Printf("schemas:\n")
	for _, v := range h.SchemaVersions {
		fmt.Printf("  %s\n", v)
	}
	fmt.Printf("transmit gate:\n")
	for _, g := range h.TransmitGate {
		if g.Allowed {
			fmt.Printf("  %d: %s\n", g.Year, color.New(color.FgGreen).Sprint("open"))
		} else {
			fmt.Printf("  %d: %s (%s)\n", g.Year, color.New(color.FgYellow).Sprint("closed"), g.Message)
		}
	}
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
