// Package cli implements the efilectl commands. Every command calls into
// the core's public operations only; nothing here touches the database or
// retention rows directly.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jude27mad/tax-prep-app/internal/config"
	"github.com/jude27mad/tax-prep-app/internal/efile"
	"github.com/jude27mad/tax-prep-app/internal/store"
)

// openService loads configuration and wires the core for one command run.
// The returned cleanup closes the store.
func openService(cmd *cobra.Command) (*efile.Service, func(), error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	db, err := store.Open(cfg.Storage.Path)
	if err != nil {
		return nil, nil, err
	}
	svc, err := efile.NewService(cfg, db, nil)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return svc, func() {
		if err := db.Close(); err != nil {
			fmt.Printf("warning: closing store: %v\n", err)
		}
	}, nil
}
