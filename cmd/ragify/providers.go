package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/ragify/internal/config"
	"github.com/fyrsmithlabs/ragify/internal/provider"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List supported model providers",
	RunE:  runProviders,
}

func runProviders(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	registry := provider.NewRegistry(cfg.Models, nil)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tLLM MODEL\tEMBEDDING MODEL\tCONFIGURED")
	for _, info := range registry.Providers() {
		fmt.Fprintf(w, "%s\t%s\t%s\t%v\n",
			info.Name, info.DefaultLLMModel, info.DefaultEmbeddingModel, info.Configured)
	}
	return w.Flush()
}
