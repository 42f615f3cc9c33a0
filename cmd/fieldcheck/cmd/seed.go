package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmensah/fieldcheck/internal/config"
	"github.com/jmensah/fieldcheck/records"
)

var seedFile string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load demo records from a JSON fixture",
	Long: `Loads persons, wanted records, cases and vehicles from a JSON file
into the record catalog. For demos and staging; production record data
comes from upstream systems.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		repo, closeRepo, err := openRepository(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer closeRepo()

		n, err := records.NewCatalog(repo).LoadSeedFile(seedFile)
		if err != nil {
			return fmt.Errorf("seeding records: %w", err)
		}
		fmt.Printf("Loaded %d records from %s\n", n, seedFile)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
	seedCmd.Flags().StringVar(&seedFile, "file", "seed.json", "Path to the JSON fixture")
}
