package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmensah/fieldcheck/directory"
	"github.com/jmensah/fieldcheck/internal/config"
)

var enrollParams directory.EnrollParams

var enrollCmd = &cobra.Command{
	Use:   "enroll",
	Short: "Enroll an officer directly against storage",
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

		o, err := directory.NewRegistry(repo).Enroll(enrollParams)
		if err != nil {
			return fmt.Errorf("enrolling officer: %w", err)
		}
		limit := o.DailyQueryLimit
		if limit <= 0 {
			limit = cfg.RateLimit.DailyLimit
		}
		fmt.Printf("Enrolled %s (%s)\n  id:    %s\n  phone: %s\n  limit: %d queries/day\n",
			o.FullName, o.Badge, o.ID, o.Phone, limit)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(enrollCmd)
	enrollCmd.Flags().StringVar(&enrollParams.Badge, "badge", "", "Badge number")
	enrollCmd.Flags().StringVar(&enrollParams.FullName, "name", "", "Full name")
	enrollCmd.Flags().StringVar(&enrollParams.Station, "station", "", "Station")
	enrollCmd.Flags().StringVar(&enrollParams.Rank, "rank", "", "Rank")
	enrollCmd.Flags().StringVar(&enrollParams.Phone, "phone", "", "E.164 phone number")
	enrollCmd.Flags().StringVar(&enrollParams.PIN, "pin", "", "4-digit Quick PIN")
	enrollCmd.Flags().IntVar(&enrollParams.DailyQueryLimit, "daily-limit", 0, "Per-officer daily query limit (0 = default)")
	enrollCmd.MarkFlagRequired("badge")
	enrollCmd.MarkFlagRequired("name")
	enrollCmd.MarkFlagRequired("phone")
	enrollCmd.MarkFlagRequired("pin")
}
