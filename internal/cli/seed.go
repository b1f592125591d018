package cli

import (
	"github.com/spf13/cobra"

	"github.com/parakh/adaptive-exam/internal/exam"
	"github.com/parakh/adaptive-exam/internal/seed"
	"github.com/parakh/adaptive-exam/internal/users"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the demo question bank and demo accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, log, dbh, err := setup(cmd)
		if err != nil {
			return err
		}
		defer dbh.Close()

		var uw seed.UserWriter
		if withUsers, _ := cmd.Flags().GetBool("users"); withUsers {
			uw = users.NewSQLStore(dbh)
		}
		res, err := seed.Run(cmd.Context(), exam.NewSQLStore(dbh), uw, log)
		if err != nil {
			return err
		}
		cmd.Printf("questions: %d inserted, %d updated; users: %d\n",
			res.QuestionsInserted, res.QuestionsUpdated, res.Users)
		return nil
	},
}

func init() {
	seedCmd.Flags().Bool("users", true, "Also create the demo accounts (password: "+seed.DemoPassword+")")
}
