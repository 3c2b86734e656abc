package main

import (
	"encoding/json"
	"errors"

	"github.com/spf13/cobra"

	"github.com/festy23/contribution_engine/internal/app"
	"github.com/festy23/contribution_engine/internal/seed"
)

var seedCmd = &cobra.Command{
	Use:   "seed [file]",
	Short: "Register repositories and publish scoring rules from a YAML file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(cmd *cobra.Command, a *app.App) error {
			path := a.Config.Engine.RulesFile
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				return errors.New("no seed file given and RULES_FILE is empty")
			}

			file, err := seed.Load(path)
			if err != nil {
				return err
			}
			res, err := a.Seeder().Apply(cmd.Context(), file)
			if err != nil {
				return err
			}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(res)
		})(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
