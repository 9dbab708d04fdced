package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"go.uber.org/zap"
)

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Run one inbox poll cycle",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context(), "poll")
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Poll.RunCycle(cmd.Context())
		if err != nil {
			return err
		}

		zap.L().Info("poll cycle complete",
			zap.Int("fetched", res.Summary.Fetched),
			zap.Int("processed", res.Summary.Processed),
		)

		out, _ := json.MarshalIndent(res.Summary, "", "  ")
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pollCmd)
}
