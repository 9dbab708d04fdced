package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/lekki-homes/leadflow/internal/intake"
)

var webhookFile string

var webhookCmd = &cobra.Command{
	Use:   "webhook",
	Short: "Process a single lead submission from a file or stdin",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context(), "webhook")
		if err != nil {
			return err
		}
		defer env.Close()

		var body []byte
		if webhookFile == "" || webhookFile == "-" {
			body, err = io.ReadAll(os.Stdin)
		} else {
			body, err = os.ReadFile(webhookFile)
		}
		if err != nil {
			return eris.Wrap(err, "read payload")
		}

		payload, err := intake.ParsePayload(body, "")
		if err != nil {
			return err
		}

		result, err := env.Intake.Process(cmd.Context(), payload)
		if err != nil {
			return err
		}

		out, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	webhookCmd.Flags().StringVarP(&webhookFile, "file", "f", "", "payload file (default stdin)")
	rootCmd.AddCommand(webhookCmd)
}
