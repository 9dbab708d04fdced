package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/lekki-homes/leadflow/internal/approval"
	"github.com/lekki-homes/leadflow/internal/model"
)

var (
	sendBody       string
	sendBodyFile   string
	sendThreadID   string
	sendExpectedAs string
)

var sendCmd = &cobra.Command{
	Use:   "send <draft-id>",
	Short: "Approve a draft and send it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context(), "send")
		if err != nil {
			return err
		}
		defer env.Close()

		draftID := args[0]

		body := sendBody
		if sendBodyFile != "" {
			b, err := os.ReadFile(sendBodyFile)
			if err != nil {
				return eris.Wrap(err, "read body file")
			}
			body = string(b)
		}
		if body == "" || sendThreadID == "" {
			// Fill from the stored draft when not supplied.
			rec, err := env.Store.GetEmail(cmd.Context(), draftID)
			if err != nil {
				return err
			}
			if body == "" {
				body = rec.Body
			}
			if sendThreadID == "" {
				sendThreadID = rec.ThreadID
			}
		}

		out, err := env.Approval.Send(cmd.Context(), approval.Input{
			DraftID:        draftID,
			ExpectedStatus: model.DraftStatus(sendExpectedAs),
			Body:           body,
			ThreadID:       sendThreadID,
		})
		if err != nil {
			return err
		}

		enc, _ := json.MarshalIndent(out, "", "  ")
		fmt.Println(string(enc))
		return nil
	},
}

func init() {
	sendCmd.Flags().StringVar(&sendBody, "body", "", "final body text (overrides the stored draft)")
	sendCmd.Flags().StringVar(&sendBodyFile, "body-file", "", "read final body from file")
	sendCmd.Flags().StringVar(&sendThreadID, "thread", "", "expected thread id")
	sendCmd.Flags().StringVar(&sendExpectedAs, "expect-status", string(model.DraftPendingApproval), "status the draft must be in")
	rootCmd.AddCommand(sendCmd)
}
