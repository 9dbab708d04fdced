package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lekki-homes/leadflow/internal/insight"
	"github.com/lekki-homes/leadflow/internal/model"
)

var insightsCmd = &cobra.Command{
	Use:   "insights",
	Short: "Print the portfolio projection and per-lead triage view",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context(), "insights")
		if err != nil {
			return err
		}
		defer env.Close()

		leads, err := env.Store.ListLeads(cmd.Context())
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		type leadView struct {
			Lead    model.Lead          `json:"lead"`
			Insight insight.LeadInsight `json:"insight"`
		}
		views := make([]leadView, 0, len(leads))
		for _, l := range leads {
			views = append(views, leadView{Lead: l, Insight: insight.BuildLeadInsight(l, now)})
		}

		out, _ := json.MarshalIndent(map[string]any{
			"portfolio": insight.BuildPortfolioInsight(leads, now),
			"leads":     views,
		}, "", "  ")
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(insightsCmd)
}
