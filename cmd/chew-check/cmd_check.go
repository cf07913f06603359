// cmd/chew-check/cmd_check.go
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mcp-chew-check/internal/classifier"
	"mcp-chew-check/internal/models"
	"mcp-chew-check/internal/plan"
)

var (
	checkPlanPath string
	checkFoodName string
	checkExplain  bool
)

var checkCmd = &cobra.Command{
	Use:   "check [image-path]",
	Short: "Run one chew check from a photo or a food name",
	Example: `  chew-check check lunch.jpg --plan plan.yaml
  chew-check check --food "caramel apple" --plan plan.yaml --explain`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringVar(&checkPlanPath, "plan", "", "Treatment plan file (YAML or JSON)")
	checkCmd.Flags().StringVar(&checkFoodName, "food", "", "Food name to check instead of a photo")
	checkCmd.Flags().BoolVar(&checkExplain, "explain", false, "Also print a personalised explanation")
}

func runCheck(cmd *cobra.Command, args []string) error {
	foodName := strings.TrimSpace(checkFoodName)
	if len(args) == 0 && foodName == "" {
		return fmt.Errorf("an image path or --food is required")
	}

	uc := models.UserContext{}
	if checkPlanPath != "" {
		p, err := plan.LoadFromPath(checkPlanPath)
		if err != nil {
			return err
		}
		if uc, err = p.UserContext(time.Now()); err != nil {
			return fmt.Errorf("invalid plan: %w", err)
		}
	}

	req := classifier.Request{CorrectedName: foodName, Context: uc}
	if req.CorrectedName == "" {
		image, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read image: %w", err)
		}
		req.Image = image
	}

	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	check, err := a.service.Check(cmd.Context(), req)
	if err != nil {
		return err
	}

	out := map[string]interface{}{"check": check}
	if checkExplain {
		_, text, err := a.service.Explain(cmd.Context(), check.ID, uc)
		if err != nil {
			return err
		}
		out["explanation"] = text
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
