package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"percept/internal/config"
)

// --- analyze ---

var analyzeCmd = &cobra.Command{
	Use:   "analyze <query>",
	Short: "Profile a query and print its context profile",
	Long: `Profile a query and print its context profile.

Examples:
  percept analyze "如何分析用户留存数据"
  percept analyze --json "compare transformer architectures"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		body := map[string]any{"query": args[0]}
		resp, err := client.post(cmd.Context(), "/analyze", body)
		if err != nil {
			return err
		}

		if asJSON {
			var result any
			if err := decodeJSON(resp, &result); err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		}

		var result struct {
			ID      string `json:"id"`
			Profile struct {
				Task struct {
					TaskType              string  `json:"task_type"`
					OpennessLevel         float64 `json:"openness_level"`
					CreativityRequirement float64 `json:"creativity_requirement"`
				} `json:"task_characteristics"`
				Elements struct {
					TimeDimension    string   `json:"time_dimension"`
					AbstractionLevel string   `json:"abstraction_level"`
					PurposeType      string   `json:"purpose_type"`
					DomainScope      []string `json:"domain_scope"`
					UrgencyLevel     float64  `json:"urgency_level"`
				} `json:"contextual_elements"`
				Needs struct {
					SupportPriority float64 `json:"support_priority"`
				} `json:"cognitive_needs"`
				ConfidenceScore float64 `json:"confidence_score"`
			} `json:"profile"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		p := result.Profile
		printStatus("Task type", "%s", p.Task.TaskType)
		printStatus("Time dimension", "%s", p.Elements.TimeDimension)
		printStatus("Abstraction", "%s", p.Elements.AbstractionLevel)
		printStatus("Purpose", "%s", p.Elements.PurposeType)
		printStatus("Domains", "%s", strings.Join(p.Elements.DomainScope, ", "))
		printStatus("Creativity", "%.2f", p.Task.CreativityRequirement)
		printStatus("Urgency", "%.2f", p.Elements.UrgencyLevel)
		printStatus("Support priority", "%.2f", p.Needs.SupportPriority)
		printStatus("Confidence", "%.2f", p.ConfidenceScore)
		printStatus("Run ID", "%s", result.ID)
		return nil
	},
}

func init() {
	analyzeCmd.Flags().Bool("json", false, "print the full profile as JSON")
}

// --- profile ---

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage the user profile",
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current profile as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/profile")
		if err != nil {
			return err
		}

		var profile any
		if err := decodeJSON(resp, &profile); err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(profile)
	},
}

var profileSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a profile field",
	Long: `Set a profile field.

Examples:
  percept profile set cognitive.thinking_mode creative
  percept profile set knowledge.core_domains "physics,artificial_intelligence"`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		body := map[string]any{key: value}
		resp, err := client.patch(cmd.Context(), "/profile", body)
		if err != nil {
			return err
		}

		var result any
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	profileCmd.AddCommand(profileShowCmd)
	profileCmd.AddCommand(profileSetCmd)
}

// --- analyses ---

var analysesCmd = &cobra.Command{
	Use:   "analyses",
	Short: "Browse stored analysis runs",
}

var analysesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent analysis runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), fmt.Sprintf("/analyses?limit=%d", limit))
		if err != nil {
			return err
		}

		var runs []struct {
			ID         string    `json:"id"`
			CreatedAt  time.Time `json:"created_at"`
			Query      string    `json:"query"`
			Confidence float64   `json:"confidence"`
		}
		if err := decodeJSON(resp, &runs); err != nil {
			return err
		}

		if len(runs) == 0 {
			fmt.Println("no analyses yet")
			return nil
		}
		for _, run := range runs {
			query := run.Query
			if len([]rune(query)) > 60 {
				query = string([]rune(query)[:60]) + "…"
			}
			fmt.Printf("%s  %s  %.2f  %s\n", run.ID, run.CreatedAt.Local().Format("2006-01-02 15:04"), run.Confidence, query)
		}
		return nil
	},
}

var analysesShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one analysis run as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/analyses/"+args[0])
		if err != nil {
			return err
		}

		var run any
		if err := decodeJSON(resp, &run); err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	},
}

var analysesDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an analysis run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), "/analyses/"+args[0])
		if err != nil {
			return err
		}
		resp.Body.Close()
		if resp.StatusCode >= 400 {
			return fmt.Errorf("server returned %d", resp.StatusCode)
		}

		printSuccess("Deleted analysis %s", args[0])
		return nil
	},
}

func init() {
	analysesListCmd.Flags().Int("limit", 20, "maximum runs to list")
	analysesCmd.AddCommand(analysesListCmd)
	analysesCmd.AddCommand(analysesShowCmd)
	analysesCmd.AddCommand(analysesDeleteCmd)
}

// --- ingest ---

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest evidence and grow the profile's domain tags",
	Long: `Ingest evidence and grow the profile's domain tags.

Examples:
  percept ingest --text "working on a neural network for protein folding"
  percept ingest --url https://example.com/article
  percept ingest --file ./paper.pdf`,
	RunE: func(cmd *cobra.Command, args []string) error {
		text, _ := cmd.Flags().GetString("text")
		url, _ := cmd.Flags().GetString("url")
		file, _ := cmd.Flags().GetString("file")
		name, _ := cmd.Flags().GetString("name")

		if text == "" && url == "" && file == "" {
			return fmt.Errorf("one of --text, --url, or --file is required")
		}

		source := map[string]any{}
		if name != "" {
			source["name"] = name
		}
		switch {
		case text != "":
			source["text"] = text
		case url != "":
			source["url"] = url
		case file != "":
			source["path"] = file
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/ingest", map[string]any{"sources": []any{source}})
		if err != nil {
			return err
		}

		var result struct {
			Results []struct {
				ID      string   `json:"id"`
				Kind    string   `json:"kind"`
				Domains []string `json:"domains"`
				Chars   int      `json:"chars"`
			} `json:"results"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		if len(result.Results) == 0 {
			return fmt.Errorf("server returned no results")
		}

		r := result.Results[0]
		printSuccess("Ingested %s evidence %s (%d chars)", r.Kind, r.ID, r.Chars)
		if len(r.Domains) > 0 {
			printStatus("Domains", "%s", strings.Join(r.Domains, ", "))
		}
		return nil
	},
}

func init() {
	ingestCmd.Flags().String("text", "", "text content to ingest")
	ingestCmd.Flags().String("url", "", "URL to fetch and ingest")
	ingestCmd.Flags().String("file", "", "file path to ingest (plain text or PDF)")
	ingestCmd.Flags().String("name", "", "source name recorded with the evidence")
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
