package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var (
	serverURL string
	Version   = "dev"
)

type apiKey struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	APIKey    string    `json:"api_key"`
	CreatedAt time.Time `json:"created_at"`
}

type limitConfig struct {
	ID            string    `json:"id"`
	APIKey        string    `json:"api_key"`
	Algorithm     string    `json:"algorithm"`
	MaxRequests   int       `json:"max_requests"`
	WindowSeconds float64   `json:"window_seconds"`
	CreatedAt     time.Time `json:"created_at"`
}

type requestLog struct {
	APIKey         string    `json:"api_key"`
	Endpoint       string    `json:"endpoint"`
	Algorithm      string    `json:"algorithm"`
	Allowed        bool      `json:"allowed"`
	RemainingQuota int       `json:"remaining_quota"`
	Timestamp      time.Time `json:"timestamp"`
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "limitctl",
		Short: "limitctl - manage the limitd rate limiter",
		Long:  "Manage api keys, rate limit configs, and load tests against a limitd server",
	}

	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", "http://localhost:8080", "limitd server URL")

	rootCmd.AddCommand(
		statusCmd(),
		keysCmd(),
		createKeyCmd(),
		configsCmd(),
		configureCmd(),
		logsCmd(),
		summaryCmd(),
		loadTestCmd(),
		resetCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show server status",
		RunE: func(cmd *cobra.Command, args []string) error {
			var status struct {
				Status              string         `json:"status"`
				ActiveAPIKeys       int64          `json:"active_api_keys"`
				ActiveConfigs       int64          `json:"active_configs"`
				TotalRequestsLogged int64          `json:"total_requests_logged"`
				ActiveRateLimiters  map[string]int `json:"active_rate_limiters"`
			}
			if err := getJSON("/api/system-status", &status); err != nil {
				return err
			}

			fmt.Printf("limitd Status\n")
			fmt.Printf("=============\n\n")
			fmt.Printf("Status:            %s\n", status.Status)
			fmt.Printf("API Keys:          %d\n", status.ActiveAPIKeys)
			fmt.Printf("Configs:           %d\n", status.ActiveConfigs)
			fmt.Printf("Requests Logged:   %d\n", status.TotalRequestsLogged)
			for alg, n := range status.ActiveRateLimiters {
				fmt.Printf("Live %-16s %d\n", alg+":", n)
			}
			return nil
		},
	}
}

func keysCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "keys",
		Aliases: []string{"ls", "list"},
		Short:   "List api keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			var keys []apiKey
			if err := getJSON("/api/api-keys", &keys); err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tAPI KEY\tCREATED")
			fmt.Fprintln(w, "----\t-------\t-------")
			for _, k := range keys {
				fmt.Fprintf(w, "%s\t%s\t%s ago\n", k.Name, k.APIKey, time.Since(k.CreatedAt).Round(time.Second))
			}
			w.Flush()
			return nil
		},
	}
}

func createKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create-key [name]",
		Short: "Create a new api key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var key apiKey
			if err := postJSON("/api/api-keys", map[string]any{"name": args[0]}, &key); err != nil {
				return err
			}
			fmt.Printf("Created key %q: %s\n", key.Name, key.APIKey)
			return nil
		},
	}
}

func configsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "configs",
		Short: "List rate limit configs",
		RunE: func(cmd *cobra.Command, args []string) error {
			var configs []limitConfig
			if err := getJSON("/api/rate-limit-configs", &configs); err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "API KEY\tALGORITHM\tMAX\tWINDOW\tCREATED")
			fmt.Fprintln(w, "-------\t---------\t---\t------\t-------")
			for _, c := range configs {
				fmt.Fprintf(w, "%s\t%s\t%d\t%gs\t%s ago\n", c.APIKey, c.Algorithm, c.MaxRequests, c.WindowSeconds, time.Since(c.CreatedAt).Round(time.Second))
			}
			w.Flush()
			return nil
		},
	}
}

func configureCmd() *cobra.Command {
	var (
		algorithm     string
		maxRequests   int
		windowSeconds float64
	)
	cmd := &cobra.Command{
		Use:   "configure [api-key]",
		Short: "Set the rate limit config for an api key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var cfg limitConfig
			body := map[string]any{
				"api_key":        args[0],
				"algorithm":      algorithm,
				"max_requests":   maxRequests,
				"window_seconds": windowSeconds,
			}
			if err := postJSON("/api/rate-limit-configs", body, &cfg); err != nil {
				return err
			}
			fmt.Printf("Configured %s: %s %d req / %gs\n", cfg.APIKey, cfg.Algorithm, cfg.MaxRequests, cfg.WindowSeconds)
			return nil
		},
	}
	cmd.Flags().StringVarP(&algorithm, "algorithm", "a", "token_bucket", "token_bucket | leaky_bucket | fixed_window | sliding_window")
	cmd.Flags().IntVarP(&maxRequests, "max-requests", "m", 100, "Max requests per window")
	cmd.Flags().Float64VarP(&windowSeconds, "window", "w", 60, "Window length in seconds")
	return cmd
}

func logsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recent decisions",
		RunE: func(cmd *cobra.Command, args []string) error {
			var logs []requestLog
			if err := getJSON(fmt.Sprintf("/api/analytics/recent-logs?limit=%d", limit), &logs); err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tAPI KEY\tALGORITHM\tRESULT\tREMAINING")
			fmt.Fprintln(w, "----\t-------\t---------\t------\t---------")
			for _, l := range logs {
				result := "allowed"
				if !l.Allowed {
					result = "blocked"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n", l.Timestamp.Format("15:04:05"), l.APIKey, l.Algorithm, result, l.RemainingQuota)
			}
			w.Flush()
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of logs to fetch")
	return cmd
}

func summaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show analytics summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			var summary struct {
				TotalRequests   int64   `json:"total_requests"`
				AllowedRequests int64   `json:"allowed_requests"`
				BlockedRequests int64   `json:"blocked_requests"`
				SuccessRate     float64 `json:"success_rate"`
				AlgorithmStats  map[string]struct {
					Total       int64   `json:"total"`
					Allowed     int64   `json:"allowed"`
					Blocked     int64   `json:"blocked"`
					SuccessRate float64 `json:"success_rate"`
				} `json:"algorithm_stats"`
			}
			if err := getJSON("/api/analytics/summary", &summary); err != nil {
				return err
			}

			fmt.Printf("Total:        %d\n", summary.TotalRequests)
			fmt.Printf("Allowed:      %d\n", summary.AllowedRequests)
			fmt.Printf("Blocked:      %d\n", summary.BlockedRequests)
			fmt.Printf("Success Rate: %.2f%%\n\n", summary.SuccessRate)

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ALGORITHM\tTOTAL\tALLOWED\tBLOCKED\tSUCCESS")
			for alg, stats := range summary.AlgorithmStats {
				fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%.2f%%\n", alg, stats.Total, stats.Allowed, stats.Blocked, stats.SuccessRate)
			}
			w.Flush()
			return nil
		},
	}
}

func loadTestCmd() *cobra.Command {
	var (
		rps      int
		duration int
	)
	cmd := &cobra.Command{
		Use:   "load-test [api-key]",
		Short: "Run a server-side load test",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result struct {
				TotalRequests  int     `json:"total_requests"`
				Allowed        int     `json:"allowed"`
				Blocked        int     `json:"blocked"`
				SuccessRate    float64 `json:"success_rate"`
				ActualDuration float64 `json:"actual_duration"`
			}
			body := map[string]any{
				"api_key":             args[0],
				"requests_per_second": rps,
				"duration_seconds":    duration,
			}
			if err := postJSON("/api/load-test", body, &result); err != nil {
				return err
			}

			fmt.Printf("Load Test Result\n")
			fmt.Printf("================\n\n")
			fmt.Printf("Total:        %d\n", result.TotalRequests)
			fmt.Printf("Allowed:      %d\n", result.Allowed)
			fmt.Printf("Blocked:      %d\n", result.Blocked)
			fmt.Printf("Success Rate: %.2f%%\n", result.SuccessRate)
			fmt.Printf("Duration:     %.2fs\n", result.ActualDuration)
			return nil
		},
	}
	cmd.Flags().IntVarP(&rps, "rps", "r", 10, "Requests per second")
	cmd.Flags().IntVarP(&duration, "duration", "d", 5, "Duration in seconds")
	return cmd
}

func resetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Reset statistics and live limiters",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := http.NewRequest(http.MethodDelete, serverURL+"/api/reset-stats", nil)
			if err != nil {
				return err
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return fmt.Errorf("failed to connect to server: %w", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("server returned status %d", resp.StatusCode)
			}
			fmt.Println("Statistics reset")
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("limitctl version %s\n", Version)
		},
	}
}

func getJSON(path string, out any) error {
	resp, err := http.Get(serverURL + path)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}

func postJSON(path string, payload any, out any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	resp, err := http.Post(serverURL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	return json.Unmarshal(body, out)
}
