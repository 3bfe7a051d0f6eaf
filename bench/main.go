// bench drives a remote limitd server's protected endpoint at a target rate
// over real HTTP, unlike the server's in-process load driver.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	serverURL = flag.String("server", "http://localhost:8080", "limitd server URL")
	apiKey    = flag.String("key", "", "API key to test")
	rps       = flag.Int("rps", 10, "Requests per second")
	duration  = flag.Int("duration", 10, "Duration in seconds")
	logLevel  = flag.String("log-level", "info", "Log level")
)

type testResponse struct {
	Algorithm      string `json:"algorithm"`
	RemainingQuota int    `json:"remaining_quota"`
}

func main() {
	flag.Parse()

	lvl, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(lvl).With().Timestamp().Logger()

	if *apiKey == "" {
		log.Fatal().Msg("-key is required")
	}
	if *rps <= 0 || *duration <= 0 {
		log.Fatal().Msg("-rps and -duration must be positive")
	}

	endpoint := *serverURL + "/api/protected/test?api_key=" + url.QueryEscape(*apiKey)
	client := &http.Client{Timeout: 10 * time.Second}
	retry := newRetrier(200, 2000, 3)

	total := *rps * *duration
	interval := time.Duration(float64(time.Second) / float64(*rps))

	log.Info().Int("total", total).Int("rps", *rps).Msg("Starting bench run")

	var allowed, blocked, failed int
	lastAlgorithm := ""
	start := time.Now()

	for i := 0; i < total; i++ {
		err := retry.do(func() error {
			status, resp, err := probe(client, endpoint)
			if err != nil {
				return err
			}
			switch {
			case status == http.StatusOK:
				allowed++
			case status == http.StatusTooManyRequests:
				blocked++
			case status >= 500:
				return serverStatusError{status: status}
			default:
				return fmt.Errorf("unexpected status %d", status)
			}
			if resp.Algorithm != "" {
				lastAlgorithm = resp.Algorithm
			}
			return nil
		}, isRetryableTransport)
		if err != nil {
			failed++
			log.Debug().Err(err).Int("request", i).Msg("Request failed")
		}

		time.Sleep(interval)
		if time.Since(start) > time.Duration(*duration)*time.Second {
			break
		}
	}

	elapsed := time.Since(start)
	issued := allowed + blocked + failed

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Algorithm:\t%s\n", lastAlgorithm)
	fmt.Fprintf(w, "Issued:\t%d\n", issued)
	fmt.Fprintf(w, "Allowed:\t%d\n", allowed)
	fmt.Fprintf(w, "Blocked:\t%d\n", blocked)
	fmt.Fprintf(w, "Failed:\t%d\n", failed)
	if issued > 0 {
		fmt.Fprintf(w, "Success Rate:\t%.2f%%\n", float64(allowed)/float64(issued)*100)
	}
	fmt.Fprintf(w, "Duration:\t%.2fs\n", elapsed.Seconds())
	w.Flush()
}

func probe(client *http.Client, endpoint string) (int, testResponse, error) {
	resp, err := client.Get(endpoint)
	if err != nil {
		return 0, testResponse{}, err
	}
	defer resp.Body.Close()

	var parsed testResponse
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, testResponse{}, err
	}
	if len(body) > 0 {
		// Error bodies that are not JSON are fine to skip; the status code
		// carries the outcome.
		_ = json.Unmarshal(body, &parsed)
	}
	return resp.StatusCode, parsed, nil
}
