package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/hamed0406/pingwatch/internal/sweep"
)

func main() {
	api := flag.String("api", envOr("API_BASE", "http://localhost:8080"), "API base URL")
	key := flag.String("key", os.Getenv("ADMIN_API_KEY"), "admin API key")
	timeout := flag.Duration("timeout", 5*time.Minute, "how long to wait for the sweep")
	flag.Parse()

	req, err := http.NewRequest(http.MethodPost, *api+"/api/sweeps", nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Invalid API base:", err)
		os.Exit(1)
	}
	if *key != "" {
		req.Header.Set("X-API-Key", *key)
	}

	client := &http.Client{Timeout: *timeout}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error contacting API:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		fmt.Fprintln(os.Stderr, "API returned status:", resp.Status)
		os.Exit(1)
	}

	var sum sweep.Summary
	if err := json.NewDecoder(resp.Body).Decode(&sum); err != nil {
		fmt.Fprintln(os.Stderr, "Bad response:", err)
		os.Exit(1)
	}
	fmt.Printf("sweep %s: %d monitors, %d up, %d failing, %d errors (%d went down, %d recovered) in %s\n",
		sum.RunID, sum.Monitors, sum.Succeeded, sum.Failed, sum.Errors, sum.Down, sum.Up, sum.Duration.Round(time.Millisecond))
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
