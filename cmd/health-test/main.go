package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Services  struct {
		Database struct {
			Status  string `json:"status"`
			Backend string `json:"backend"`
			Error   string `json:"error,omitempty"`
		} `json:"database"`
	} `json:"services"`
}

type StatsResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Total    int            `json:"total"`
		ByStatus map[string]int `json:"byStatus"`
	} `json:"data"`
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "server base URL")
	token := flag.String("token", "", "bearer token for the stats check")
	flag.Parse()

	base := strings.TrimSuffix(*baseURL, "/")
	client := &http.Client{Timeout: 10 * time.Second}

	fmt.Printf("🔍 Testing health endpoint: %s/health\n", base)
	var health HealthResponse
	status, err := getJSON(client, base+"/health", "", &health)
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}
	if status != http.StatusOK || health.Status != "ok" {
		fmt.Printf("❌ Health check failed with status %d: %s\n", status, health.Status)
		if health.Services.Database.Error != "" {
			fmt.Printf("   Database error: %s\n", health.Services.Database.Error)
		}
		os.Exit(1)
	}

	fmt.Printf("✅ Health check passed!\n")
	fmt.Printf("   Version: %s\n", health.Version)
	fmt.Printf("   Store: %s (%s)\n", health.Services.Database.Backend, health.Services.Database.Status)
	fmt.Printf("   Timestamp: %s\n", health.Timestamp)

	fmt.Printf("🔍 Fetching complaint statistics\n")
	var stats StatsResponse
	status, err = getJSON(client, base+"/api/v1/complaints/stats", *token, &stats)
	if err != nil || status != http.StatusOK || !stats.Success {
		fmt.Printf("❌ Statistics check failed (status %d): %v\n", status, err)
		os.Exit(1)
	}
	fmt.Printf("✅ %d complaints on file\n", stats.Data.Total)
	for s, n := range stats.Data.ByStatus {
		fmt.Printf("   %-12s %d\n", s, n)
	}
}

func getJSON(client *http.Client, url, token string, out interface{}) (int, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build request: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("error connecting to %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("error reading response: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return resp.StatusCode, fmt.Errorf("error parsing JSON response: %w (%s)", err, body)
	}
	return resp.StatusCode, nil
}
