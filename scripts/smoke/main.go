// Command smoke drives a running booking API through the core admission
// flow and exits non-zero on the first contract violation. It is meant for
// post-deploy verification against a staging database, not as a test suite.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

type check struct {
	Name     string
	Method   string
	Path     string
	Body     map[string]interface{}
	Expect   int
	Duration time.Duration
	Err      error
}

func main() {
	var (
		base    string
		date    string
		timeout time.Duration
	)
	flag.StringVar(&base, "base", "http://localhost:8080", "booking API base URL")
	flag.StringVar(&date, "date", time.Now().AddDate(0, 0, 2).Format("2006-01-02"), "session date used for the probe booking")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "HTTP client timeout")
	flag.Parse()

	attempt := map[string]interface{}{
		"booking_type":      "Product Training",
		"school_name":       "Smoke Check School",
		"curriculum":        "CBSE",
		"subject":           "Mathematics",
		"date":              date,
		"slot":              "15:00–15:40",
		"salesperson_name":  "Smoke Check",
		"salesperson_phone": "0000000000",
		"salesperson_email": "smoke@example.com",
	}

	checks := []check{
		{Name: "liveness", Method: http.MethodGet, Path: "/health", Expect: http.StatusOK},
		{Name: "readiness", Method: http.MethodGet, Path: "/ready", Expect: http.StatusOK},
		{Name: "subjects", Method: http.MethodGet, Path: "/api/v1/subjects", Expect: http.StatusOK},
		{Name: "slots", Method: http.MethodGet, Path: "/api/v1/slots", Expect: http.StatusOK},
		{Name: "availability", Method: http.MethodGet,
			Path: "/api/v1/availability?subject=Mathematics&date=" + date + "&slot=15:00–15:40", Expect: http.StatusOK},
		{Name: "booking accepted", Method: http.MethodPost, Path: "/api/v1/bookings", Body: attempt, Expect: http.StatusCreated},
		{Name: "duplicate rejected", Method: http.MethodPost, Path: "/api/v1/bookings", Body: attempt, Expect: http.StatusConflict},
	}

	client := &http.Client{Timeout: timeout}
	failed := 0
	var bookingID int64

	for i := range checks {
		c := &checks[i]
		status, payload, err := run(client, base, c)
		if err != nil {
			c.Err = err
			failed++
			continue
		}
		if status != c.Expect {
			c.Err = fmt.Errorf("expected %d, got %d", c.Expect, status)
			failed++
			continue
		}
		if c.Name == "booking accepted" {
			bookingID = extractBookingID(payload)
		}
	}

	// Clean up the probe booking so repeated runs start from the same state.
	if bookingID > 0 {
		cleanup := check{Name: "cleanup", Method: http.MethodDelete,
			Path: fmt.Sprintf("/api/v1/bookings/%d", bookingID), Expect: http.StatusNoContent}
		if status, _, err := run(client, base, &cleanup); err != nil || status != http.StatusNoContent {
			cleanup.Err = fmt.Errorf("cleanup failed: status=%d err=%v", status, err)
			failed++
		}
		checks = append(checks, cleanup)
	}

	for _, c := range checks {
		mark := "ok"
		detail := ""
		if c.Err != nil {
			mark = "FAIL"
			detail = " " + c.Err.Error()
		}
		fmt.Printf("%-20s %-6s %s (%s)%s\n", c.Name, mark, c.Path, c.Duration.Round(time.Millisecond), detail)
	}

	if failed > 0 {
		fmt.Printf("%d check(s) failed\n", failed)
		os.Exit(1)
	}
	fmt.Println("all checks passed")
}

func run(client *http.Client, base string, c *check) (int, []byte, error) {
	var body io.Reader
	if c.Body != nil {
		raw, err := json.Marshal(c.Body)
		if err != nil {
			return 0, nil, err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(c.Method, base+c.Path, body)
	if err != nil {
		return 0, nil, err
	}
	if c.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := client.Do(req)
	c.Duration = time.Since(start)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, payload, nil
}

func extractBookingID(payload []byte) int64 {
	var envelope struct {
		Data struct {
			BookingID int64 `json:"booking_id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return 0
	}
	return envelope.Data.BookingID
}
