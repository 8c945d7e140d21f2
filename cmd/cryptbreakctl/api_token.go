package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/RowanDark/cryptbreak/internal/api"
)

func (c *cli) runAPITokenNew(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("api-token new", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	endpoint := fs.String("endpoint", "http://"+c.cfg.HTTPAddr, "base URL of the cryptbreakd REST API")
	subject := fs.String("subject", "cli", "subject claim for the issued token")
	audience := fs.String("audience", "cryptbreak-api", "audience claim for the issued token")
	role := fs.String("role", "", "optional role claim")
	ttl := fs.Duration("ttl", time.Hour, "requested token lifetime")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if strings.TrimSpace(c.token) == "" {
		fmt.Fprintln(c.stderr, "auth_token is not configured; set it or pass --token before issuing API tokens")
		return 1
	}
	sub := strings.TrimSpace(*subject)
	if sub == "" {
		fmt.Fprintln(c.stderr, "--subject must not be empty")
		return 2
	}
	if *ttl <= 0 {
		*ttl = time.Hour
	}

	body, err := json.Marshal(map[string]any{
		"subject":     sub,
		"audience":    strings.TrimSpace(*audience),
		"role":        strings.TrimSpace(*role),
		"ttl_seconds": ttl.Seconds(),
	})
	if err != nil {
		fmt.Fprintf(c.stderr, "encode request: %v\n", err)
		return 1
	}

	url := strings.TrimRight(strings.TrimSpace(*endpoint), "/") + "/api/v1/api-tokens"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(c.stderr, "build request: %v\n", err)
		return 1
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(api.TokenHeader, c.token)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Fprintf(c.stderr, "request api token: %v\n", err)
		return 1
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(c.stderr, "api rejected request: %s\n", resp.Status)
		return 1
	}

	var result struct {
		Token     string `json:"token"`
		ExpiresAt string `json:"expires_at"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		fmt.Fprintf(c.stderr, "decode response: %v\n", err)
		return 1
	}
	token := strings.TrimSpace(result.Token)
	if token == "" {
		fmt.Fprintln(c.stderr, "api returned empty token")
		return 1
	}
	fmt.Fprintln(c.stdout, token)
	if trimmed := strings.TrimSpace(result.ExpiresAt); trimmed != "" {
		fmt.Fprintf(c.stdout, "expires_at: %s\n", trimmed)
	}
	return 0
}
