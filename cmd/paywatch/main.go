// Command paywatch polls a deployment's payment-status endpoint after a
// checkout, the same loop the web client runs on the pending-credits page.
// Useful for confirming a webhook landed without a browser in the loop.
//
// Usage:
//
//	paywatch -base https://api.example.com -token $JWT -session cs_test_...
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/NemoPS/youtube-comments-analyzer/app"
)

func main() {
	base := flag.String("base", "http://localhost:8080", "API base URL")
	token := flag.String("token", "", "bearer token for the authenticated user")
	sessionID := flag.String("session", "", "checkout session id to watch")
	flag.Parse()

	if *sessionID == "" {
		log.Fatal("-session is required")
	}

	httpc := &http.Client{Timeout: 10 * time.Second}

	poller := app.NewPaymentPoller(func(ctx context.Context, sessionID string) (bool, error) {
		u := fmt.Sprintf("%s/api/billing/status?session_id=%s", *base, url.QueryEscape(sessionID))
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return false, err
		}
		if *token != "" {
			req.Header.Set("Authorization", "Bearer "+*token)
		}

		res, err := httpc.Do(req)
		if err != nil {
			return false, err
		}
		defer res.Body.Close()

		if res.StatusCode != http.StatusOK {
			return false, fmt.Errorf("status endpoint returned %d", res.StatusCode)
		}

		var body struct {
			WebhookProcessed bool `json:"webhookProcessed"`
		}
		if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
			return false, err
		}
		return body.WebhookProcessed, nil
	})

	result, err := poller.Wait(context.Background(), *sessionID)
	if err != nil {
		log.Printf("payment not confirmed after %d attempts: %v", result.Attempts, err)
		log.Printf("contact support with session id %s", *sessionID)
		os.Exit(1)
	}

	log.Printf("payment confirmed after %d attempt(s)", result.Attempts)
}
