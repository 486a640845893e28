// Seed registers a batch of demo worker backends against a running
// scheduler, configures a selection policy, and runs a few selections to
// show the rotation.
//
// Usage:
//
//	go run seed.go -addr http://localhost:8080 -app demo-app -workers 3
//	go run seed.go -addr http://localhost:8080 -app demo-app -policy weighted -limit 2
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/angeloszaimis/backend-scheduler/pkg/client"
)

func main() {
	var (
		addr       = flag.String("addr", "http://localhost:8080", "Scheduler base URL")
		apiKey     = flag.String("key", "dev-key", "API key")
		appID      = flag.String("app", "demo-app", "App id to register under")
		workers    = flag.Int("workers", 3, "Number of demo workers to register")
		policyType = flag.String("policy", "", "Policy type to configure (optional)")
		limit      = flag.Int("limit", 1, "Policy limit")
		selections = flag.Int("selections", 5, "Number of selections to run afterwards")
	)
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	c := client.New(*addr, *apiKey)

	for i := 0; i < *workers; i++ {
		instanceID := fmt.Sprintf("demo-worker-%d", i+1)
		weight := i + 1

		resp, err := c.RegisterBackend(ctx, *appID, instanceID, weight)
		if err != nil {
			log.Fatalf("register %s: %v", instanceID, err)
		}
		if resp.Code != 0 {
			log.Printf("register %s skipped: %s", instanceID, resp.Msg)
			continue
		}

		log.Printf("registered %s (weight %d)", instanceID, weight)
	}

	if *policyType != "" {
		resp, err := c.UpdatePolicy(ctx, *appID, *policyType, *limit)
		if err != nil {
			log.Fatalf("update policy: %v", err)
		}
		if resp.Code != 0 {
			log.Fatalf("update policy rejected: %s", resp.Msg)
		}
		log.Printf("policy set to %s (limit %d)", *policyType, *limit)
	}

	for i := 0; i < *selections; i++ {
		resp, err := c.SelectBackends(ctx, *appID, "")
		if err != nil {
			log.Fatalf("select backends: %v", err)
		}

		var selected []struct {
			ID         string `json:"id"`
			InstanceID string `json:"instance_id"`
		}
		if err := json.Unmarshal(resp.Data, &selected); err != nil {
			log.Fatalf("decode selection: %v", err)
		}

		ids := make([]string, 0, len(selected))
		for _, b := range selected {
			ids = append(ids, b.InstanceID)
		}
		log.Printf("selection %d: %v", i+1, ids)
	}
}
