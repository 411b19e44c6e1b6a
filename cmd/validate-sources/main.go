package main

import (
	"fmt"
	"os"

	"github.com/marcelsud/webhook-pipeline/source"
)

/* validate-sources - Standalone CLI tool to validate sources.yaml
 * Usage: go run cmd/validate-sources/main.go [sources.yaml]
 * Exit codes: 0 = valid, 1 = invalid
 */

func main() {
	// Get sources file path from args or use default
	sourcesFile := "sources.yaml"
	if len(os.Args) > 1 {
		sourcesFile = os.Args[1]
	}

	// Print validation header
	fmt.Printf("Validating sources file: %s\n", sourcesFile)
	fmt.Println(string(make([]byte, 50))) // separator line

	// Create loader and attempt to load sources
	loader := source.NewLoader()
	if err := loader.Load(sourcesFile); err != nil {
		fmt.Fprintf(os.Stderr, "❌ VALIDATION FAILED\n\n")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Success - print loaded sources
	loadedSources := loader.List()
	fmt.Printf("✓ VALIDATION PASSED\n\n")
	fmt.Printf("Loaded %d source(s):\n", len(loadedSources))

	for i, src := range loadedSources {
		fmt.Printf("\n%d. Source: %s\n", i+1, src.Name)
		fmt.Printf("   Enabled:        %t\n", src.Enabled)
		fmt.Printf("   Rate Limit:     %d/min\n", src.RateLimitPerMinute)
		fmt.Printf("   Max Retries:    %d\n", src.MaxRetries)
		fmt.Printf("   Backoff:        %s (base %s, max %s)\n", src.Backoff.Strategy, src.Backoff.BaseDelay, src.Backoff.MaxDelay)
		fmt.Printf("   Breaker:        %d failures / %d successes / %s recovery\n",
			src.Breaker.FailureThreshold, src.Breaker.SuccessThreshold, src.Breaker.RecoveryTimeout)

		if src.Secret != "" {
			fmt.Printf("   Signature:      required (header %s)\n", src.SignatureHeader)
		}
		for _, t := range src.EventTypes {
			fmt.Printf("   Event Type:     %s\n", t)
		}
	}

	fmt.Printf("\n✓ All sources are valid!\n")
	os.Exit(0)
}
