// algolia-setup configures the Algolia borrower index settings.
// This is the IaC definition for the search index.
//
// Usage:
//
//	ALGOLIA_APP_ID=... ALGOLIA_ADMIN_KEY=... go run ./scripts/algolia-setup
//	ALGOLIA_APP_ID=... ALGOLIA_ADMIN_KEY=... ALGOLIA_INDEX_NAME=loanlens_borrowers go run ./scripts/algolia-setup
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/algolia/algoliasearch-client-go/v4/algolia/search"
)

func int32Ptr(v int32) *int32 { return &v }

func main() {
	appID := os.Getenv("ALGOLIA_APP_ID")
	adminKey := os.Getenv("ALGOLIA_ADMIN_KEY")
	indexName := os.Getenv("ALGOLIA_INDEX_NAME")

	if appID == "" || adminKey == "" {
		log.Fatal("ALGOLIA_APP_ID and ALGOLIA_ADMIN_KEY are required")
	}
	if indexName == "" {
		indexName = "loanlens_borrowers"
	}

	client, err := search.NewClient(appID, adminKey)
	if err != nil {
		log.Fatalf("Failed to create Algolia client: %v", err)
	}

	log.Printf("Configuring Algolia index %q (app: %s)...", indexName, appID)

	// =========================================================================
	// Index Settings — single source of truth for the Algolia index config
	// =========================================================================
	settings := &search.IndexSettings{
		// Searchable attributes in priority order
		SearchableAttributes: []string{
			"FullName",
			"Employers",
			"AccountNumbers",
		},

		// Attributes available for faceting/filtering
		AttributesForFaceting: []string{
			"filterOnly(DocumentId)",
			"filterOnly(NeedsReview)",
		},

		// Numeric attributes for range filters
		NumericAttributesForFiltering: []string{
			"ConfidenceScore",
			"CreatedAtUnix",
		},

		// Custom ranking (applied after text relevance):
		// most recently extracted borrowers first
		CustomRanking: []string{
			"desc(CreatedAtUnix)",
		},

		// Attributes to retrieve in search results. SSN hashes and source
		// snippets are never indexed, so there is nothing to exclude here.
		AttributesToRetrieve: []string{
			"objectID",
			"DocumentId",
			"FullName",
			"Employers",
			"AccountNumbers",
			"ConfidenceScore",
			"NeedsReview",
			"CreatedAtUnix",
		},

		AttributesToHighlight: []string{
			"FullName",
			"Employers",
		},

		// Pagination defaults
		HitsPerPage:       int32Ptr(25),
		MaxValuesPerFacet: int32Ptr(100),

		// Typo tolerance thresholds — account numbers must match exactly
		MinWordSizefor1Typo:  int32Ptr(4),
		MinWordSizefor2Typos: int32Ptr(8),
		DisableTypoToleranceOnAttributes: []string{
			"AccountNumbers",
		},
	}

	req := client.NewApiSetSettingsRequest(indexName, settings)
	resp, err := client.SetSettings(req)
	if err != nil {
		log.Fatalf("Failed to set index settings: %v", err)
	}

	log.Printf("Index settings applied (taskID: %d, updatedAt: %s)", resp.TaskID, resp.UpdatedAt)

	fmt.Println()
	fmt.Println("=== Algolia Index Configuration ===")
	fmt.Printf("Index:              %s\n", indexName)
	fmt.Printf("App ID:             %s\n", appID)
	fmt.Println()
	fmt.Println("Searchable attrs:   FullName, Employers, AccountNumbers")
	fmt.Println("Facet filters:      DocumentId, NeedsReview")
	fmt.Println("Numeric filters:    ConfidenceScore, CreatedAtUnix")
	fmt.Println("Custom ranking:     desc(CreatedAtUnix)")
	fmt.Println("Hits per page:      25")
	fmt.Println()
	fmt.Println("Done. Settings are applied asynchronously — they'll be active within seconds.")
}
