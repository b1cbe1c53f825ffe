// Command xray-sim simulates a competitor-selection pipeline instrumented
// with the X-Ray SDK: 5,000 candidate products are retrieved and filtered
// down to a handful of survivors, demonstrating context tracking across
// nested steps and rejection-histogram summarization.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/equalcollective/xray/domain"
	"github.com/equalcollective/xray/sdk"
)

type product struct {
	ProductID string  `json:"product_id"`
	Title     string  `json:"title"`
	Price     float64 `json:"price"`
	Category  string  `json:"category"`
	Rating    float64 `json:"rating"`
}

func main() {
	apiURL := flag.String("api", "http://localhost:8000", "X-Ray API base URL")
	candidateCount := flag.Int("candidates", 5000, "number of candidate products to retrieve")
	flag.Parse()

	client := sdk.New(*apiURL)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		client.Close(ctx)
	}()

	target := product{
		ProductID: "target_001",
		Title:     "Wireless Phone Charger Stand",
		Price:     29.99,
		Category:  "Electronics",
		Rating:    4.7,
	}

	log.Printf("Target product: %s ($%.2f)", target.Title, target.Price)

	selected, err := selectCompetitor(context.Background(), client, target, *candidateCount)
	if err != nil {
		log.Fatalf("Simulation failed: %v", err)
	}

	log.Printf("Selected competitor: %s (%s) $%.2f rating %.2f",
		selected.Title, selected.ProductID, selected.Price, selected.Rating)
	log.Printf("Events batched to %s/ingest; dropped so far: %d (fail-safe)", *apiURL, client.Dropped())
}

func selectCompetitor(ctx context.Context, client *sdk.Client, target product, candidateCount int) (selected product, err error) {
	ctx, run := client.StartRun(ctx, "competitor_selection", map[string]any{
		"target_product_id": target.ProductID,
		"pipeline_version":  "1.0",
	})
	defer run.End(&err)

	// Step 1: keyword generation (stands in for an LLM call)
	keywords, err := generateKeywords(ctx, client, target.Title)
	if err != nil {
		return product{}, err
	}
	log.Printf("Generated keywords: %v", keywords)

	// Step 2: candidate retrieval
	candidates, err := retrieveCandidates(ctx, client, keywords, candidateCount)
	if err != nil {
		return product{}, err
	}
	log.Printf("Retrieved %d candidate products", len(candidates))

	// Steps 3-4: filtering with rejection-histogram summarization
	priceFiltered := sdk.FilterCandidates(ctx, client, "filter_by_price", candidates, filterByPrice)
	log.Printf("After price filtering: %d products remaining", len(priceFiltered))

	ratingFiltered := sdk.FilterCandidates(ctx, client, "filter_by_rating", priceFiltered, filterByRating)
	log.Printf("After rating filtering: %d products remaining", len(ratingFiltered))

	// Step 5: rank and select
	return rankAndSelect(ctx, client, ratingFiltered)
}

func generateKeywords(ctx context.Context, client *sdk.Client, title string) (keywords []string, err error) {
	_, step, err := client.StartStep(ctx, "generate_keywords", domain.StepKindLLM,
		sdk.WithReasoning("Extract relevant keywords from product title"),
		sdk.WithInputs(map[string]any{"title": title}),
		sdk.WithTokenUsage(sdk.TokenUsage{Prompt: 120, Completion: 24, Model: "gpt-4o"}))
	if err != nil {
		return nil, err
	}
	defer step.End(&err)

	for _, word := range strings.Fields(strings.ToLower(title)) {
		if len(word) > 3 {
			keywords = append(keywords, word)
		}
		if len(keywords) == 5 {
			break
		}
	}
	step.SetOutputs(keywords)
	return keywords, nil
}

func retrieveCandidates(ctx context.Context, client *sdk.Client, keywords []string, count int) (candidates []product, err error) {
	_, step, err := client.StartStep(ctx, "retrieve_candidates", domain.StepKindRetrieval,
		sdk.WithReasoning("Search product catalog"),
		sdk.WithInputs(map[string]any{"keywords": keywords, "max_results": count}))
	if err != nil {
		return nil, err
	}
	defer step.End(&err)

	// Most candidates are priced out of range, a tail is in range.
	for i := 0; i < count; i++ {
		price := 150.0 + float64(i%100)*10.0
		if i >= count-50 {
			price = 20.0 + float64(i%50)*1.5
		}
		candidates = append(candidates, product{
			ProductID: fmt.Sprintf("prod_%06d", i),
			Title:     fmt.Sprintf("Competitor Product %d", i),
			Price:     price,
			Category:  "Electronics",
			Rating:    4.0 + float64(i%10)*0.1,
		})
	}

	step.SetOutputs(map[string]any{"count": len(candidates)})
	return candidates, nil
}

func filterByPrice(p product) (bool, string) {
	if p.Price > 100.0 {
		return false, "price_too_high"
	}
	return true, ""
}

func filterByRating(p product) (bool, string) {
	if p.Rating < 4.5 {
		return false, "rating_too_low"
	}
	return true, ""
}

func rankAndSelect(ctx context.Context, client *sdk.Client, candidates []product) (best product, err error) {
	_, step, err := client.StartStep(ctx, "rank_and_select", domain.StepKindLogic,
		sdk.WithReasoning("Select best match based on rating"),
		sdk.WithInputs(map[string]any{"candidate_count": len(candidates)}))
	if err != nil {
		return product{}, err
	}
	defer step.End(&err)

	if len(candidates) == 0 {
		err = fmt.Errorf("no candidates survived filtering")
		return product{}, err
	}

	best = candidates[0]
	for _, c := range candidates[1:] {
		if c.Rating > best.Rating {
			best = c
		}
	}
	step.SetOutputs(best)
	return best, nil
}
