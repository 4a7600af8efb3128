package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/kilnworks/hivekb"
	"github.com/kilnworks/hivekb/helper"
	"github.com/kilnworks/hivekb/model"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

const sampleContent = `HiveKB is a multi-tenant knowledge base built on PostgreSQL.

Documents are split into overlapping chunks, embedded with a local sentence
transformer and stored in pgvector for similarity search. An optional language
model extracts entities and relationships from each chunk into a per-tenant
knowledge graph.

Retrieval is hybrid: a query is answered with the most similar chunks and the
matching graph entities side by side, so callers can combine semantic recall
with structured facts.`

func main() {
	// Start a test PostgreSQL container
	teardown, dbPort, err := helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer teardown(context.Background())

	// Create database configuration using the container port
	dbConfig := &helper.DatabaseConfiguration{
		Host:     "localhost",
		Port:     dbPort,
		User:     "testuser",
		Password: "testpassword",
		Name:     "testdb",
		SSLMode:  "disable",
	}

	// Entity extraction is optional, without an API key ingestion still
	// stores and retrieves chunks.
	var llm llms.Model
	if os.Getenv("OPENAI_API_KEY") != "" {
		llm, err = openai.New()
		if err != nil {
			log.Fatalf("Failed to create llm client: %v", err)
		}
	}

	kb, err := hivekb.NewWithDefaultEmbedder(dbConfig, llm, model.DefaultIngestConfig())
	if err != nil {
		log.Fatalf("Failed to create hivekb: %v", err)
	}
	defer kb.Close()

	// Every operation is scoped to a tenant carried on the context
	ctx := model.WithTenant(context.Background(), &model.TenantContext{
		TenantID: "acme",
		UserID:   "basic_example",
	})

	fmt.Println("Ingesting document...")
	result, err := kb.Ingest(ctx, "hivekb_intro.txt", sampleContent, model.Metadata{
		"author": "Example Author",
		"topic":  "knowledge bases",
	})
	if err != nil {
		log.Fatalf("Failed to ingest document: %v", err)
	}
	fmt.Printf("Document inserted with ID: %s\n", result.DocumentID)
	fmt.Printf("Inserted %d chunks, extracted %d entities\n", result.ChunkCount, result.EntitiesExtracted)

	queryText := "How does hybrid retrieval work?"
	fmt.Printf("\nQuerying: %s\n", queryText)

	retrieved, err := kb.Retrieve(ctx, queryText, model.DefaultRetrieveConfig())
	if err != nil {
		log.Fatalf("Failed to retrieve: %v", err)
	}

	fmt.Printf("\nFound %d chunks:\n", len(retrieved.DocumentResults))
	for i, chunk := range retrieved.DocumentResults {
		fmt.Printf("\n--- Chunk %d ---\n", i+1)
		fmt.Printf("Similarity: %.4f\n", chunk.Similarity)
		fmt.Printf("Content: %s\n", chunk.Content)
	}

	fmt.Printf("\nFound %d entities:\n", len(retrieved.EntityResults))
	for _, entity := range retrieved.EntityResults {
		fmt.Printf("- %s (%s)\n", entity.Name, entity.Type)
	}

	fmt.Println("\nBasic example completed successfully!")
}
