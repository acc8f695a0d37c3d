package kb

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/merchantlabs/coo-agent/internal/tools"
)

// NoResultsMessage is returned when retrieval finds nothing relevant.
const NoResultsMessage = "No relevant information found in the internal documents."

// Tool builds the retrieval tool backed by the passage store. It is
// appended to the registry at startup, after the structured-data tools.
func Tool(store *Store, embed Embedder, topK int, logger *slog.Logger) *tools.Tool {
	if topK <= 0 {
		topK = 4
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &tools.Tool{
		Name: "query_internal_documents",
		Description: "Search the company's internal documents (policies, supplier " +
			"agreements, operational guides) for information relevant to a question. " +
			"Use this for questions about policies, procedures, or anything not " +
			"covered by the product and sales tools.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "A natural-language question to search the documents for",
				},
			},
			"required": []string{"query"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			query, _ := args["query"].(string)
			if query == "" {
				return tools.ErrorResult("query is required"), nil
			}

			queryEmb, err := embed.Generate(ctx, query)
			if err != nil {
				return "", fmt.Errorf("embed query: %w", err)
			}

			matches, err := store.Search(ctx, queryEmb, topK)
			if err != nil {
				return "", fmt.Errorf("search passages: %w", err)
			}

			logger.Debug("document retrieval",
				"query", query, "matches", len(matches))

			if len(matches) == 0 {
				return NoResultsMessage, nil
			}

			passages := make([]string, len(matches))
			for i, m := range matches {
				passages[i] = m.Content
			}
			return strings.Join(passages, "\n\n"), nil
		},
	}
}
