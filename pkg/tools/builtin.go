package tools

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/hoangnp/careerpilot/internal/database"
)

// FinalizeToolName is the tool the model calls to deliver its structured
// final answer. The loop executes it locally and does not feed the result
// back into the conversation.
const FinalizeToolName = "respond_to_agent"

// Embedder turns text into an embedding vector. Satisfied by the rotating
// genai client.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// NewFinalizeTool returns the finalize tool definition. The handler just
// echoes the payload; the loop treats the call itself as the terminal
// signal.
func NewFinalizeTool() Definition {
	return Definition{
		Name: FinalizeToolName,
		Description: "Send the final structured response to the calling agent. " +
			"Call this exactly once, when the analysis is complete. The final_response " +
			"must be the full JSON response document as specified in the instructions.",
		Parameters: []Parameter{
			{
				Name:        "final_response",
				Type:        "string",
				Description: "Complete final response as structured JSON",
				Required:    true,
			},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			payload, _ := args["final_response"].(string)
			return payload, nil
		},
	}
}

// NewQueryDatabaseTool exposes read access to the job-market database.
func NewQueryDatabaseTool(db database.Executor) Definition {
	return Definition{
		Name: "query_database",
		Description: "Execute a SQL query against the PostgreSQL job-market database " +
			"and return the matching rows. Use the schema description from the system " +
			"instructions; never invent tables or columns.",
		Parameters: []Parameter{
			{
				Name:        "sql",
				Type:        "string",
				Description: "The SQL query to execute",
				Required:    true,
			},
			{
				Name:        "params",
				Type:        "array",
				Description: "Positional query parameters referenced as $1, $2, ...",
				Required:    false,
			},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			sql, _ := args["sql"].(string)
			if strings.TrimSpace(sql) == "" {
				return nil, fmt.Errorf("sql must not be empty")
			}

			var params []interface{}
			if raw, ok := args["params"].([]interface{}); ok {
				params = raw
			}

			rows, err := db.Execute(ctx, sql, params)
			if err != nil {
				return nil, err
			}

			return map[string]interface{}{
				"rows":      rows,
				"row_count": len(rows),
			}, nil
		},
	}
}

// similarJobsSQL ranks jobs by cosine similarity of their description
// embeddings (pgvector <=> is cosine distance).
const similarJobsSQL = `
SELECT
    j.job_title,
    j.job_expertise,
    j.yoe,
    j.salary,
    c.company_name,
    1 - (j.description_embedding <=> $1) AS similarity
FROM
    public.job AS j
JOIN
    public.company AS c ON j.company_id = c.company_id
WHERE
    j.description_embedding IS NOT NULL
    AND 1 - (j.description_embedding <=> $1) >= $2
ORDER BY
    j.description_embedding <=> $1 ASC
LIMIT $3`

// NewSimilarJobsTool exposes semantic job search: the description is
// embedded and compared against stored job-description embeddings.
func NewSimilarJobsTool(embedder Embedder, db database.Executor) Definition {
	return Definition{
		Name: "get_similar_jobs_by_embedding",
		Description: "Find jobs semantically similar to a free-text description of the " +
			"desired position, skills, and interests. Returns job title, expertise, years " +
			"of experience, salary, company name, and a similarity score.",
		Parameters: []Parameter{
			{
				Name:        "description",
				Type:        "string",
				Description: "Free-text description of the desired job (industry, position, skills, interests)",
				Required:    true,
			},
			{
				Name:        "limit",
				Type:        "integer",
				Description: "Maximum number of jobs to return",
				Required:    false,
				Default:     5,
			},
			{
				Name:        "threshold",
				Type:        "number",
				Description: "Minimum cosine similarity (0 to 1) for a job to be included",
				Required:    false,
				Default:     0.0,
			},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			description, _ := args["description"].(string)
			if strings.TrimSpace(description) == "" {
				return nil, fmt.Errorf("description must not be empty")
			}

			limit := intArg(args, "limit", 5)
			if limit <= 0 {
				limit = 5
			}
			threshold := floatArg(args, "threshold", 0)

			vector, err := embedder.Embed(ctx, description)
			if err != nil {
				return nil, fmt.Errorf("failed to embed description: %w", err)
			}

			rows, err := db.Execute(ctx, similarJobsSQL, []interface{}{
				vectorLiteral(vector), threshold, limit,
			})
			if err != nil {
				return nil, fmt.Errorf("similarity query failed: %w", err)
			}

			return map[string]interface{}{
				"jobs":      rows,
				"job_count": len(rows),
			}, nil
		},
	}
}

// vectorLiteral renders a vector in pgvector's input format.
func vectorLiteral(vector []float64) string {
	parts := make([]string, len(vector))
	for i, v := range vector {
		parts[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func intArg(args map[string]interface{}, key string, fallback int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return fallback
	}
}

func floatArg(args map[string]interface{}, key string, fallback float64) float64 {
	switch v := args[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return fallback
	}
}
