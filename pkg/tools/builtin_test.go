package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExecutor struct {
	rows     []map[string]interface{}
	err      error
	lastSQL  string
	lastArgs []interface{}
}

func (f *fakeExecutor) Execute(ctx context.Context, sql string, params []interface{}) ([]map[string]interface{}, error) {
	f.lastSQL = sql
	f.lastArgs = params
	return f.rows, f.err
}

type fakeEmbedder struct {
	vector []float64
	err    error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	return f.vector, f.err
}

func TestFinalizeTool(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(NewFinalizeTool()))

	result := r.Dispatch(context.Background(), FinalizeToolName, map[string]interface{}{
		"final_response": `{"status":"completed"}`,
	})
	require.True(t, result.Success)
	assert.Equal(t, `{"status":"completed"}`, result.Output)
}

func TestQueryDatabaseTool(t *testing.T) {
	ctx := context.Background()

	t.Run("returns rows and count", func(t *testing.T) {
		db := &fakeExecutor{rows: []map[string]interface{}{
			{"job_title": "Data Engineer"},
			{"job_title": "ML Engineer"},
		}}
		r := NewRegistry()
		require.NoError(t, r.Register(NewQueryDatabaseTool(db)))

		result := r.Dispatch(ctx, "query_database", map[string]interface{}{
			"sql":    "SELECT job_title FROM public.job WHERE salary > $1",
			"params": []interface{}{"1000"},
		})
		require.True(t, result.Success, result.Error)

		out := result.Output.(map[string]interface{})
		assert.Equal(t, 2, out["row_count"])
		assert.Equal(t, []interface{}{"1000"}, db.lastArgs)
	})

	t.Run("blank sql rejected", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register(NewQueryDatabaseTool(&fakeExecutor{})))

		result := r.Dispatch(ctx, "query_database", map[string]interface{}{"sql": "   "})
		assert.False(t, result.Success)
	})

	t.Run("database error surfaces as failed result", func(t *testing.T) {
		db := &fakeExecutor{err: errors.New("relation does not exist")}
		r := NewRegistry()
		require.NoError(t, r.Register(NewQueryDatabaseTool(db)))

		result := r.Dispatch(ctx, "query_database", map[string]interface{}{"sql": "SELECT 1"})
		assert.False(t, result.Success)
		assert.Contains(t, result.Error, "relation does not exist")
	})
}

func TestSimilarJobsTool(t *testing.T) {
	ctx := context.Background()

	t.Run("embeds then queries", func(t *testing.T) {
		embedder := &fakeEmbedder{vector: []float64{0.25, -0.5}}
		db := &fakeExecutor{rows: []map[string]interface{}{
			{"job_title": "Backend Engineer", "similarity": 0.91},
		}}
		r := NewRegistry()
		require.NoError(t, r.Register(NewSimilarJobsTool(embedder, db)))

		result := r.Dispatch(ctx, "get_similar_jobs_by_embedding", map[string]interface{}{
			"description": "Go services, Postgres, distributed systems",
			"limit":       3,
			"threshold":   0.7,
		})
		require.True(t, result.Success, result.Error)

		out := result.Output.(map[string]interface{})
		assert.Equal(t, 1, out["job_count"])

		require.Len(t, db.lastArgs, 3)
		assert.Equal(t, "[0.25,-0.5]", db.lastArgs[0])
		assert.Equal(t, 0.7, db.lastArgs[1])
		assert.Equal(t, 3, db.lastArgs[2])
		assert.Contains(t, db.lastSQL, "description_embedding <=>")
	})

	t.Run("defaults applied", func(t *testing.T) {
		embedder := &fakeEmbedder{vector: []float64{1}}
		db := &fakeExecutor{}
		r := NewRegistry()
		require.NoError(t, r.Register(NewSimilarJobsTool(embedder, db)))

		result := r.Dispatch(ctx, "get_similar_jobs_by_embedding", map[string]interface{}{
			"description": "product analytics",
		})
		require.True(t, result.Success, result.Error)
		assert.Equal(t, 0.0, db.lastArgs[1])
		assert.Equal(t, 5, db.lastArgs[2])
	})

	t.Run("embedding failure surfaces as failed result", func(t *testing.T) {
		embedder := &fakeEmbedder{err: errors.New("quota exceeded")}
		r := NewRegistry()
		require.NoError(t, r.Register(NewSimilarJobsTool(embedder, &fakeExecutor{})))

		result := r.Dispatch(ctx, "get_similar_jobs_by_embedding", map[string]interface{}{
			"description": "anything",
		})
		assert.False(t, result.Success)
		assert.Contains(t, result.Error, "failed to embed")
	})
}

func TestVectorLiteral(t *testing.T) {
	assert.Equal(t, "[]", vectorLiteral(nil))
	assert.Equal(t, "[1,0.5,-2]", vectorLiteral([]float64{1, 0.5, -2}))
}
