package graphdb

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"vdchat/domain/core/valueobjects"
	pkgerrors "vdchat/pkg/errors"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordedQuery struct {
	cypher string
	params map[string]interface{}
}

// fakeDriver records every statement run through a write session. Embedded
// interfaces cover the driver methods the graph never calls.
type fakeDriver struct {
	neo4j.DriverWithContext
	mu       sync.Mutex
	queries  []recordedQuery
	sessions []neo4j.SessionConfig
	runErr   error
}

func (d *fakeDriver) NewSession(ctx context.Context, config neo4j.SessionConfig) neo4j.SessionWithContext {
	d.mu.Lock()
	d.sessions = append(d.sessions, config)
	d.mu.Unlock()
	return &fakeSession{driver: d}
}

type fakeSession struct {
	neo4j.SessionWithContext
	driver *fakeDriver
}

func (s *fakeSession) ExecuteWrite(ctx context.Context, work neo4j.ManagedTransactionWork, _ ...func(*neo4j.TransactionConfig)) (any, error) {
	return work(&fakeTx{driver: s.driver})
}

func (s *fakeSession) Close(ctx context.Context) error { return nil }

type fakeTx struct {
	neo4j.ManagedTransaction
	driver *fakeDriver
}

func (tx *fakeTx) Run(ctx context.Context, cypher string, params map[string]any) (neo4j.ResultWithContext, error) {
	tx.driver.mu.Lock()
	defer tx.driver.mu.Unlock()
	if tx.driver.runErr != nil {
		return nil, tx.driver.runErr
	}
	tx.driver.queries = append(tx.driver.queries, recordedQuery{cypher: cypher, params: params})
	return fakeResult{}, nil
}

type fakeResult struct {
	neo4j.ResultWithContext
}

func (fakeResult) Consume(ctx context.Context) (neo4j.ResultSummary, error) { return nil, nil }

func TestTopicGraph_TagTopicsIsSingleSetUnion(t *testing.T) {
	// Arrange
	driver := &fakeDriver{}
	graph := NewTopicGraph(driver, "topics", time.Second, zap.NewNop())

	// Act
	err := graph.TagTopics(context.Background(), []string{"A", "B", "C"}, 42)

	// Assert
	require.NoError(t, err)
	require.Len(t, driver.queries, 1, "tagging must be one statement, not read-then-write")
	q := driver.queries[0]
	assert.Equal(t, []string{"A", "B", "C"}, q.params["names"])
	assert.Equal(t, int64(42), q.params["cid"])
	assert.Contains(t, q.cypher, "UNWIND $names AS name")
	assert.Contains(t, q.cypher, "WHEN $cid IN coalesce(t.conversations, []) THEN t.conversations")
	assert.Contains(t, q.cypher, "ELSE coalesce(t.conversations, []) + $cid")
	assert.Equal(t, "topics", driver.sessions[0].DatabaseName)
	assert.Equal(t, neo4j.AccessModeWrite, driver.sessions[0].AccessMode)
}

func TestTopicGraph_TagTopicsSkipsEmptyInput(t *testing.T) {
	driver := &fakeDriver{}
	graph := NewTopicGraph(driver, "neo4j", 0, zap.NewNop())

	require.NoError(t, graph.TagTopics(context.Background(), nil, 42))

	assert.Empty(t, driver.queries)
}

func TestTopicGraph_MergeRelationshipParameters(t *testing.T) {
	driver := &fakeDriver{}
	graph := NewTopicGraph(driver, "neo4j", 0, zap.NewNop())

	err := graph.MergeRelationship(context.Background(), valueobjects.Relationship{Source: "A", Target: "B", Type: "describes"})

	require.NoError(t, err)
	require.Len(t, driver.queries, 1)
	assert.Equal(t, map[string]interface{}{"source": "A", "target": "B", "type": "describes"}, driver.queries[0].params)
	assert.Contains(t, driver.queries[0].cypher, "MERGE (a)-[:RELATES_TO {type: $type}]->(b)")
}

func TestTopicGraph_WriteFailureIsStorageError(t *testing.T) {
	driver := &fakeDriver{runErr: errors.New("connection reset")}
	graph := NewTopicGraph(driver, "neo4j", 0, zap.NewNop())

	err := graph.MergeTopic(context.Background(), "A")

	require.Error(t, err)
	assert.True(t, pkgerrors.IsStorage(err))
	assert.ErrorContains(t, err, "connection reset")
}

// TestTopicGraph_ConcurrentTaggingAgainstNeo4j runs against a live database
// when NEO4J_URI is set.
func TestTopicGraph_ConcurrentTaggingAgainstNeo4j(t *testing.T) {
	uri := os.Getenv("NEO4J_URI")
	if uri == "" {
		t.Skip("NEO4J_URI not set")
	}

	ctx := context.Background()
	driver, err := NewDriver(ctx, Config{
		URI:      uri,
		Username: os.Getenv("NEO4J_USER"),
		Password: os.Getenv("NEO4J_PASSWORD"),
	})
	require.NoError(t, err)
	defer driver.Close(ctx)

	database := os.Getenv("NEO4J_DATABASE")
	if database == "" {
		database = "neo4j"
	}
	graph := NewTopicGraph(driver, database, 10*time.Second, zap.NewNop())
	topic := "vdchat-test-" + time.Now().Format("150405.000000000")
	defer func() {
		_, _ = neo4j.ExecuteQuery(ctx, driver, `MATCH (t:Topic {name: $name}) DETACH DELETE t`,
			map[string]any{"name": topic}, neo4j.EagerResultTransformer, neo4j.ExecuteQueryWithDatabase(database))
	}()
	require.NoError(t, graph.MergeTopic(ctx, topic))

	// Act
	var wg sync.WaitGroup
	for cid := int64(1); cid <= 10; cid++ {
		wg.Add(1)
		go func(cid int64) {
			defer wg.Done()
			assert.NoError(t, graph.TagTopics(ctx, []string{topic}, cid))
			assert.NoError(t, graph.TagTopics(ctx, []string{topic}, cid))
		}(cid)
	}
	wg.Wait()

	// Assert
	result, err := neo4j.ExecuteQuery(ctx, driver, `MATCH (t:Topic {name: $name}) RETURN t.conversations AS cids`,
		map[string]any{"name": topic}, neo4j.EagerResultTransformer, neo4j.ExecuteQueryWithDatabase(database))
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	cids, _ := result.Records[0].Get("cids")
	assert.ElementsMatch(t, []any{int64(1), int64(2), int64(3), int64(4), int64(5), int64(6), int64(7), int64(8), int64(9), int64(10)}, cids)
}
