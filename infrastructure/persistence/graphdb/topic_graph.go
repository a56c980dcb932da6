// Package graphdb stores the shared topic graph in a Neo4j database.
package graphdb

import (
	"context"
	"fmt"
	"time"

	"vdchat/domain/core/valueobjects"
	pkgerrors "vdchat/pkg/errors"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
)

// Config holds connection settings for the graph database
type Config struct {
	URI      string
	Username string
	Password string
	Database string
	Timeout  time.Duration
}

// TopicGraph implements ports.TopicGraph on Neo4j.
// Topics are (:Topic {name}) nodes carrying a conversations list, and every
// edge is a RELATES_TO relationship keyed by its type property.
type TopicGraph struct {
	driver   neo4j.DriverWithContext
	database string
	timeout  time.Duration
	logger   *zap.Logger
}

// NewDriver opens a driver and verifies connectivity
func NewDriver(ctx context.Context, cfg Config) (neo4j.DriverWithContext, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("failed to connect to neo4j: %w", err)
	}
	return driver, nil
}

// NewTopicGraph creates a topic graph. A positive timeout bounds every write.
func NewTopicGraph(driver neo4j.DriverWithContext, database string, timeout time.Duration, logger *zap.Logger) *TopicGraph {
	return &TopicGraph{
		driver:   driver,
		database: database,
		timeout:  timeout,
		logger:   logger,
	}
}

func (g *TopicGraph) session(ctx context.Context) neo4j.SessionWithContext {
	return g.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: g.database,
	})
}

func (g *TopicGraph) write(ctx context.Context, operation, query string, params map[string]interface{}) error {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	session := g.session(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		result, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		return result.Consume(ctx)
	})
	if err != nil {
		return pkgerrors.NewStorageError(operation, err)
	}
	return nil
}

func (g *TopicGraph) MergeTopic(ctx context.Context, name string) error {
	return g.write(ctx, "merge_topic", `MERGE (t:Topic {name: $name})`, map[string]interface{}{
		"name": name,
	})
}

func (g *TopicGraph) MergeRelationship(ctx context.Context, rel valueobjects.Relationship) error {
	query := `
		MERGE (a:Topic {name: $source})
		MERGE (b:Topic {name: $target})
		MERGE (a)-[:RELATES_TO {type: $type}]->(b)
	`

	err := g.write(ctx, "merge_relationship", query, map[string]interface{}{
		"source": rel.Source,
		"target": rel.Target,
		"type":   rel.Type,
	})
	if err != nil {
		return err
	}

	g.logger.Debug("Topics linked",
		zap.String("source", rel.Source),
		zap.String("target", rel.Target),
		zap.String("type", rel.Type),
	)
	return nil
}

// TagTopics unions conversationID into each topic's conversations list in a
// single statement so concurrent turns cannot drop each other's tags.
func (g *TopicGraph) TagTopics(ctx context.Context, names []string, conversationID int64) error {
	if len(names) == 0 {
		return nil
	}

	query := `
		UNWIND $names AS name
		MATCH (t:Topic {name: name})
		SET t.conversations = CASE
			WHEN $cid IN coalesce(t.conversations, []) THEN t.conversations
			ELSE coalesce(t.conversations, []) + $cid
		END
	`
	return g.write(ctx, "tag_topics", query, map[string]interface{}{
		"names": names,
		"cid":   conversationID,
	})
}

func (g *TopicGraph) Ping(ctx context.Context) error {
	if err := g.driver.VerifyConnectivity(ctx); err != nil {
		return pkgerrors.NewStorageError("ping", err)
	}
	return nil
}

// Close releases the driver
func (g *TopicGraph) Close(ctx context.Context) error {
	return g.driver.Close(ctx)
}
