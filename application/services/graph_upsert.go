package services

import (
	"context"
	"strings"

	"vdchat/application/ports"
	"vdchat/domain/core/valueobjects"

	"go.uber.org/zap"
)

// UpsertFailedMarker is stored on a graph whose upsert aborted.
const UpsertFailedMarker = "graph upsert failed"

// GraphUpsertService merges extracted topic records into the persistent
// topic graph and returns the per-turn view of what was touched.
type GraphUpsertService struct {
	graph  ports.TopicGraph
	logger *zap.Logger
}

// NewGraphUpsertService creates a new graph upsert service
func NewGraphUpsertService(graph ports.TopicGraph, logger *zap.Logger) *GraphUpsertService {
	return &GraphUpsertService{
		graph:  graph,
		logger: logger,
	}
}

// Upsert processes records in order. Records with an empty topic are skipped,
// and empty related topics are skipped individually. Every node touched is
// tagged with conversationID once all merges succeed. On a store error the
// upsert stops, nothing is rolled back, and an empty graph carrying
// UpsertFailedMarker is returned.
func (s *GraphUpsertService) Upsert(ctx context.Context, records []valueobjects.TopicRecord, conversationID int64) valueobjects.Graph {
	builder := valueobjects.NewGraphBuilder()

	for _, record := range records {
		mainTopic := record.MainTopic()
		if mainTopic == "" {
			continue
		}
		builder.AddNode(mainTopic)

		relType := record.RelationType()
		related := 0
		for _, name := range record.RelatedTopics {
			target := strings.TrimSpace(name)
			if target == "" {
				continue
			}

			rel := valueobjects.Relationship{Source: mainTopic, Target: target, Type: relType}
			if err := s.graph.MergeRelationship(ctx, rel); err != nil {
				return s.abort(conversationID, "merge_relationship", err)
			}
			builder.AddRelationship(rel)
			related++
		}

		if related == 0 {
			if err := s.graph.MergeTopic(ctx, mainTopic); err != nil {
				return s.abort(conversationID, "merge_topic", err)
			}
		}
	}

	nodes := builder.Nodes()
	if len(nodes) > 0 {
		if err := s.graph.TagTopics(ctx, nodes, conversationID); err != nil {
			return s.abort(conversationID, "tag_topics", err)
		}
	}

	result := builder.Build()
	s.logger.Debug("Graph upserted",
		zap.Int64("conversation_id", conversationID),
		zap.Int("nodes", len(result.Nodes)),
		zap.Int("relationships", len(result.Relationships)),
	)
	return result
}

func (s *GraphUpsertService) abort(conversationID int64, operation string, err error) valueobjects.Graph {
	s.logger.Error("Graph upsert aborted",
		zap.Int64("conversation_id", conversationID),
		zap.String("operation", operation),
		zap.Error(err),
	)
	return valueobjects.ErroredGraph(UpsertFailedMarker)
}
