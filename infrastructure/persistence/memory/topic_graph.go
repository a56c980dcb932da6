// Package memory provides an in-process topic graph for development and tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"vdchat/domain/core/valueobjects"
)

type topicNode struct {
	conversations map[int64]struct{}
}

// TopicGraph keeps topics and typed edges in maps guarded by a single mutex,
// so every merge and tag is atomic.
type TopicGraph struct {
	mu     sync.RWMutex
	topics map[string]*topicNode
	edges  map[valueobjects.Relationship]struct{}
}

func NewTopicGraph() *TopicGraph {
	return &TopicGraph{
		topics: make(map[string]*topicNode),
		edges:  make(map[valueobjects.Relationship]struct{}),
	}
}

func (g *TopicGraph) MergeTopic(ctx context.Context, name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mergeTopicLocked(name)
	return nil
}

func (g *TopicGraph) MergeRelationship(ctx context.Context, rel valueobjects.Relationship) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mergeTopicLocked(rel.Source)
	g.mergeTopicLocked(rel.Target)
	g.edges[rel] = struct{}{}
	return nil
}

func (g *TopicGraph) TagTopics(ctx context.Context, names []string, conversationID int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, name := range names {
		g.mergeTopicLocked(name).conversations[conversationID] = struct{}{}
	}
	return nil
}

func (g *TopicGraph) Ping(ctx context.Context) error {
	return nil
}

func (g *TopicGraph) mergeTopicLocked(name string) *topicNode {
	node, ok := g.topics[name]
	if !ok {
		node = &topicNode{conversations: make(map[int64]struct{})}
		g.topics[name] = node
	}
	return node
}

// Topics returns all topic names in sorted order.
func (g *TopicGraph) Topics() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	names := make([]string, 0, len(g.topics))
	for name := range g.topics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Relationships returns all edges sorted by source, target and type.
func (g *TopicGraph) Relationships() []valueobjects.Relationship {
	g.mu.RLock()
	defer g.mu.RUnlock()
	rels := make([]valueobjects.Relationship, 0, len(g.edges))
	for rel := range g.edges {
		rels = append(rels, rel)
	}
	sort.Slice(rels, func(i, j int) bool {
		if rels[i].Source != rels[j].Source {
			return rels[i].Source < rels[j].Source
		}
		if rels[i].Target != rels[j].Target {
			return rels[i].Target < rels[j].Target
		}
		return rels[i].Type < rels[j].Type
	})
	return rels
}

// Conversations returns the sorted conversation ids tagged on a topic.
func (g *TopicGraph) Conversations(name string) []int64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	node, ok := g.topics[name]
	if !ok {
		return nil
	}
	ids := make([]int64, 0, len(node.conversations))
	for id := range node.conversations {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
