package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/model"
)

const (
	uriAggressiveness  = "warden://aggressiveness/current"
	uriRecentDecisions = "warden://decisions/recent"
	uriDecisionPrefix  = "warden://decisions/"
	recentLimit        = 20
)

func (s *Server) registerResources() {
	s.mcpServer.AddResource(
		mcplib.NewResource(
			uriAggressiveness,
			"Current Aggressiveness",
			mcplib.WithResourceDescription("Rolling-window aggressiveness score and level"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleAggressiveness,
	)

	s.mcpServer.AddResource(
		mcplib.NewResource(
			uriRecentDecisions,
			"Recent Verdicts",
			mcplib.WithResourceDescription("Most recently recorded governance verdicts"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleDecisionsRecent,
	)

	s.mcpServer.AddResourceTemplate(
		mcplib.NewResourceTemplate(
			uriDecisionPrefix+"{id}",
			"Ledger Entry",
			mcplib.WithTemplateDescription("A single ledger entry by decision ID"),
			mcplib.WithTemplateMIMEType("application/json"),
		),
		s.handleDecision,
	)
}

func (s *Server) handleAggressiveness(ctx context.Context, _ mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	score, err := s.governance.Aggressiveness(ctx)
	if err != nil {
		return nil, fmt.Errorf("mcp: aggressiveness: %w", err)
	}
	return jsonResource(uriAggressiveness, score)
}

func (s *Server) handleDecisionsRecent(ctx context.Context, _ mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	entries, err := s.governance.Entries(ctx, model.LedgerQuery{Limit: recentLimit})
	if err != nil {
		return nil, fmt.Errorf("mcp: recent decisions: %w", err)
	}
	return jsonResource(uriRecentDecisions, entries)
}

func (s *Server) handleDecision(ctx context.Context, request mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	uri := request.Params.URI
	raw, ok := strings.CutPrefix(uri, uriDecisionPrefix)
	if !ok {
		return nil, fmt.Errorf("mcp: invalid decision URI: %s", uri)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("mcp: invalid decision id %q: %w", raw, err)
	}
	entry, err := s.governance.Entry(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("mcp: decision %s: %w", id, err)
	}
	return jsonResource(uri, entry)
}

func jsonResource(uri string, v any) ([]mcplib.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcp: marshal %s: %w", uri, err)
	}
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
