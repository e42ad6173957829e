package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/ledger"
	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/model"
)

func (s *Server) registerTools() {
	// warden_evaluate: run a proposal through the full governance pipeline.
	s.mcpServer.AddTool(
		mcplib.NewTool("warden_evaluate",
			mcplib.WithDescription(`Submit a proposed decision for governance before acting on it.

Returns a verdict with outcome APPROVED, REQUIRES_ADJUSTMENT, NEEDS_HUMAN_REVIEW,
REJECTED or CANCELLED. Act only on APPROVED. Every non-trivial verdict is
written to the tamper-evident ledger and carries a decision_id.

EXAMPLE: actor="growth-engine", decision_type="scale_accounts",
chosen="add 5 accounts to campaign A", confidence=0.7, estimated_risk=0.3,
context={"accounts_affected": 5, "estimated_cost": 120}`),
			mcplib.WithDestructiveHintAnnotation(false),
			mcplib.WithIdempotentHintAnnotation(false),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithString("actor",
				mcplib.Description("Identifier of the engine or agent proposing the decision"),
				mcplib.Required(),
			),
			mcplib.WithString("decision_type",
				mcplib.Description("Category of decision, e.g. scale_accounts, shift_budget, post_content"),
				mcplib.Required(),
			),
			mcplib.WithString("chosen",
				mcplib.Description("The option the actor intends to execute"),
				mcplib.Required(),
			),
			mcplib.WithNumber("confidence",
				mcplib.Description("Actor's stated confidence (0.0 to 1.0)"),
				mcplib.Required(),
				mcplib.Min(0),
				mcplib.Max(1),
			),
			mcplib.WithString("reasoning",
				mcplib.Description("Why the actor chose this option"),
			),
			mcplib.WithNumber("estimated_risk",
				mcplib.Description("Actor's risk estimate (0.0 to 1.0). Omit if unknown."),
				mcplib.Min(0),
				mcplib.Max(1),
			),
			mcplib.WithNumber("estimated_impact",
				mcplib.Description("Actor's impact estimate (0.0 to 1.0). Omit if unknown."),
				mcplib.Min(0),
				mcplib.Max(1),
			),
			mcplib.WithArray("alternatives_considered",
				mcplib.Description("Other options the actor weighed"),
				mcplib.WithStringItems(),
			),
			mcplib.WithArray("inputs",
				mcplib.Description("Data sources the proposal was derived from"),
				mcplib.WithStringItems(),
			),
			mcplib.WithObject("context",
				mcplib.Description("Decision context: accounts_affected, account_ids, estimated_cost, platform, signals, fleet, extensions"),
			),
		),
		s.handleEvaluate,
	)

	// warden_record_execution: report what happened after a verdict.
	s.mcpServer.AddTool(
		mcplib.NewTool("warden_record_execution",
			mcplib.WithDescription(`Report the execution outcome of a governed decision.

Call once per decision_id after acting. Executed outcomes count toward the
aggressiveness window; failed outcomes feed the action failure rate.`),
			mcplib.WithDestructiveHintAnnotation(false),
			mcplib.WithIdempotentHintAnnotation(false),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithString("decision_id",
				mcplib.Description("The decision_id returned by warden_evaluate"),
				mcplib.Required(),
			),
			mcplib.WithString("status",
				mcplib.Description("What happened"),
				mcplib.Required(),
				mcplib.Enum(string(model.ExecutionExecuted), string(model.ExecutionFailed), string(model.ExecutionSkipped)),
			),
			mcplib.WithString("detail",
				mcplib.Description("Free-form detail, e.g. an error message"),
			),
		),
		s.handleRecordExecution,
	)

	// warden_explain: read back the narrative for a recorded verdict.
	s.mcpServer.AddTool(
		mcplib.NewTool("warden_explain",
			mcplib.WithDescription(`Explain a recorded verdict as a human-readable reasoning chain.

Returns the title, verdict, risk breakdown and each step of the reasoning.
Use format="text" for the plain narrative only.`),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithString("decision_id",
				mcplib.Description("The decision_id to explain"),
				mcplib.Required(),
			),
			mcplib.WithString("format",
				mcplib.Description("json (default) or text"),
				mcplib.Enum("json", "text"),
			),
		),
		s.handleExplain,
	)
}

func (s *Server) handleEvaluate(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	p, err := proposalFromRequest(request)
	if err != nil {
		return errorResult(err.Error()), nil
	}

	v := s.governance.Evaluate(ctx, p)
	return jsonResult(v)
}

func proposalFromRequest(request mcplib.CallToolRequest) (model.ProposedDecision, error) {
	p := model.ProposedDecision{
		Actor:                  request.GetString("actor", ""),
		DecisionType:           request.GetString("decision_type", ""),
		Chosen:                 request.GetString("chosen", ""),
		Reasoning:              request.GetString("reasoning", ""),
		Confidence:             request.GetFloat("confidence", 0),
		AlternativesConsidered: request.GetStringSlice("alternatives_considered", nil),
		Inputs:                 request.GetStringSlice("inputs", nil),
	}

	args := request.GetArguments()
	if _, ok := args["estimated_risk"]; ok {
		risk := request.GetFloat("estimated_risk", 0)
		p.EstimatedRisk = &risk
	}
	if _, ok := args["estimated_impact"]; ok {
		impact := request.GetFloat("estimated_impact", 0)
		p.EstimatedImpact = &impact
	}
	if raw, ok := args["context"]; ok && raw != nil {
		// Round-trip through JSON so nested signals decode into typed fields.
		data, err := json.Marshal(raw)
		if err != nil {
			return p, fmt.Errorf("invalid context: %v", err)
		}
		if err := json.Unmarshal(data, &p.Context); err != nil {
			return p, fmt.Errorf("invalid context: %v", err)
		}
	}
	return p, nil
}

func (s *Server) handleRecordExecution(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	id, err := uuid.Parse(request.GetString("decision_id", ""))
	if err != nil {
		return errorResult("decision_id must be a UUID"), nil
	}
	outcome := model.ExecutionOutcome{
		Status: model.ExecutionStatus(request.GetString("status", "")),
		Detail: request.GetString("detail", ""),
	}
	if err := outcome.Validate(); err != nil {
		return errorResult(err.Error()), nil
	}

	entry, err := s.governance.RecordExecution(ctx, id, outcome)
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		return errorResult(fmt.Sprintf("decision %s not found", id)), nil
	case errors.Is(err, ledger.ErrOutcomeExists):
		return errorResult(fmt.Sprintf("execution outcome already recorded for %s", id)), nil
	case err != nil:
		s.logger.Error("mcp: record execution", "decision_id", id, "error", err)
		return errorResult(fmt.Sprintf("failed to record execution: %v", err)), nil
	}

	return jsonResult(map[string]any{
		"decision_id": id,
		"status":      "recorded",
		"execution":   entry.Execution,
	})
}

func (s *Server) handleExplain(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	id, err := uuid.Parse(request.GetString("decision_id", ""))
	if err != nil {
		return errorResult("decision_id must be a UUID"), nil
	}

	report, err := s.governance.Explain(ctx, id)
	if errors.Is(err, ledger.ErrNotFound) {
		return errorResult(fmt.Sprintf("decision %s not found", id)), nil
	}
	if err != nil {
		s.logger.Error("mcp: explain", "decision_id", id, "error", err)
		return errorResult(fmt.Sprintf("failed to explain decision: %v", err)), nil
	}

	if request.GetString("format", "json") == "text" {
		return &mcplib.CallToolResult{
			Content: []mcplib.Content{mcplib.TextContent{Type: "text", Text: report.Text}},
		}, nil
	}
	return jsonResult(report)
}

func jsonResult(v any) (*mcplib.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcp: marshal result: %w", err)
	}
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: string(data)},
		},
	}, nil
}
