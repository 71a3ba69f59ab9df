// Package toolhandlers maps the daemon's externally exposed operations
// (start, heartbeat, end, seal_active, backup, restore, stats,
// list_milestones, status) onto session-engine calls, enforcing schemas and
// wrapping every result in the uniform MCP content envelope.
package toolhandlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/useai-dev/useai-core/internal/config"
	"github.com/useai-dev/useai-core/internal/engine"
	"github.com/useai-dev/useai-core/internal/metrics"
	"github.com/useai-dev/useai-core/internal/stats"
	"github.com/useai-dev/useai-core/internal/store"
	"github.com/useai-dev/useai-core/internal/telemetry"
)

// Registry holds everything a handler needs: the engine for this
// transport, the shared stores, and the live config.
type Registry struct {
	Engine *engine.Engine
	Layout store.Layout
	CfgFn  func() config.Config
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}
}

func errorResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}, IsError: true}
}

// StartArgs is the schema for the start tool.
type StartArgs struct {
	TaskType                string   `json:"task_type"`
	Client                  string   `json:"client"`
	Title                   string   `json:"title,omitempty"`
	PrivateTitle            string   `json:"private_title,omitempty"`
	Prompt                  string   `json:"prompt,omitempty"`
	PromptWordCount         int      `json:"prompt_word_count,omitempty"`
	PromptImageDescriptions []string `json:"prompt_image_descriptions,omitempty"`
	Model                   string   `json:"model,omitempty"`
	Project                 string   `json:"project,omitempty"`
	ConversationID          string   `json:"conversation_id,omitempty"`
}

// Register adds every named tool to server, delegating to reg.
func Register(server *mcp.Server, reg *Registry) {
	mcp.AddTool(server, &mcp.Tool{Name: "start", Description: "Start or nest a tracked coding session."},
		func(ctx context.Context, req *mcp.CallToolRequest, args StartArgs) (*mcp.CallToolResult, any, error) {
			ctx, span := telemetry.StartHandlerSpan(ctx, "start")
			defer func() { telemetry.EndSpan(span, nil) }()
			res, err := reg.Engine.Start(engine.StartParams{
				TaskType:                args.TaskType,
				Client:                  args.Client,
				Title:                   args.Title,
				PrivateTitle:            args.PrivateTitle,
				Prompt:                  args.Prompt,
				PromptWordCount:         args.PromptWordCount,
				PromptImageDescriptions: args.PromptImageDescriptions,
				Model:                   args.Model,
				Project:                 args.Project,
				ConversationID:          args.ConversationID,
			})
			if err != nil {
				return handleEngineError("start", err)
			}
			return textResult(fmt.Sprintf(`{"session_id":%q,"conversation_id":%q}`, res.SessionID, res.ConversationID)), nil, nil
		})

	mcp.AddTool(server, &mcp.Tool{Name: "heartbeat", Description: "Record liveness for the active session."},
		func(ctx context.Context, req *mcp.CallToolRequest, args struct{}) (*mcp.CallToolResult, any, error) {
			res, err := reg.Engine.Heartbeat()
			if err != nil {
				return handleEngineError("heartbeat", err)
			}
			metrics.Heartbeats.Inc()
			return textResult(fmt.Sprintf(`{"heartbeat_number":%d,"cumulative_seconds":%v}`, res.HeartbeatNumber, res.CumulativeSeconds)), nil, nil
		})

	mcp.AddTool(server, &mcp.Tool{Name: "end", Description: "End the active session and seal its chain."},
		func(ctx context.Context, req *mcp.CallToolRequest, args EndArgs) (*mcp.CallToolResult, any, error) {
			_, span := telemetry.StartHandlerSpan(ctx, "end")
			defer func() { telemetry.EndSpan(span, nil) }()
			var eval *engine.Evaluation
			if args.Evaluation != nil {
				e := engine.Evaluation(*args.Evaluation)
				eval = &e
			}
			var milestones []engine.MilestoneInput
			for _, m := range args.Milestones {
				milestones = append(milestones, engine.MilestoneInput(m))
			}
			res, err := reg.Engine.End(engine.EndParams{
				TaskType:          args.TaskType,
				Languages:         args.Languages,
				FilesTouchedCount: args.FilesTouchedCount,
				Milestones:        milestones,
				Evaluation:        eval,
			})
			if err != nil {
				return handleEngineError("end", err)
			}
			score := "null"
			if res.Score != nil {
				score = fmt.Sprintf("%d", *res.Score)
			}
			return textResult(fmt.Sprintf(`{"duration_seconds":%v,"milestone_count":%d,"score":%s}`, res.DurationSeconds, res.MilestoneCount, score)), nil, nil
		})

	mcp.AddTool(server, &mcp.Tool{Name: "seal_active", Description: "Synthesize an end+seal for a session left in progress."},
		func(ctx context.Context, req *mcp.CallToolRequest, args struct{}) (*mcp.CallToolResult, any, error) {
			if err := reg.Engine.SealActive(); err != nil {
				return handleEngineError("seal_active", err)
			}
			return textResult(`{"sealed":true}`), nil, nil
		})

	mcp.AddTool(server, &mcp.Tool{Name: "backup", Description: "Export sessions, milestones, and sealed chains."},
		func(ctx context.Context, req *mcp.CallToolRequest, args struct{}) (*mcp.CallToolResult, any, error) {
			blob, err := reg.Engine.Backup()
			if err != nil {
				return handleEngineError("backup", err)
			}
			b, _ := marshal(blob)
			return textResult(string(b)), nil, nil
		})

	mcp.AddTool(server, &mcp.Tool{Name: "restore", Description: "Merge a previously exported backup blob."},
		func(ctx context.Context, req *mcp.CallToolRequest, args engine.BackupBlob) (*mcp.CallToolResult, any, error) {
			if err := reg.Engine.Restore(args); err != nil {
				return handleEngineError("restore", err)
			}
			return textResult(`{"restored":true}`), nil, nil
		})

	mcp.AddTool(server, &mcp.Tool{Name: "stats", Description: "Aggregate sealed sessions into totals and breakdowns."},
		func(ctx context.Context, req *mcp.CallToolRequest, args struct{}) (*mcp.CallToolResult, any, error) {
			summary, err := stats.Compute(reg.Layout)
			if err != nil {
				metrics.HandlerErrors.WithLabelValues("stats").Inc()
				return errorResult(err.Error()), nil, nil
			}
			b, _ := marshal(summary)
			return textResult(string(b)), nil, nil
		})

	mcp.AddTool(server, &mcp.Tool{Name: "list_milestones", Description: "List persisted milestones."},
		func(ctx context.Context, req *mcp.CallToolRequest, args struct{}) (*mcp.CallToolResult, any, error) {
			var milestones []engine.Milestone
			store.LoadJSONList(reg.Layout.MilestonesPath(), &milestones)
			b, _ := marshal(milestones)
			return textResult(string(b)), nil, nil
		})

	mcp.AddTool(server, &mcp.Tool{Name: "status", Description: "Report session count, milestone split, disk usage, config."},
		func(ctx context.Context, req *mcp.CallToolRequest, args struct{}) (*mcp.CallToolResult, any, error) {
			status, err := computeStatus(reg)
			if err != nil {
				metrics.HandlerErrors.WithLabelValues("status").Inc()
				return errorResult(err.Error()), nil, nil
			}
			b, _ := marshal(status)
			return textResult(string(b)), nil, nil
		})
}

// EndArgs is the schema for the end tool.
type EndArgs struct {
	TaskType          string              `json:"task_type"`
	Languages         []string            `json:"languages"`
	FilesTouchedCount int                 `json:"files_touched_count"`
	Milestones        []MilestoneArg      `json:"milestones,omitempty"`
	Evaluation        *EvaluationArg      `json:"evaluation,omitempty"`
}

// MilestoneArg mirrors engine.MilestoneInput for JSON schema purposes.
type MilestoneArg struct {
	Title        string `json:"title"`
	PrivateTitle string `json:"private_title,omitempty"`
	Category     string `json:"category,omitempty"`
	Complexity   string `json:"complexity,omitempty"`
}

// EvaluationArg mirrors engine.Evaluation for JSON schema purposes.
type EvaluationArg struct {
	Framework         config.EvaluationFramework `json:"framework"`
	PromptQuality     int                        `json:"prompt_quality"`
	ContextProvided   int                        `json:"context_provided"`
	ScopeQuality      int                        `json:"scope_quality"`
	IndependenceLevel int                        `json:"independence_level"`
	ToolsLeveraged    int                        `json:"tools_leveraged"`
	TaskOutcome       string                     `json:"task_outcome"`
}

// handleEngineError converts an engine sentinel error into the handler
// result envelope. Nothing ever escapes as a Go panic or propagated error
// past this boundary — per the catch-at-the-edge requirement, any error is
// converted to a content message. tool names the handler error metric.
func handleEngineError(tool string, err error) (*mcp.CallToolResult, any, error) {
	if errors.Is(err, engine.ErrNoActiveSession) {
		return textResult("No active session to end"), nil, nil
	}
	metrics.HandlerErrors.WithLabelValues(tool).Inc()
	return errorResult(err.Error()), nil, nil
}

type statusResult struct {
	SessionCount          int            `json:"session_count"`
	UnpublishedMilestones int            `json:"unpublished_milestones"`
	PublishedMilestones   int            `json:"published_milestones"`
	TotalBytes            int64          `json:"total_bytes"`
	Config                config.Config  `json:"config"`
}

func computeStatus(reg *Registry) (statusResult, error) {
	var seals []interface{}
	store.LoadJSONList(reg.Layout.SessionsPath(), &seals)

	var milestones []engine.Milestone
	store.LoadJSONList(reg.Layout.MilestonesPath(), &milestones)
	published, unpublished := 0, 0
	for _, m := range milestones {
		if m.Published {
			published++
		} else {
			unpublished++
		}
	}

	total := dirSize(reg.Layout.Base)

	return statusResult{
		SessionCount:          len(seals),
		UnpublishedMilestones: unpublished,
		PublishedMilestones:   published,
		TotalBytes:            total,
		Config:                reg.CfgFn(),
	}, nil
}
