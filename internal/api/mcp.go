package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/prepflow/prepflow/internal/interview"
	"github.com/prepflow/prepflow/internal/session"
)

// NewMCPServer creates an MCP server exposing the session engine as tools,
// so an agent can drive a full practice run: start, answer, skip, end,
// report.
func NewMCPServer(deps Deps) *server.MCPServer {
	s := server.NewMCPServer(
		"prepflow",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("prepflow — mock interview practice engine with graded feedback."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("start_interview",
			mcp.WithDescription("Create and start a mock interview session. Returns the session ID and the first question."),
			mcp.WithString("job_title", mcp.Description("Target job title"), mcp.Required()),
			mcp.WithString("job_description", mcp.Description("Job posting text"), mcp.Required()),
			mcp.WithString("round", mcp.Description("Interview round: managerial, technical_round_1, technical_round_2, hr (default hr)")),
			mcp.WithString("level", mcp.Description("Difficulty level: easy, medium, hard, god (default medium)")),
			mcp.WithArray("skills", mcp.Description("Skills to practice, in priority order")),
			mcp.WithString("resume_id", mcp.Description("ID of a previously imported resume")),
			mcp.WithString("resume_text", mcp.Description("Inline resume text (imported automatically)")),
		),
		mcpStartInterview(deps),
	)

	s.AddTool(
		mcp.NewTool("submit_answer",
			mcp.WithDescription("Submit an answer to the current question. Returns graded feedback and the next question, if any."),
			mcp.WithString("session_id", mcp.Description("Session ID from start_interview"), mcp.Required()),
			mcp.WithString("answer", mcp.Description("The candidate's answer"), mcp.Required()),
		),
		mcpSubmitAnswer(deps),
	)

	s.AddTool(
		mcp.NewTool("skip_question",
			mcp.WithDescription("Skip the current question without answering. It scores zero."),
			mcp.WithString("session_id", mcp.Description("Session ID"), mcp.Required()),
		),
		mcpSkipQuestion(deps),
	)

	s.AddTool(
		mcp.NewTool("end_interview",
			mcp.WithDescription("End the session early and get the final report for the answers so far."),
			mcp.WithString("session_id", mcp.Description("Session ID"), mcp.Required()),
		),
		mcpEndInterview(deps),
	)

	s.AddTool(
		mcp.NewTool("get_report",
			mcp.WithDescription("Get the aggregated report for a session."),
			mcp.WithString("session_id", mcp.Description("Session ID"), mcp.Required()),
		),
		mcpGetReport(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"sessions://recent",
			"Recent Sessions",
			mcp.WithResourceDescription("Last 10 completed practice sessions (summaries only)"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceRecent(deps),
	)

	return s
}

func mcpStartInterview(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		jobTitle, err := req.RequireString("job_title")
		if err != nil {
			return mcpError("job_title is required"), nil
		}
		jobDescription, err := req.RequireString("job_description")
		if err != nil {
			return mcpError("job_description is required"), nil
		}

		round := interview.RoundHR
		if v := req.GetString("round", ""); v != "" {
			if round, err = interview.ParseRound(v); err != nil {
				return mcpError(err.Error()), nil
			}
		}
		level := interview.LevelMedium
		if v := req.GetString("level", ""); v != "" {
			if level, err = interview.ParseLevel(v); err != nil {
				return mcpError(err.Error()), nil
			}
		}

		var snap interview.ResumeSnapshot
		if id := req.GetString("resume_id", ""); id != "" {
			if snap, err = deps.Resumes.Snapshot(id); err != nil {
				return mcpError(fmt.Sprintf("resume %s: %v", id, err)), nil
			}
		} else if text := req.GetString("resume_text", ""); text != "" {
			rec, err := deps.Resumes.ImportText(deps.AccountID, "inline", text)
			if err != nil {
				return mcpError(fmt.Sprintf("importing resume: %v", err)), nil
			}
			if snap, err = deps.Resumes.Snapshot(rec.ID); err != nil {
				return mcpError(fmt.Sprintf("loading resume: %v", err)), nil
			}
		}

		c := deps.NewController()
		ictx := interview.Context{
			JobTitle:       jobTitle,
			JobDescription: jobDescription,
			Round:          round,
			Level:          level,
			Skills:         req.GetStringSlice("skills", nil),
			Resume:         snap,
		}
		if err := c.Configure(ictx); err != nil {
			return mcpError(err.Error()), nil
		}
		if err := c.Start(context.WithoutCancel(ctx)); err != nil {
			return mcpError(fmt.Sprintf("starting session: %v", err)), nil
		}
		deps.Registry.Add(c)

		return mcpJSON(stateOf(c))
	}
}

func mcpSubmitAnswer(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		c, result := mcpController(deps, req)
		if result != nil {
			return result, nil
		}
		answer, err := req.RequireString("answer")
		if err != nil {
			return mcpError("answer is required"), nil
		}
		if err := c.Submit(ctx, answer); err != nil {
			return mcpError(err.Error()), nil
		}
		return mcpJSON(answerStateOf(c))
	}
}

func mcpSkipQuestion(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		c, result := mcpController(deps, req)
		if result != nil {
			return result, nil
		}
		if err := c.Skip(ctx); err != nil {
			return mcpError(err.Error()), nil
		}
		return mcpJSON(answerStateOf(c))
	}
}

func mcpEndInterview(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		c, result := mcpController(deps, req)
		if result != nil {
			return result, nil
		}
		if err := c.End(ctx); err != nil {
			return mcpError(err.Error()), nil
		}
		return mcpJSON(c.Report())
	}
}

func mcpGetReport(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		c, result := mcpController(deps, req)
		if result != nil {
			return result, nil
		}
		return mcpJSON(c.Report())
	}
}

func mcpResourceRecent(deps Deps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		recs, err := deps.Sessions.ListSessions(deps.AccountID, 10)
		if err != nil {
			return nil, fmt.Errorf("failed to list sessions: %w", err)
		}

		type sessionSummary struct {
			ID           string `json:"id"`
			CreatedAt    string `json:"created_at"`
			Mode         string `json:"mode"`
			OverallScore int    `json:"overall_score"`
		}
		summaries := make([]sessionSummary, len(recs))
		for i, rec := range recs {
			summaries[i] = sessionSummary{
				ID:           rec.ID,
				CreatedAt:    rec.CreatedAt.Format(time.RFC3339),
				Mode:         rec.Mode,
				OverallScore: rec.OverallScore,
			}
		}

		b, err := json.Marshal(summaries)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal sessions: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

// mcpController resolves the session_id argument to a live controller. The
// second return value is non-nil when resolution failed and should be
// returned to the caller as-is.
func mcpController(deps Deps, req mcp.CallToolRequest) (*session.Controller, *mcp.CallToolResult) {
	id, err := req.RequireString("session_id")
	if err != nil {
		return nil, mcpError("session_id is required")
	}
	c, ok := deps.Registry.Get(id)
	if !ok {
		return nil, mcpError(fmt.Sprintf("no live session %s", id))
	}
	return c, nil
}

func mcpJSON(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcpText(string(b)), nil
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
