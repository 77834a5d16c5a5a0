package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/secmon-lab/followup/pkg/controller/message"
	"github.com/secmon-lab/followup/pkg/domain/model"
	"github.com/secmon-lab/followup/pkg/domain/types"
	"github.com/secmon-lab/followup/pkg/utils/clock"
	"github.com/secmon-lab/followup/pkg/utils/logging"
)

const (
	serverName    = "followup"
	serverVersion = "1.0.0"
)

// Dispatcher handles message envelopes
type Dispatcher interface {
	Handle(ctx context.Context, req *message.Request) *message.Response
}

// Server exposes the reminder actions as MCP tools. Every tool call is
// translated into an action envelope, so MCP clients obey the same
// admission and single writer rules as any other collaborator.
type Server struct {
	mcpServer  *server.MCPServer
	dispatcher Dispatcher
	now        clock.Func
}

type Option func(*Server)

// WithClock sets the time source used to resolve presets
func WithClock(now clock.Func) Option {
	return func(s *Server) {
		s.now = now
	}
}

func New(dispatcher Dispatcher, opts ...Option) *Server {
	s := &Server{
		dispatcher: dispatcher,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mcpServer = server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	s.registerTools()
	return s
}

// MCPServer returns the underlying MCP server for serving
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// Handler returns the streamable HTTP transport mounted at path
func (s *Server) Handler(path string) http.Handler {
	return server.NewStreamableHTTPServer(s.mcpServer,
		server.WithEndpointPath(path),
		server.WithStateLess(true),
	)
}

func (s *Server) registerTools() {
	presets := make([]string, 0, len(types.AllTimePresets()))
	for _, p := range types.AllTimePresets() {
		presets = append(presets, string(p))
	}

	s.mcpServer.AddTool(
		mcp.NewTool("create_reminder",
			mcp.WithDescription("Schedule a follow-up reminder on a chat conversation. Give either scheduled_at or preset."),
			mcp.WithString("conversation_label", mcp.Required(), mcp.Description("Display name of the conversation")),
			mcp.WithString("conversation_id", mcp.Description("Conversation identifier; a local surrogate is generated when omitted")),
			mcp.WithString("scheduled_at", mcp.Description("Due time in RFC3339 format (e.g. 2026-10-15T20:00:00+09:00)")),
			mcp.WithString("preset", mcp.Description("Quick pick: "+strings.Join(presets, ", ")), mcp.Enum(presets...)),
		),
		s.handleCreate,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("complete_reminder",
			mcp.WithDescription("Mark a pending reminder as completed"),
			mcp.WithString("reminder_id", mcp.Required(), mcp.Description("Reminder ID")),
		),
		s.reminderIDTool(message.ActionCompleteReminder),
	)

	s.mcpServer.AddTool(
		mcp.NewTool("delete_reminder",
			mcp.WithDescription("Delete a reminder permanently"),
			mcp.WithString("reminder_id", mcp.Required(), mcp.Description("Reminder ID")),
		),
		s.reminderIDTool(message.ActionDeleteReminder),
	)

	s.mcpServer.AddTool(
		mcp.NewTool("list_reminders",
			mcp.WithDescription("List reminders sorted by due time together with the plan usage"),
		),
		s.noArgTool(message.ActionGetReminders),
	)

	s.mcpServer.AddTool(
		mcp.NewTool("get_plan_status",
			mcp.WithDescription("Show the plan type, active reminder limit and whether a new reminder can be added"),
		),
		s.noArgTool(message.ActionGetPlanStatus),
	)

	s.mcpServer.AddTool(
		mcp.NewTool("get_storage_status",
			mcp.WithDescription("Show how much of the storage quota the reminders use"),
		),
		s.noArgTool(message.ActionGetStorageStatus),
	)
}

func (s *Server) handleCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	label := req.GetString("conversation_label", "")
	conversationID := req.GetString("conversation_id", "")
	scheduledAt := req.GetString("scheduled_at", "")
	preset := req.GetString("preset", "")

	if conversationID == "" {
		conversationID = model.NewSurrogateConversationID()
	}

	var at time.Time
	switch {
	case scheduledAt != "" && preset != "":
		return mcp.NewToolResultError("give either scheduled_at or preset, not both"), nil

	case scheduledAt != "":
		t, err := time.Parse(time.RFC3339, scheduledAt)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid scheduled_at format: %v (use RFC3339)", err)), nil
		}
		at = t

	case preset != "":
		p, err := types.ParseTimePreset(preset)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		t, err := model.ResolvePreset(p, s.now())
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		at = t

	default:
		return mcp.NewToolResultError("scheduled_at or preset is required"), nil
	}

	return s.call(ctx, message.ActionCreateReminder, map[string]any{
		"conversationId":    conversationID,
		"conversationLabel": label,
		"scheduledAt":       at.UnixMilli(),
	})
}

func (s *Server) reminderIDTool(action message.Action) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return s.call(ctx, action, map[string]any{
			"reminderId": req.GetString("reminder_id", ""),
		})
	}
}

func (s *Server) noArgTool(action message.Action) server.ToolHandlerFunc {
	return func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return s.call(ctx, action, nil)
	}
}

// call sends one envelope. Refusals become tool errors carrying the user
// message and code; the protocol error is reserved for transport problems.
func (s *Server) call(ctx context.Context, action message.Action, payload map[string]any) (*mcp.CallToolResult, error) {
	req := &message.Request{Type: action}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to encode request: %v", err)), nil
		}
		req.Payload = raw
	}

	resp := s.dispatcher.Handle(ctx, req)
	if !resp.Success {
		logging.From(ctx).Debug("MCP tool refused", "action", action, "code", resp.Code)
		return mcp.NewToolResultError(fmt.Sprintf("%s (%s)", resp.Error, resp.Code)), nil
	}

	output, err := json.MarshalIndent(resp.Data, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(output)), nil
}
