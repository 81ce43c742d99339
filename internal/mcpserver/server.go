package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer creates a configured MCP server with all FraudSight tools registered.
func NewMCPServer(cfg Config) *server.MCPServer {
	s := server.NewMCPServer("fraudsight", "1.0.0")
	client := NewFraudsightClient(cfg)
	h := NewHandlers(client)

	s.AddTool(ToolGetTransaction, h.HandleGetTransaction)
	s.AddTool(ToolListFrauds, h.HandleListFrauds)
	s.AddTool(ToolExplainTransaction, h.HandleExplainTransaction)
	s.AddTool(ToolGetClientProfile, h.HandleGetClientProfile)
	s.AddTool(ToolGetClientVelocity, h.HandleGetClientVelocity)
	s.AddTool(ToolAssessClient, h.HandleAssessClient)
	s.AddTool(ToolGetBankProfile, h.HandleGetBankProfile)
	s.AddTool(ToolGetFraudStats, h.HandleGetFraudStats)
	s.AddTool(ToolListSessions, h.HandleListSessions)
	s.AddTool(ToolGetDailyInsight, h.HandleGetDailyInsight)

	return s
}
