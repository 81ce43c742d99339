package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
)

// Handlers holds the handler functions for each MCP tool.
type Handlers struct {
	client *FraudsightClient
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(client *FraudsightClient) *Handlers {
	return &Handlers{client: client}
}

// HandleGetTransaction looks up one transaction.
func (h *Handlers) HandleGetTransaction(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("transaction_id", "")
	if id == "" {
		return mcp.NewToolResultError("transaction_id is required"), nil
	}

	raw, err := h.client.GetTransaction(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get transaction: %v", err)), nil
	}

	text, err := formatTransaction(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse transaction: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleListFrauds lists flagged transactions.
func (h *Handlers) HandleListFrauds(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	txnType := req.GetString("type", "")
	party := req.GetString("party", "")
	limit := req.GetInt("limit", 20)

	raw, err := h.client.ListFrauds(ctx, txnType, party, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list frauds: %v", err)), nil
	}

	text, err := formatFraudList(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse transactions: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleExplainTransaction regenerates a fraud explanation.
func (h *Handlers) HandleExplainTransaction(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("transaction_id", "")
	if id == "" {
		return mcp.NewToolResultError("transaction_id is required"), nil
	}

	raw, err := h.client.ExplainTransaction(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to explain transaction: %v", err)), nil
	}

	var resp struct {
		TransactionID string          `json:"transactionId"`
		Explanation   json.RawMessage `json:"explanation"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil || resp.Explanation == nil {
		return mcp.NewToolResultText(formatJSON(raw)), nil
	}

	text, err := formatExplanation(resp.TransactionID, resp.Explanation)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse explanation: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleGetClientProfile returns a client's behavioral profile.
func (h *Handlers) HandleGetClientProfile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	partyID := req.GetString("party_id", "")
	if partyID == "" {
		return mcp.NewToolResultError("party_id is required"), nil
	}

	raw, err := h.client.GetClient(ctx, partyID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get client profile: %v", err)), nil
	}

	text, err := formatClient(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse client profile: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleGetClientVelocity returns a client's recent activity rate.
func (h *Handlers) HandleGetClientVelocity(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	partyID := req.GetString("party_id", "")
	if partyID == "" {
		return mcp.NewToolResultError("party_id is required"), nil
	}
	hours := req.GetInt("hours", 24)

	raw, err := h.client.GetClientVelocity(ctx, partyID, hours)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get velocity: %v", err)), nil
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse velocity: %v", err)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Activity for %s over the last %s hour(s):\n", getString(m, "partyId"), getString(m, "windowHours"))
	fmt.Fprintf(&sb, "  Transactions: %s\n", getString(m, "transactions"))
	fmt.Fprintf(&sb, "  Total amount: %s MRU\n", getString(m, "totalAmount"))
	if v, ok := getFloat(m, "fraudCount"); ok && v > 0 {
		fmt.Fprintf(&sb, "  Frauds: %.0f\n", v)
	}
	if v, ok := getFloat(m, "perHour"); ok {
		fmt.Fprintf(&sb, "  Rate: %.2f txn/hour\n", v)
	}
	if v, ok := getFloat(m, "amountPerHour"); ok {
		fmt.Fprintf(&sb, "  Amount rate: %.2f MRU/hour\n", v)
	}

	return mcp.NewToolResultText(sb.String()), nil
}

// HandleAssessClient runs a behavioral risk assessment.
func (h *Handlers) HandleAssessClient(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	partyID := req.GetString("party_id", "")
	if partyID == "" {
		return mcp.NewToolResultError("party_id is required"), nil
	}

	raw, err := h.client.AssessClient(ctx, partyID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Assessment failed: %v", err)), nil
	}

	var resp struct {
		Assessment map[string]any `json:"assessment"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil || resp.Assessment == nil {
		return mcp.NewToolResultText(formatJSON(raw)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Assessment for %s:\n", partyID)
	if v := getString(resp.Assessment, "riskLevel"); v != "" {
		fmt.Fprintf(&sb, "  Risk level: %s\n", v)
	}
	if patterns, ok := resp.Assessment["behavioralPatterns"].([]any); ok && len(patterns) > 0 {
		sb.WriteString("  Patterns:\n")
		for _, p := range patterns {
			if s, ok := p.(string); ok {
				fmt.Fprintf(&sb, "    - %s\n", s)
			}
		}
	}
	if v := getString(resp.Assessment, "assessment"); v != "" {
		fmt.Fprintf(&sb, "\n%s\n", v)
	}

	return mcp.NewToolResultText(sb.String()), nil
}

// HandleGetBankProfile returns a bank's aggregate profile.
func (h *Handlers) HandleGetBankProfile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code := req.GetString("bank_code", "")
	if code == "" {
		return mcp.NewToolResultError("bank_code is required"), nil
	}

	raw, err := h.client.GetBank(ctx, code)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get bank profile: %v", err)), nil
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse bank profile: %v", err)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Bank %s:\n", getString(m, "code"))
	fmt.Fprintf(&sb, "  Transactions: %s\n", getString(m, "txnCount"))
	fmt.Fprintf(&sb, "  Total amount: %s MRU\n", getString(m, "totalAmount"))
	fmt.Fprintf(&sb, "  Unique clients: %s\n", getString(m, "uniqueClients"))
	if v, ok := getFloat(m, "fraudCount"); ok && v > 0 {
		fmt.Fprintf(&sb, "  Frauds: %.0f", v)
		if hp, ok := getFloat(m, "highPriorityCount"); ok && hp > 0 {
			fmt.Fprintf(&sb, " (%.0f high priority)", hp)
		}
		sb.WriteString("\n")
	}

	return mcp.NewToolResultText(sb.String()), nil
}

// HandleGetFraudStats returns platform statistics.
func (h *Handlers) HandleGetFraudStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := h.client.GetStats(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get stats: %v", err)), nil
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse stats: %v", err)), nil
	}

	var sb strings.Builder
	sb.WriteString("Platform statistics:\n")
	fmt.Fprintf(&sb, "  Transactions: %s\n", getString(m, "totalTransactions"))
	fmt.Fprintf(&sb, "  Frauds: %s", getString(m, "fraudCount"))
	if v, ok := getFloat(m, "fraudRate"); ok {
		fmt.Fprintf(&sb, " (%.2f%%)", v)
	}
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "  Clients profiled: %s\n", getString(m, "clientCount"))
	fmt.Fprintf(&sb, "  Banks profiled: %s\n", getString(m, "bankCount"))

	return mcp.NewToolResultText(sb.String()), nil
}

// HandleListSessions lists recent ingestion sessions.
func (h *Handlers) HandleListSessions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", 10)

	raw, err := h.client.ListSessions(ctx, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list sessions: %v", err)), nil
	}

	var resp struct {
		Sessions []map[string]any `json:"sessions"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return mcp.NewToolResultError("unexpected sessions response format"), nil
	}
	if len(resp.Sessions) == 0 {
		return mcp.NewToolResultText("No ingestion sessions found."), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d session(s):\n\n", len(resp.Sessions))
	for i, s := range resp.Sessions {
		fmt.Fprintf(&sb, "%d. %s (%s)\n", i+1, getString(s, "source"), getString(s, "id"))
		fmt.Fprintf(&sb, "   Status: %s | Rows: %s | Frauds: %s | Errors: %s\n",
			getString(s, "status"), getString(s, "processedRows"),
			getString(s, "fraudDetected"), getString(s, "errorCount"))
		if started := getString(s, "startedAt"); started != "" {
			if ts, err := time.Parse(time.RFC3339Nano, started); err == nil {
				fmt.Fprintf(&sb, "   Started: %s\n", ts.Format("2006-01-02 15:04:05 MST"))
			}
		}
		if i < len(resp.Sessions)-1 {
			sb.WriteString("\n")
		}
	}

	return mcp.NewToolResultText(sb.String()), nil
}

// HandleGetDailyInsight returns the fraud digest for one day.
func (h *Handlers) HandleGetDailyInsight(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	date := req.GetString("date", "")
	if date == "" {
		return mcp.NewToolResultError("date is required"), nil
	}

	raw, err := h.client.GetDailyInsight(ctx, date)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get insight: %v", err)), nil
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse insight: %v", err)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Daily digest for %s:\n", getString(m, "date"))
	fmt.Fprintf(&sb, "  Transactions: %s\n", getString(m, "totalTransactions"))
	fmt.Fprintf(&sb, "  Frauds: %s (%s MRU)\n", getString(m, "fraudCount"), getString(m, "fraudAmount"))
	fmt.Fprintf(&sb, "  High priority: %s\n", getString(m, "highPriorityCount"))
	if clients, ok := m["topRiskClients"].([]any); ok && len(clients) > 0 {
		sb.WriteString("  Top risk clients:")
		for _, c := range clients {
			if s, ok := c.(string); ok {
				sb.WriteString(" " + s)
			}
		}
		sb.WriteString("\n")
	}
	if v := getString(m, "summary"); v != "" {
		fmt.Fprintf(&sb, "\n%s\n", v)
	}

	return mcp.NewToolResultText(sb.String()), nil
}

// --- Formatting helpers ---

func formatTransaction(raw json.RawMessage) (string, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Transaction %s:\n", getString(m, "id"))
	fmt.Fprintf(&sb, "  Type: %s | Amount: %s MRU | Status: %s\n",
		getString(m, "type"), getString(m, "amount"), getString(m, "status"))
	fmt.Fprintf(&sb, "  From: %s (%s)\n", getString(m, "partyFrom"), getString(m, "institutionFrom"))
	fmt.Fprintf(&sb, "  To:   %s (%s)\n", getString(m, "partyTo"), getString(m, "institutionTo"))
	if v := getString(m, "occurredAtRaw"); v != "" {
		fmt.Fprintf(&sb, "  Occurred: %s\n", v)
	}

	if isFraud, ok := m["isFraud"].(bool); ok && isFraud {
		sb.WriteString("\nVerdict: FRAUD")
		if v, ok := getFloat(m, "riskScore"); ok {
			fmt.Fprintf(&sb, " (risk score %.1f", v)
			if c, ok := getFloat(m, "confidence"); ok {
				fmt.Fprintf(&sb, ", confidence %.2f", c)
			}
			sb.WriteString(")")
		}
		sb.WriteString("\n")
		if v := getString(m, "priority"); v != "" {
			fmt.Fprintf(&sb, "Priority: %s\n", v)
		}
		if factors, ok := m["riskFactors"].([]any); ok && len(factors) > 0 {
			sb.WriteString("Risk factors:\n")
			for _, f := range factors {
				if s, ok := f.(string); ok {
					fmt.Fprintf(&sb, "  - %s\n", s)
				}
			}
		}
		if v := getString(m, "explanation"); v != "" {
			fmt.Fprintf(&sb, "\n%s\n", v)
		}
	} else {
		sb.WriteString("\nVerdict: clean\n")
	}

	return sb.String(), nil
}

func formatFraudList(raw json.RawMessage) (string, error) {
	var resp struct {
		Transactions []map[string]any `json:"transactions"`
		Total        int              `json:"total"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("unexpected transactions response format")
	}

	if len(resp.Transactions) == 0 {
		return "No flagged transactions found.", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Showing %d of %d flagged transaction(s):\n\n", len(resp.Transactions), resp.Total)
	for i, t := range resp.Transactions {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, getString(t, "id"))
		fmt.Fprintf(&sb, "   %s | %s MRU | %s -> %s\n",
			getString(t, "type"), getString(t, "amount"),
			getString(t, "partyFrom"), getString(t, "partyTo"))
		if v := getString(t, "priority"); v != "" {
			fmt.Fprintf(&sb, "   Priority: %s", v)
			if score, ok := getFloat(t, "riskScore"); ok {
				fmt.Fprintf(&sb, " | Risk score: %.1f", score)
			}
			sb.WriteString("\n")
		}
		if i < len(resp.Transactions)-1 {
			sb.WriteString("\n")
		}
	}
	return sb.String(), nil
}

func formatExplanation(transactionID string, raw json.RawMessage) (string, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Explanation for %s:\n", transactionID)
	if v := getString(m, "priority"); v != "" {
		fmt.Fprintf(&sb, "  Priority: %s\n", v)
	}
	if factors, ok := m["riskFactors"].([]any); ok && len(factors) > 0 {
		sb.WriteString("  Risk factors:\n")
		for _, f := range factors {
			if s, ok := f.(string); ok {
				fmt.Fprintf(&sb, "    - %s\n", s)
			}
		}
	}
	if recs, ok := m["recommendations"].([]any); ok && len(recs) > 0 {
		sb.WriteString("  Recommendations:\n")
		for _, r := range recs {
			if s, ok := r.(string); ok {
				fmt.Fprintf(&sb, "    - %s\n", s)
			}
		}
	}
	if v := getString(m, "explanation"); v != "" {
		fmt.Fprintf(&sb, "\n%s\n", v)
	}

	return sb.String(), nil
}

func formatClient(raw json.RawMessage) (string, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Client %s:\n", getString(m, "partyId"))
	fmt.Fprintf(&sb, "  Risk level: %s\n", getString(m, "riskLevel"))
	fmt.Fprintf(&sb, "  Transactions: %s (%s sent, %s received)\n",
		getString(m, "txnCount"), getString(m, "totalSent"), getString(m, "totalReceived"))
	fmt.Fprintf(&sb, "  Total amount: %s MRU | Avg: %s | Max: %s\n",
		getString(m, "totalAmount"), getString(m, "avgAmount"), getString(m, "maxAmount"))
	if v, ok := getFloat(m, "fraudCount"); ok && v > 0 {
		rate, _ := getFloat(m, "fraudRate")
		fmt.Fprintf(&sb, "  Frauds: %.0f (%.1f%% of activity)\n", v, rate)
	}
	if v := getString(m, "mostCommonType"); v != "" {
		fmt.Fprintf(&sb, "  Most common type: %s\n", v)
	}
	if v, ok := getFloat(m, "nightCount"); ok && v > 0 {
		fmt.Fprintf(&sb, "  Night transactions: %.0f\n", v)
	}
	if v := getString(m, "assessment"); v != "" {
		fmt.Fprintf(&sb, "\nLast assessment (%s):\n%s\n", getString(m, "assessmentRiskLevel"), v)
	}

	return sb.String(), nil
}

func formatJSON(raw json.RawMessage) string {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		return string(raw)
	}
	return pretty.String()
}

// getString extracts a value from a map as a string, rendering numbers too.
func getString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if s, ok := v.(string); ok {
				return s
			}
			if f, ok := v.(float64); ok {
				return fmt.Sprintf("%g", f)
			}
		}
	}
	return ""
}

// getFloat extracts a float64 value from a map, trying multiple key names.
func getFloat(m map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if f, ok := v.(float64); ok {
				return f, true
			}
		}
	}
	return 0, false
}
