package mcpserver

import "github.com/mark3labs/mcp-go/mcp"

// Tool definitions for the FraudSight MCP server.
// Descriptions are what the LLM reads to decide which tool to use.

var ToolGetTransaction = mcp.NewTool("get_transaction",
	mcp.WithDescription(
		"Look up a single transaction by its ID. "+
			"Returns the amount, parties, institutions, fraud verdict, risk score, "+
			"and the analyst explanation if one was generated."),
	mcp.WithString("transaction_id",
		mcp.Required(),
		mcp.Description("The transaction ID from the source feed (e.g. 'TRX-2024-0001')")),
)

var ToolListFrauds = mcp.NewTool("list_frauds",
	mcp.WithDescription(
		"List transactions flagged as fraud, newest first. "+
			"Optionally filter by transaction type or by a party appearing on either side."),
	mcp.WithString("type",
		mcp.Description("Filter by transaction type"),
		mcp.Enum("RT", "TRF", "KO", "PYM")),
	mcp.WithString("party",
		mcp.Description("Filter to transactions sent or received by this party (e.g. 'C1001')")),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of transactions to return (default 20)")),
)

var ToolExplainTransaction = mcp.NewTool("explain_transaction",
	mcp.WithDescription(
		"Generate a fresh fraud explanation for a flagged transaction. "+
			"Returns risk factors, a priority level, and recommended actions. "+
			"Fails if the transaction was not flagged as fraud."),
	mcp.WithString("transaction_id",
		mcp.Required(),
		mcp.Description("The flagged transaction's ID")),
)

var ToolGetClientProfile = mcp.NewTool("get_client_profile",
	mcp.WithDescription(
		"Get the behavioral profile for a client party: transaction volumes, "+
			"amount statistics, fraud count and rate, risk level, and activity patterns."),
	mcp.WithString("party_id",
		mcp.Required(),
		mcp.Description("The client's party ID (e.g. 'C1001')")),
)

var ToolGetClientVelocity = mcp.NewTool("get_client_velocity",
	mcp.WithDescription(
		"Measure a client's recent outgoing activity rate: transactions per hour "+
			"and amount per hour over a sliding window. Useful for spotting bursts."),
	mcp.WithString("party_id",
		mcp.Required(),
		mcp.Description("The client's party ID")),
	mcp.WithNumber("hours",
		mcp.Description("Window size in hours (default 24)")),
)

var ToolAssessClient = mcp.NewTool("assess_client",
	mcp.WithDescription(
		"Run a behavioral risk assessment over a client's aggregate history. "+
			"Returns a risk level, a written assessment, and observed behavioral "+
			"patterns. The result is persisted on the client's profile."),
	mcp.WithString("party_id",
		mcp.Required(),
		mcp.Description("The client's party ID")),
)

var ToolGetBankProfile = mcp.NewTool("get_bank_profile",
	mcp.WithDescription(
		"Get the aggregate profile for a bank: transaction volume, total amount, "+
			"unique client count, and how many frauds touched the institution."),
	mcp.WithString("bank_code",
		mcp.Required(),
		mcp.Description("The institution code (e.g. 'BNK_07')")),
)

var ToolGetFraudStats = mcp.NewTool("get_fraud_stats",
	mcp.WithDescription(
		"Get platform-wide fraud statistics: total transactions, fraud count and "+
			"rate, and the number of profiled clients and banks."),
)

var ToolListSessions = mcp.NewTool("list_sessions",
	mcp.WithDescription(
		"List recent CSV ingestion sessions with their row counts, fraud totals, "+
			"error counts, and terminal status."),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of sessions to return (default 10)")),
)

var ToolGetDailyInsight = mcp.NewTool("get_daily_insight",
	mcp.WithDescription(
		"Get the fraud digest for one calendar day: transaction totals, fraud "+
			"amount, high priority count, and the top risk clients."),
	mcp.WithString("date",
		mcp.Required(),
		mcp.Description("The day to look up, formatted YYYY-MM-DD")),
)
