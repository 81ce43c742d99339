package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/mbd888/fraudsight/internal/retry"
	"github.com/mbd888/fraudsight/internal/transaction"
)

const (
	generateAttempts  = 3
	generateBaseDelay = 500 * time.Millisecond
)

// GeminiReasoner generates explanations with the Gemini API.
type GeminiReasoner struct {
	client *genai.Client
	model  string
}

// NewGeminiReasoner creates a Gemini-backed reasoner. The API key comes
// from configuration; the model is e.g. "gemini-2.0-flash".
func NewGeminiReasoner(ctx context.Context, apiKey, model string) (*GeminiReasoner, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiReasoner{client: client, model: model}, nil
}

func (g *GeminiReasoner) Name() string { return "gemini:" + g.model }

func (g *GeminiReasoner) ExplainTransaction(ctx context.Context, t *transaction.Transaction, txnContext string) (*Explanation, error) {
	prompt := transactionPrompt(t, txnContext)

	raw, err := g.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var wire struct {
		Priority        string   `json:"priority"`
		RiskFactors     []string `json:"risk_factors"`
		Explanation     string   `json:"explanation"`
		Recommendations []string `json:"recommendations"`
		Confidence      float64  `json:"confidence"`
		Summary         string   `json:"summary"`
	}
	if err := json.Unmarshal([]byte(cleanModelJSON(raw)), &wire); err != nil {
		return nil, fmt.Errorf("unmarshal model response: %w", err)
	}

	return &Explanation{
		Priority:        normalizePriority(wire.Priority),
		RiskFactors:     wire.RiskFactors,
		Explanation:     wire.Explanation,
		Recommendations: wire.Recommendations,
		Confidence:      wire.Confidence,
		Summary:         wire.Summary,
		Source:          SourceModel,
		Model:           g.model,
		AnalyzedAt:      time.Now().UTC(),
	}, nil
}

func (g *GeminiReasoner) AssessClient(ctx context.Context, c *ClientSummary, clientContext string) (*Assessment, error) {
	prompt := clientPrompt(c, clientContext)

	raw, err := g.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var wire struct {
		RiskLevel          string   `json:"risk_level"`
		BehavioralPatterns []string `json:"behavioral_patterns"`
		Assessment         string   `json:"assessment"`
		Recommendations    []string `json:"surveillance_recommendations"`
		Confidence         float64  `json:"confidence"`
		Summary            string   `json:"summary"`
	}
	if err := json.Unmarshal([]byte(cleanModelJSON(raw)), &wire); err != nil {
		return nil, fmt.Errorf("unmarshal model response: %w", err)
	}

	return &Assessment{
		RiskLevel:          normalizeRiskLevel(wire.RiskLevel),
		BehavioralPatterns: wire.BehavioralPatterns,
		Assessment:         wire.Assessment,
		Recommendations:    wire.Recommendations,
		Confidence:         wire.Confidence,
		Summary:            wire.Summary,
		Source:             SourceModel,
		Model:              g.model,
		AnalyzedAt:         time.Now().UTC(),
	}, nil
}

func (g *GeminiReasoner) generate(ctx context.Context, prompt string) (string, error) {
	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		},
	}
	var text string
	err := retry.Do(ctx, generateAttempts, generateBaseDelay, func() error {
		resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
		if err != nil {
			return fmt.Errorf("generate content: %w", err)
		}
		text = resp.Text()
		if text == "" {
			return fmt.Errorf("empty response from model")
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

func transactionPrompt(t *transaction.Transaction, txnContext string) string {
	occurredAt := t.OccurredAtRaw
	if occurredAt == "" {
		occurredAt = "unknown"
	}
	return "You are a banking fraud detection expert. Analyze this transaction for potential fraud.\n\n" +
		"TRANSACTION DETAILS:\n" +
		fmt.Sprintf("- Reference: %s\n", t.ID) +
		fmt.Sprintf("- Amount: %s MRU\n", t.Amount) +
		fmt.Sprintf("- Type: %s\n", t.Type) +
		fmt.Sprintf("- Initiating party: %s\n", t.PartyFrom) +
		fmt.Sprintf("- Receiving party: %s\n", t.PartyTo) +
		fmt.Sprintf("- Initiating bank: %s\n", t.InstitutionFrom) +
		fmt.Sprintf("- Receiving bank: %s\n", t.InstitutionTo) +
		fmt.Sprintf("- Time: %s\n", occurredAt) +
		fmt.Sprintf("- Status: %s\n\n", t.Status) +
		"CONTEXT:\n" + txnContext + "\n\n" +
		"REQUESTED ANALYSIS:\n" +
		"1. Assess the priority level (LOW, MEDIUM, HIGH, URGENT)\n" +
		"2. Identify the specific risk factors\n" +
		"3. Provide a detailed explanation\n" +
		"4. Recommend concrete actions\n\n" +
		"Respond with STRICT JSON only. Do not wrap the response in code fences.\n" +
		"{\n" +
		"    \"priority\": \"LOW|MEDIUM|HIGH|URGENT\",\n" +
		"    \"risk_factors\": [\"factor1\", \"factor2\"],\n" +
		"    \"explanation\": \"Detailed explanation of this assessment\",\n" +
		"    \"recommendations\": [\"action1\", \"action2\"],\n" +
		"    \"confidence\": 0.85,\n" +
		"    \"summary\": \"One-sentence summary\"\n" +
		"}\n"
}

func clientPrompt(c *ClientSummary, clientContext string) string {
	return "You are an expert in client profile analysis for banking fraud detection. Analyze this client profile.\n\n" +
		"CLIENT PROFILE:\n" +
		fmt.Sprintf("- ID: %s\n", c.PartyID) +
		fmt.Sprintf("- Total transactions: %d\n", c.Transactions) +
		fmt.Sprintf("- Total amount: %s MRU\n", c.TotalAmount) +
		fmt.Sprintf("- Detected frauds: %d\n", c.FraudCount) +
		fmt.Sprintf("- Fraud rate: %.2f%%\n\n", c.FraudRate) +
		"CONTEXT:\n" + clientContext + "\n\n" +
		"REQUESTED ANALYSIS:\n" +
		"1. Assess the client risk level (LOW, MEDIUM, HIGH, CRITICAL)\n" +
		"2. Identify behavioral patterns\n" +
		"3. Provide a detailed assessment\n" +
		"4. Recommend surveillance measures\n\n" +
		"Respond with STRICT JSON only. Do not wrap the response in code fences.\n" +
		"{\n" +
		"    \"risk_level\": \"LOW|MEDIUM|HIGH|CRITICAL\",\n" +
		"    \"behavioral_patterns\": [\"pattern1\", \"pattern2\"],\n" +
		"    \"assessment\": \"Detailed assessment of the client profile\",\n" +
		"    \"surveillance_recommendations\": [\"measure1\", \"measure2\"],\n" +
		"    \"confidence\": 0.90,\n" +
		"    \"summary\": \"One-sentence profile summary\"\n" +
		"}\n"
}

// cleanModelJSON strips Markdown fences and leading/trailing noise a model
// sometimes wraps around its JSON despite instructions.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	return strings.TrimSpace(s)
}

// normalizePriority coerces a model-supplied priority to a known value,
// defaulting to MEDIUM when the model improvises.
func normalizePriority(raw string) transaction.Priority {
	p := transaction.Priority(strings.ToUpper(strings.TrimSpace(raw)))
	switch p {
	case transaction.PriorityLow, transaction.PriorityMedium, transaction.PriorityHigh, transaction.PriorityUrgent:
		return p
	}
	return transaction.PriorityMedium
}

func normalizeRiskLevel(raw string) string {
	l := strings.ToUpper(strings.TrimSpace(raw))
	switch l {
	case AssessmentLow, AssessmentMedium, AssessmentHigh, AssessmentCritical:
		return l
	}
	return AssessmentMedium
}
