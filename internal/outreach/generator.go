// Package outreach drafts emails from a student to a professor discovered in
// the research graph, personalized with the student's CV concepts.
package outreach

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/deepscience/research-graph-service/internal/domain"
	"github.com/deepscience/research-graph-service/internal/llm"
	"github.com/deepscience/research-graph-service/internal/observability"
)

// EmailType selects the tone and intent of the drafted email.
type EmailType string

const (
	// EmailTypeColab asks about research collaboration opportunities.
	EmailTypeColab EmailType = "colab"
	// EmailTypeReachOut expresses interest in the professor's work.
	EmailTypeReachOut EmailType = "reach_out"
)

// Valid reports whether the email type is a known value.
func (t EmailType) Valid() bool {
	return t == EmailTypeColab || t == EmailTypeReachOut
}

// emailSystemPrompt frames the model as an academic email writer.
const emailSystemPrompt = "You are a helpful professional assistant writing academic emails."

// Request describes the email to draft.
type Request struct {
	// Type selects colab or reach_out phrasing.
	Type EmailType
	// ProfessorName is the addressee.
	ProfessorName string
	// ProfessorContext summarizes the professor's work for the model.
	ProfessorContext string
	// RecipientName overrides the greeting name when set.
	RecipientName string
	// StudentName signs the email when set.
	StudentName string
	// CVText is a short excerpt of the student's CV.
	CVText string
	// CVConcepts are the student's extracted research interests.
	CVConcepts []string
}

// Generator drafts outreach emails through an LLM completion.
type Generator struct {
	client  llm.Client
	logger  zerolog.Logger
	metrics *observability.Metrics
}

// NewGenerator creates an email generator backed by the given LLM client.
func NewGenerator(client llm.Client, logger zerolog.Logger, metrics *observability.Metrics) *Generator {
	return &Generator{
		client:  client,
		logger:  observability.WithComponent(logger, "email_generator"),
		metrics: metrics,
	}
}

// Generate drafts the email described by req. Unlike intent and concept
// extraction there is no useful degraded output here, so model failures are
// returned to the caller.
func (g *Generator) Generate(ctx context.Context, req Request) (string, error) {
	if !req.Type.Valid() {
		return "", domain.NewValidationError("email_type", "must be colab or reach_out")
	}
	if strings.TrimSpace(req.ProfessorName) == "" {
		return "", domain.NewValidationError("professor_name", "must not be empty")
	}
	if g.client == nil {
		return "", fmt.Errorf("email generation: %w", domain.ErrServiceUnavailable)
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("email generation: %w", err)
	}

	start := time.Now()
	resp, err := g.client.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: emailSystemPrompt},
			{Role: llm.RoleUser, Content: buildEmailPrompt(req)},
		},
		MaxTokens:   1024,
		Temperature: 0.7,
	})
	if err != nil {
		if g.metrics != nil {
			g.metrics.RecordLLMRequestFailed("outreach_email", g.client.Model(), "completion")
		}
		return "", fmt.Errorf("email generation: %w", err)
	}

	if g.metrics != nil {
		g.metrics.RecordLLMRequest("outreach_email", g.client.Model(), time.Since(start).Seconds())
		g.metrics.RecordLLMTokens("outreach_email", g.client.Model(), resp.Usage.InputTokens, resp.Usage.OutputTokens)
	}

	content := strings.TrimSpace(resp.Content)
	if content == "" {
		return "", fmt.Errorf("email generation: %w", domain.ErrMalformedResponse)
	}

	return content, nil
}

// buildEmailPrompt renders the type-specific instructions.
func buildEmailPrompt(req Request) string {
	concepts := strings.Join(req.CVConcepts, ", ")
	cvText := req.CVText
	if cvText == "" {
		cvText = "Early-career researcher"
	}

	var b strings.Builder

	switch req.Type {
	case EmailTypeColab:
		signature := "A prospective collaborator"
		if req.StudentName != "" {
			signature = req.StudentName
		}
		fmt.Fprintf(&b, "Write a warm, personalized email from a motivated student to Professor %s asking about research collaboration opportunities.\n\n", req.ProfessorName)
		fmt.Fprintf(&b, "STUDENT'S BACKGROUND (from their CV):\n- Research interests and skills: %s\n- Brief experience: %s\n\n", concepts, cvText)
		fmt.Fprintf(&b, "PROFESSOR'S WORK:\n%s\n\n", req.ProfessorContext)
		b.WriteString("INSTRUCTIONS:\n")
		fmt.Fprintf(&b, "- Start with a warm, genuine greeting (e.g., \"Dear Professor %s\")\n", greetingName(req))
		b.WriteString("- Express specific enthusiasm about their work based on the context provided\n")
		b.WriteString("- Connect your background/interests to their research in a natural way\n")
		b.WriteString("- Ask if they have any research opportunities or would be open to collaboration\n")
		b.WriteString("- Keep it concise (3-4 short paragraphs)\n")
		b.WriteString("- Use a friendly but professional tone\n")
		b.WriteString("- DO NOT use placeholders like [Topic], [Your Name], or brackets\n")
		fmt.Fprintf(&b, "- Sign off with exactly this signature: %q\n\n", signature)
	default:
		signature := "A curious student"
		if req.StudentName != "" {
			signature = req.StudentName
		}
		fmt.Fprintf(&b, "Write a warm, friendly email from a curious student to Professor %s expressing interest in their work.\n\n", req.ProfessorName)
		fmt.Fprintf(&b, "PROFESSOR'S WORK:\n%s\n\n", req.ProfessorContext)
		fmt.Fprintf(&b, "STUDENT'S INTERESTS:\n%s\n\n", concepts)
		b.WriteString("INSTRUCTIONS:\n")
		fmt.Fprintf(&b, "- Start with a warm greeting (e.g., \"Dear Professor %s\")\n", greetingName(req))
		b.WriteString("- Mention something specific from their work that caught your attention\n")
		b.WriteString("- Ask thoughtful questions or request learning resources related to their research\n")
		b.WriteString("- Keep it brief (2-3 short paragraphs)\n")
		b.WriteString("- Tone should be friendly, curious, and respectful\n")
		b.WriteString("- DO NOT use placeholders like [Topic], [Your Name], or brackets\n")
		fmt.Fprintf(&b, "- Sign off with exactly this signature: %q\n\n", signature)
	}

	b.WriteString("Write the complete email now:")
	return b.String()
}

// greetingName returns the recipient override when set, else the professor name.
func greetingName(req Request) string {
	if req.RecipientName != "" {
		return req.RecipientName
	}
	return req.ProfessorName
}
