package outreach

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepscience/research-graph-service/internal/domain"
	"github.com/deepscience/research-graph-service/internal/llm"
)

type stubClient struct {
	response *llm.Response
	err      error
	requests []llm.Request
}

func (c *stubClient) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	c.requests = append(c.requests, req)
	if c.err != nil {
		return nil, c.err
	}
	return c.response, nil
}

func (c *stubClient) Provider() string { return "stub" }
func (c *stubClient) Model() string    { return "stub-model" }

func colabRequest() Request {
	return Request{
		Type:             EmailTypeColab,
		ProfessorName:    "Marco Hutter",
		ProfessorContext: "Leads the Robotic Systems Lab at ETH Zurich.",
		StudentName:      "Ada Lovelace",
		CVText:           "PhD student working on legged locomotion",
		CVConcepts:       []string{"robotics", "control theory"},
	}
}

func TestEmailType_Valid(t *testing.T) {
	assert.True(t, EmailTypeColab.Valid())
	assert.True(t, EmailTypeReachOut.Valid())
	assert.False(t, EmailType("newsletter").Valid())
	assert.False(t, EmailType("").Valid())
}

func TestGenerator_Generate(t *testing.T) {
	t.Run("drafts collaboration email", func(t *testing.T) {
		client := &stubClient{response: &llm.Response{
			Content: "Dear Professor Hutter,\n\nI admire your work.\n\nAda Lovelace",
		}}
		gen := NewGenerator(client, zerolog.Nop(), nil)

		content, err := gen.Generate(context.Background(), colabRequest())
		require.NoError(t, err)
		assert.Contains(t, content, "Dear Professor Hutter")

		require.Len(t, client.requests, 1)
		req := client.requests[0]
		require.Len(t, req.Messages, 2)
		assert.Equal(t, llm.RoleSystem, req.Messages[0].Role)

		prompt := req.Messages[1].Content
		assert.Contains(t, prompt, "research collaboration opportunities")
		assert.Contains(t, prompt, "Marco Hutter")
		assert.Contains(t, prompt, "robotics, control theory")
		assert.Contains(t, prompt, "Robotic Systems Lab")
		assert.Contains(t, prompt, "Ada Lovelace")
	})

	t.Run("drafts reach out email", func(t *testing.T) {
		client := &stubClient{response: &llm.Response{Content: "Dear Professor Hutter, ..."}}
		gen := NewGenerator(client, zerolog.Nop(), nil)

		req := colabRequest()
		req.Type = EmailTypeReachOut
		req.StudentName = ""

		_, err := gen.Generate(context.Background(), req)
		require.NoError(t, err)

		prompt := client.requests[0].Messages[1].Content
		assert.Contains(t, prompt, "expressing interest in their work")
		assert.Contains(t, prompt, "A curious student")
		assert.NotContains(t, prompt, "research collaboration opportunities")
	})

	t.Run("uses recipient name in greeting when set", func(t *testing.T) {
		client := &stubClient{response: &llm.Response{Content: "Dear Professor H., ..."}}
		gen := NewGenerator(client, zerolog.Nop(), nil)

		req := colabRequest()
		req.RecipientName = "Hutter"

		_, err := gen.Generate(context.Background(), req)
		require.NoError(t, err)
		assert.Contains(t, client.requests[0].Messages[1].Content, `"Dear Professor Hutter"`)
	})

	t.Run("rejects unknown email type", func(t *testing.T) {
		gen := NewGenerator(&stubClient{}, zerolog.Nop(), nil)

		req := colabRequest()
		req.Type = "newsletter"

		_, err := gen.Generate(context.Background(), req)
		assert.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	})

	t.Run("rejects empty professor name", func(t *testing.T) {
		gen := NewGenerator(&stubClient{}, zerolog.Nop(), nil)

		req := colabRequest()
		req.ProfessorName = "  "

		_, err := gen.Generate(context.Background(), req)
		assert.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	})

	t.Run("fails without client", func(t *testing.T) {
		gen := NewGenerator(nil, zerolog.Nop(), nil)

		_, err := gen.Generate(context.Background(), colabRequest())
		assert.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrServiceUnavailable))
	})

	t.Run("propagates completion error", func(t *testing.T) {
		client := &stubClient{err: errors.New("boom")}
		gen := NewGenerator(client, zerolog.Nop(), nil)

		_, err := gen.Generate(context.Background(), colabRequest())
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "email generation")
	})

	t.Run("rejects empty completion", func(t *testing.T) {
		client := &stubClient{response: &llm.Response{Content: "   "}}
		gen := NewGenerator(client, zerolog.Nop(), nil)

		_, err := gen.Generate(context.Background(), colabRequest())
		assert.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrMalformedResponse))
	})
}
