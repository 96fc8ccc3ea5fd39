// Package orchestrator drives the model conversation for one user
// query: it decides whether tool calls are needed, executes them in
// bounded rounds, feeds the results back, and extracts the final
// answer. Termination is guaranteed within maxRounds+1 model calls
// regardless of model behavior.
package orchestrator

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/coursepilot/coursepilot/internal/ai"
	"github.com/coursepilot/coursepilot/pkg/models"
)

// DefaultMaxRounds lets the model do one exploratory call and one
// refinement call without unbounded cost.
const DefaultMaxRounds = 2

const systemPrompt = `You are an AI assistant specialized in course materials and educational content with access to comprehensive search tools for course information.

Available Tools:
1. **search_course_content**: Search for specific content within course materials
   - Use for detailed questions about course topics, concepts, or specific lessons

2. **get_course_outline**: Retrieve complete course structure with all lessons
   - Use for questions about course structure, lesson lists, or what's covered in a course
   - Always returns: course title, course link, and complete list of lessons with numbers and titles

Tool Usage Guidelines:
- Use tools **only** for questions about specific course content or course structure
- **Multi-round capability**: You can make up to 2 sequential tool calls
  * First round: Get initial information or context
  * Second round (if needed): Make additional searches based on first results
- After receiving tool results, evaluate if additional searches are needed
- Synthesize tool results into accurate, fact-based responses
- If tool yields no results, state this clearly without offering alternatives

Response Protocol:
- **General knowledge questions**: Answer using existing knowledge without searching
- **Course-specific questions**: Use appropriate tool first, then answer
- **Course outline queries**: Use get_course_outline tool to return course title, course link, and all lessons with numbers and titles
- **No meta-commentary**:
 - Provide direct answers only, without reasoning process, search explanations, or question-type analysis
 - Do not mention "based on the search results" or tool names

All responses must be:
1. **Brief, Concise and focused** - Get to the point quickly
2. **Educational** - Maintain instructional value
3. **Clear** - Use accessible language
4. **Example-supported** - Include relevant examples when they aid understanding
Provide only the direct answer to what was asked.`

// User-facing failure text stays generic; detail goes to the log.
const (
	errorResponse = "I apologize, but I encountered an error while processing your request. " +
		"Please try rephrasing your question or ask something else."
	noAnswerResponse = "I apologize, but I couldn't generate a proper response."
)

// ToolExecutor dispatches a named tool call. Satisfied by
// tools.Registry.
type ToolExecutor interface {
	Execute(ctx context.Context, name string, params map[string]any) (string, error)
}

// Generator orchestrates model calls and tool execution for one query
// at a time.
type Generator struct {
	client    ai.Client
	maxRounds int
	log       zerolog.Logger
}

func New(client ai.Client, maxRounds int, log zerolog.Logger) *Generator {
	if maxRounds <= 0 {
		maxRounds = DefaultMaxRounds
	}
	return &Generator{client: client, maxRounds: maxRounds, log: log}
}

// Generate answers one user query. history, schemas and executor are
// all optional; without an executor, tool use is never attempted even
// if the model requests it. All failures come back as answer text,
// never as an error.
func (g *Generator) Generate(ctx context.Context, query, history string, schemas []models.ToolSchema, executor ToolExecutor) string {
	system := systemPrompt
	if history != "" {
		system = fmt.Sprintf("%s\n\nPrevious conversation:\n%s", systemPrompt, history)
	}

	messages := []ai.Message{ai.UserText(query)}
	req := &ai.GenerateRequest{System: system, Messages: messages}
	if len(schemas) > 0 {
		req.Tools = schemas
	}

	resp, err := g.client.Generate(ctx, req)
	if err != nil {
		g.log.Error().Err(err).Msg("initial model call failed")
		return errorResponse
	}

	if resp.StopReason == ai.StopToolUse && executor != nil {
		return g.runToolRounds(ctx, system, messages, schemas, executor, resp)
	}
	return g.extractText(resp)
}

// runToolRounds executes up to maxRounds of "model requests tools,
// tools execute, results return to model". Two terminal transitions:
// natural completion when a response stops requesting tools, and forced
// completion when the round cap is reached while the model still wants
// tools.
func (g *Generator) runToolRounds(ctx context.Context, system string, messages []ai.Message, schemas []models.ToolSchema, executor ToolExecutor, resp *ai.Response) string {
	current := resp
	for round := 1; round <= g.maxRounds; round++ {
		g.log.Debug().Int("round", round).Int("max_rounds", g.maxRounds).Msg("starting tool round")

		messages = append(messages, ai.Message{Role: ai.RoleAssistant, Blocks: current.Blocks})

		results := g.executeToolCalls(ctx, round, current.Blocks, executor)
		if len(results) == 0 {
			// Anomalous but non-fatal: the model signaled tool use
			// without any tool calls. Finalize with what we have.
			g.log.Warn().Int("round", round).Msg("no tool calls despite tool_use stop reason")
			break
		}
		messages = append(messages, ai.Message{Role: ai.RoleUser, Blocks: results})

		next, err := g.client.Generate(ctx, &ai.GenerateRequest{
			System:   system,
			Messages: messages,
			Tools:    schemas,
		})
		if err != nil {
			g.log.Error().Err(err).Int("round", round).Msg("model call failed")
			return errorResponse
		}
		current = next

		if current.StopReason != ai.StopToolUse {
			g.log.Debug().Int("round", round).Str("stop_reason", string(current.StopReason)).Msg("conversation complete")
			break
		}
		if round == g.maxRounds {
			g.log.Warn().Int("max_rounds", g.maxRounds).Msg("round cap reached, forcing final response")
			return g.forceFinalResponse(ctx, system, messages, executor, current)
		}
	}
	return g.extractText(current)
}

// forceFinalResponse executes the pending tool calls one last time and
// issues a final model call with tool access removed, guaranteeing a
// text response.
func (g *Generator) forceFinalResponse(ctx context.Context, system string, messages []ai.Message, executor ToolExecutor, last *ai.Response) string {
	messages = append(messages, ai.Message{Role: ai.RoleAssistant, Blocks: last.Blocks})
	if results := g.executeToolCalls(ctx, g.maxRounds+1, last.Blocks, executor); len(results) > 0 {
		messages = append(messages, ai.Message{Role: ai.RoleUser, Blocks: results})
	}

	// No Tools on the request: the model cannot request another round.
	final, err := g.client.Generate(ctx, &ai.GenerateRequest{System: system, Messages: messages})
	if err != nil {
		g.log.Error().Err(err).Msg("forced final model call failed")
		return errorResponse
	}
	return g.extractText(final)
}

// executeToolCalls runs every tool-use request in the order it appears.
// Each call is independently fault-isolated: a failure becomes an
// error-tagged result instead of aborting the round.
func (g *Generator) executeToolCalls(ctx context.Context, round int, blocks []ai.ContentBlock, executor ToolExecutor) []ai.ContentBlock {
	var results []ai.ContentBlock
	for _, b := range blocks {
		if b.Type != ai.BlockToolUse {
			continue
		}
		out, err := executor.Execute(ctx, b.Name, b.Input)
		if err != nil {
			g.log.Error().Err(err).Int("round", round).Str("tool", b.Name).Msg("tool execution failed")
			results = append(results, ai.ContentBlock{
				Type:      ai.BlockToolResult,
				ToolUseID: b.ID,
				Content:   fmt.Sprintf("Tool execution failed: %v", err),
				IsError:   true,
			})
			continue
		}
		g.log.Debug().Int("round", round).Str("tool", b.Name).Msg("executed tool")
		results = append(results, ai.ContentBlock{
			Type:      ai.BlockToolResult,
			ToolUseID: b.ID,
			Content:   out,
		})
	}
	return results
}

// extractText returns the first non-empty text block, degrading to a
// generic apology when the response carries none.
func (g *Generator) extractText(resp *ai.Response) string {
	for _, b := range resp.Blocks {
		if b.Type == ai.BlockText && b.Text != "" {
			return b.Text
		}
	}
	g.log.Warn().Msg("no text content found in response")
	return noAnswerResponse
}
