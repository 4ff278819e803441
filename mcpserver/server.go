// Package mcpserver exposes the assistant as Model Context Protocol tools over stdio.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"pdpl_assistant/assistant"
	"pdpl_assistant/index"
	"pdpl_assistant/logging"
	"pdpl_assistant/render"
)

const DefaultQueryTimeout = 90 * time.Second

// Options tunes the tool server. Zero values get defaults.
type Options struct {
	Version string
	// QueryTimeout bounds each tool call.
	QueryTimeout time.Duration
}

// Server wraps the MCP SDK server with the assistant tools registered.
type Server struct {
	MCPServer *sdkmcp.Server

	agent   *assistant.Agent
	index   assistant.Searcher
	timeout time.Duration
	log     *slog.Logger
}

// New registers the ask, extract_references and lookup_passages tools.
func New(agent *assistant.Agent, idx assistant.Searcher, opts Options) (*Server, error) {
	if agent == nil || idx == nil {
		return nil, errors.New("mcpserver: agent and index are required")
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = DefaultQueryTimeout
	}
	s := &Server{
		MCPServer: sdkmcp.NewServer(&sdkmcp.Implementation{Name: "pdpl-assistant", Version: opts.Version}, nil),
		agent:     agent,
		index:     idx,
		timeout:   opts.QueryTimeout,
		log:       logging.New("mcp"),
	}
	s.registerTools()
	return s, nil
}

// Run serves over stdin/stdout until ctx is done or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.log.Info("starting MCP server over stdio")
	return s.MCPServer.Run(ctx, &sdkmcp.StdioTransport{})
}

func (s *Server) registerTools() {
	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "ask",
		Description: "Answer a question about the Personal Data Protection Law, citing the article paragraphs used.",
	}, withTimeout(s.timeout, s.handleAsk))

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "extract_references",
		Description: "List the article/paragraph references and sectors mentioned in a piece of text.",
	}, withTimeout(s.timeout, s.handleExtract))

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "lookup_passages",
		Description: "Fetch law passages by article number, optionally restricted to paragraphs.",
	}, withTimeout(s.timeout, s.handleLookup))
}

func withTimeout[In, Out any](d time.Duration, h sdkmcp.ToolHandlerFor[In, Out]) sdkmcp.ToolHandlerFor[In, Out] {
	return func(ctx context.Context, req *sdkmcp.CallToolRequest, in In) (*sdkmcp.CallToolResult, Out, error) {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return h(ctx, req, in)
	}
}

// --- Tool input/output types ---

type askInput struct {
	Question string `json:"question" jsonschema:"the question, in English or Arabic"`
	Language string `json:"language,omitempty" jsonschema:"en (default) or ar"`
}

type askOutput struct {
	Stage      assistant.Stage `json:"stage"`
	InScope    bool            `json:"in_scope"`
	Answer     string          `json:"answer"`
	References []string        `json:"references"`
	Fallbacks  []string        `json:"fallbacks"`
}

type extractInput struct {
	Text string `json:"text" jsonschema:"free text to scan for article and paragraph references"`
}

type extractOutput struct {
	Articles []assistant.ReferenceMention `json:"articles"`
	Sectors  []assistant.Sector           `json:"sectors"`
}

type lookupInput struct {
	Article    int   `json:"article" jsonschema:"article number (>= 1)"`
	Paragraphs []int `json:"paragraphs,omitempty" jsonschema:"paragraph numbers; empty returns the whole article"`
}

type lookupOutput struct {
	Passages []index.Passage `json:"passages"`
}

// --- Tool handlers ---

func (s *Server) handleAsk(ctx context.Context, _ *sdkmcp.CallToolRequest, in askInput) (*sdkmcp.CallToolResult, askOutput, error) {
	lang, err := assistant.ParseLanguage(in.Language)
	if err != nil {
		return nil, askOutput{}, err
	}
	out, err := s.agent.Ask(ctx, assistant.Query{Question: in.Question, Language: lang})
	if err != nil {
		return nil, askOutput{}, fmt.Errorf("ask: %w", err)
	}
	fallbacks := out.Fallbacks
	if fallbacks == nil {
		fallbacks = []string{}
	}
	return nil, askOutput{
		Stage:      out.Stage,
		InScope:    out.InScope,
		Answer:     out.Answer.Answer,
		References: render.References(out.Answer.Citations),
		Fallbacks:  fallbacks,
	}, nil
}

func (s *Server) handleExtract(ctx context.Context, _ *sdkmcp.CallToolRequest, in extractInput) (*sdkmcp.CallToolResult, extractOutput, error) {
	got, err := s.agent.References.Extract(ctx, in.Text)
	if err != nil {
		return nil, extractOutput{}, fmt.Errorf("extract_references: %w", err)
	}
	out := extractOutput{Articles: got.Articles, Sectors: got.Sectors}
	if out.Articles == nil {
		out.Articles = []assistant.ReferenceMention{}
	}
	if out.Sectors == nil {
		out.Sectors = []assistant.Sector{}
	}
	return nil, out, nil
}

func (s *Server) handleLookup(ctx context.Context, _ *sdkmcp.CallToolRequest, in lookupInput) (*sdkmcp.CallToolResult, lookupOutput, error) {
	if in.Article < 1 {
		return nil, lookupOutput{}, fmt.Errorf("article must be >= 1, got %d", in.Article)
	}
	passages, err := s.index.ExactLookup(ctx, in.Article, in.Paragraphs)
	if err != nil {
		return nil, lookupOutput{}, fmt.Errorf("lookup_passages: %w", err)
	}
	if passages == nil {
		passages = []index.Passage{}
	}
	return nil, lookupOutput{Passages: passages}, nil
}
