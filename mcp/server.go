package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	medchain "github.com/medchain-labs/medchain/go"
)

const (
	serverName    = "medchain"
	serverVersion = "1.0.0"
)

// Server is an MCP server whose tools drive a connection manager and its
// contract gateway.
type Server struct {
	manager  *medchain.Manager
	gateway  *medchain.Gateway
	log      *logrus.Entry
	server   *mcpsdk.Server
	handlers map[string]mcpsdk.ToolHandler
}

// NewServer registers the medchain tools on a new MCP server. log may be nil.
func NewServer(manager *medchain.Manager, gateway *medchain.Gateway, log *logrus.Entry) *Server {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	s := &Server{
		manager:  manager,
		gateway:  gateway,
		log:      log.WithField("component", "mcp"),
		server:   mcpsdk.NewServer(&mcpsdk.Implementation{Name: serverName, Version: serverVersion}, nil),
		handlers: make(map[string]mcpsdk.ToolHandler),
	}
	for _, t := range s.tools() {
		s.addTool(t.tool, t.handler)
	}
	return s
}

// SDKServer returns the underlying MCP server.
func (s *Server) SDKServer() *mcpsdk.Server {
	return s.server
}

// ServeStdio serves the tools over stdin/stdout until ctx is cancelled or the
// client goes away.
func (s *Server) ServeStdio(ctx context.Context) error {
	s.log.Info("serving mcp over stdio")
	return s.server.Run(ctx, &mcpsdk.StdioTransport{})
}

// SSEHandler returns an HTTP handler serving the tools over SSE.
func (s *Server) SSEHandler() http.Handler {
	return mcpsdk.NewSSEHandler(func(req *http.Request) *mcpsdk.Server {
		return s.server
	}, &mcpsdk.SSEOptions{})
}

func (s *Server) addTool(tool *mcpsdk.Tool, handler ToolHandler) {
	wrapped := s.wrap(handler)
	s.handlers[tool.Name] = wrapped
	s.server.AddTool(tool, wrapped)
}

// wrap adapts a ToolHandler to the SDK handler signature.
func (s *Server) wrap(handler ToolHandler) mcpsdk.ToolHandler {
	return func(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
		toolContext := ToolContext{ToolName: req.Params.Name}
		if err := decodeArguments(req.Params.Arguments, &toolContext.Arguments); err != nil {
			return s.errorResult(toolContext, ToolResult{Operation: operationFor(toolContext.ToolName)}, err), nil
		}

		result, err := handler(ctx, toolContext)
		if err != nil {
			return s.errorResult(toolContext, result, err), nil
		}

		message := result.Message
		if message == "" {
			message = medchain.DescribeOutcome(result.Operation, nil, result.BatchNumber, s.manager.Network().ChainName).Message
		}
		content := []mcpsdk.Content{&mcpsdk.TextContent{Text: message}}
		callResult := &mcpsdk.CallToolResult{Content: content}
		if result.Data != nil {
			payload, err := json.Marshal(result.Data)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal %s result: %w", toolContext.ToolName, err)
			}
			callResult.Content = append(callResult.Content, &mcpsdk.TextContent{Text: string(payload)})
			callResult.StructuredContent = result.Data
		}
		return callResult, nil
	}
}

func (s *Server) errorResult(toolContext ToolContext, result ToolResult, err error) *mcpsdk.CallToolResult {
	s.log.WithError(err).WithField("tool", toolContext.ToolName).Debug("tool call failed")

	view := toErrorView(err)
	message := view.Message
	if result.Operation != "" {
		message = medchain.DescribeOutcome(result.Operation, err, result.BatchNumber, s.manager.Network().ChainName).Message
	}
	return &mcpsdk.CallToolResult{
		IsError: true,
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: fmt.Sprintf("%s (%s)", message, view.Code)},
		},
		StructuredContent: view,
	}
}

func decodeArguments(raw json.RawMessage, args *ToolArguments) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(args); err != nil {
		return medchain.NewGatewayError(medchain.ErrCodeInvalidInput, "invalid tool arguments", map[string]interface{}{
			"error": err.Error(),
		})
	}
	return nil
}

func toErrorView(err error) ErrorView {
	var gerr *medchain.GatewayError
	if errors.As(err, &gerr) {
		return ErrorView{Code: gerr.Code, Message: gerr.Message, Details: gerr.Details}
	}
	return ErrorView{Code: "internal_error", Message: err.Error()}
}
