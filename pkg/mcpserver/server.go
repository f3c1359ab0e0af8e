// Package mcpserver exposes a calculator session as Model Context Protocol
// tools, so an assistant can press keys and read the display.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/openfroyo/pocketcalc/pkg/session"
	"github.com/openfroyo/pocketcalc/pkg/telemetry"
)

// Tool and resource names.
const (
	ToolPressKeys = "press_keys"
	ToolState     = "calculator_state"
	ToolClearAll  = "clear_all"
	ToolReset     = "reset"

	StateURI = "calculator://state"
)

// Server serves one shared calculator session over MCP.
type Server struct {
	mcp    *server.MCPServer
	sess   *session.Session
	logger zerolog.Logger

	// mu keeps a press and the snapshot that follows it together.
	mu sync.Mutex
}

// PressResult is returned by the press_keys, clear_all and reset tools.
type PressResult struct {
	Display string `json:"display"`
	Memory  string `json:"memory_indicator"`
	Error   string `json:"error,omitempty"`
}

// New creates a server around sess and registers the calculator tools.
func New(sess *session.Session, version string, logger zerolog.Logger) *Server {
	s := &Server{
		sess:   sess,
		logger: logger.With().Str("component", "mcp").Str("session_id", sess.ID).Logger(),
		mcp: server.NewMCPServer(
			"pcalc",
			version,
			server.WithToolCapabilities(true),
			server.WithResourceCapabilities(false, false),
			server.WithLogging(),
			server.WithRecovery(),
		),
	}

	s.mcp.AddTool(mcp.NewTool(ToolPressKeys,
		mcp.WithDescription("Press a sequence of calculator keys and return the display and memory indicator. "+
			"Keys are separated by spaces or written together, for example \"12 + 3 =\" or \"2x3=\". "+
			"Supported keys: 0-9 . + - x / = C AC BS sqrt log M+ M- MR MC"),
		mcp.WithString("keys",
			mcp.Required(),
			mcp.Description("Key sequence to press"),
		),
	), s.handlePressKeys)

	s.mcp.AddTool(mcp.NewTool(ToolState,
		mcp.WithDescription("Return the full calculator state as JSON"),
	), s.handleState)

	s.mcp.AddTool(mcp.NewTool(ToolClearAll,
		mcp.WithDescription("Clear input, operator and operands. Memory is kept"),
	), s.handleClearAll)

	s.mcp.AddTool(mcp.NewTool(ToolReset,
		mcp.WithDescription("Reset the calculator to its initial state, clearing memory too"),
	), s.handleReset)

	s.mcp.AddResource(mcp.NewResource(StateURI, "Calculator state",
		mcp.WithResourceDescription("Current display, memory indicator and phase. "+
			"A resources/updated notification is sent whenever the display or memory indicator changes"),
		mcp.WithMIMEType("application/json"),
	), s.readState)

	sess.Subscribe(s.notifyStateChanged, telemetry.EventTypeDisplayChanged, telemetry.EventTypeMemoryChanged)

	return s
}

// notifyStateChanged tells connected clients that the state resource
// changed. mcp-go has no resources/subscribe handler, so every initialized
// client is notified.
func (s *Server) notifyStateChanged(event telemetry.Event) {
	s.logger.Debug().Str("event_type", event.Type).Msg("Notifying clients of state change")
	s.mcp.SendNotificationToAllClients(mcp.MethodNotificationResourceUpdated, map[string]any{
		"uri": StateURI,
	})
}

// MCPServer returns the underlying MCP server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// ServeStdio serves MCP over in and out until ctx is done or in closes.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	s.logger.Info().Msg("Serving MCP over stdio")
	return server.NewStdioServer(s.mcp).Listen(ctx, in, out)
}

// ServeHTTP serves MCP over streamable HTTP on addr until ctx is done.
func (s *Server) ServeHTTP(ctx context.Context, addr string) error {
	httpServer := server.NewStreamableHTTPServer(s.mcp)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("address", addr).Msg("Serving MCP over HTTP")
		errCh <- httpServer.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		return httpServer.Shutdown(context.Background())
	}
}

func (s *Server) handlePressKeys(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	keys, ok := args["keys"].(string)
	if !ok || keys == "" {
		return mcp.NewToolResultError("keys is required"), nil
	}

	s.mu.Lock()
	_, err := s.sess.PressKeys(ctx, keys)
	snap := s.sess.Snapshot()
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn().Err(err).Str("keys", keys).Msg("Rejected key sequence")
		return mcp.NewToolResultError(fmt.Sprintf("Error pressing keys: %v", err)), nil
	}

	s.logger.Debug().Str("keys", keys).Str("display", snap.Display).Msg("Keys pressed")
	return pressResult(snap)
}

func (s *Server) handleState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := s.stateJSON()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error encoding state: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) handleClearAll(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.mu.Lock()
	_, err := s.sess.ClearAll(ctx)
	snap := s.sess.Snapshot()
	s.mu.Unlock()

	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error clearing: %v", err)), nil
	}
	return pressResult(snap)
}

func (s *Server) handleReset(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.mu.Lock()
	s.sess.Reset()
	snap := s.sess.Snapshot()
	s.mu.Unlock()

	s.logger.Info().Msg("Calculator reset")
	return pressResult(snap)
}

func (s *Server) readState(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	data, err := s.stateJSON()
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      StateURI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) stateJSON() ([]byte, error) {
	s.mu.Lock()
	snap := s.sess.Snapshot()
	s.mu.Unlock()
	return json.MarshalIndent(snap, "", "  ")
}

// pressResult reports the display after a press. A display showing a
// domain error is still a successful tool call with the error code set.
func pressResult(snap session.Snapshot) (*mcp.CallToolResult, error) {
	res := PressResult{
		Display: snap.Display,
		Memory:  snap.Memory,
	}
	if snap.State.Fault != nil {
		res.Error = string(snap.State.Fault.Code)
	}

	data, err := json.Marshal(res)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}
