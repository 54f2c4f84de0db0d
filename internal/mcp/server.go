package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/pkg/errors"

	"github.com/eytandecker/telemetry-relay/internal/state"
	"github.com/eytandecker/telemetry-relay/pkg/types"
)

// StateReader is the subset of state.Store used by the MCP server.
type StateReader interface {
	Snapshot() (state.Snapshot, error)
}

// Server wraps the MCP SDK server and exposes relay state as tools.
type Server struct {
	sdk   *mcpsdk.Server
	state StateReader
}

// NewServer creates a Server and registers the get_vehicle_telemetry tool.
func NewServer(sr StateReader) *Server {
	s := &Server{
		sdk: mcpsdk.NewServer(&mcpsdk.Implementation{
			Name:    "telemetry-relay",
			Version: "1.0.0",
		}, nil),
		state: sr,
	}

	tool := &mcpsdk.Tool{
		Name:        "get_vehicle_telemetry",
		Description: "Returns the latest vehicle position and attitude received over MAVLink, optionally with the travelled path.",
	}
	mcpsdk.AddTool(s.sdk, tool, s.handleGetVehicleTelemetry)
	return s
}

// Run starts the MCP server over stdio and blocks until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	return s.sdk.Run(ctx, &mcpsdk.StdioTransport{})
}

// Connect connects the server to an existing transport (used in tests).
func (s *Server) Connect(ctx context.Context, t mcpsdk.Transport) (*mcpsdk.ServerSession, error) {
	return s.sdk.Connect(ctx, t, nil)
}

// Handler serves the same tools over streamable HTTP.
func (s *Server) Handler() http.Handler {
	return mcpsdk.NewStreamableHTTPHandler(func(*http.Request) *mcpsdk.Server {
		return s.sdk
	}, nil)
}

// getTelemetryInput holds arguments for the get_vehicle_telemetry tool.
type getTelemetryInput struct {
	IncludePath bool `json:"include_path,omitempty"`
}

// VehicleTelemetryResponse is the JSON payload returned on success.
type VehicleTelemetryResponse struct {
	Position    types.PositionState `json:"position"`
	Attitude    types.AttitudeState `json:"attitude"`
	PathLen     int                 `json:"path_len"`
	Path        []types.PathPoint   `json:"path,omitempty"`
	LastUpdated string              `json:"last_updated"`
	Timestamp   string              `json:"timestamp"`
}

// TelemetryUnavailableResponse is returned when telemetry cannot be provided.
type TelemetryUnavailableResponse struct {
	Available   bool   `json:"available"`
	Error       string `json:"error"`
	Code        string `json:"code"`
	Recoverable bool   `json:"recoverable"`
	Suggestion  string `json:"suggestion"`
	Timestamp   string `json:"timestamp"`
}

func (s *Server) handleGetVehicleTelemetry(
	ctx context.Context,
	req *mcpsdk.CallToolRequest,
	input getTelemetryInput,
) (*mcpsdk.CallToolResult, any, error) {
	snap, err := s.state.Snapshot()
	if err != nil {
		return s.errorResult(err), nil, nil
	}

	resp := VehicleTelemetryResponse{
		Position:    snap.Position,
		Attitude:    snap.Attitude,
		PathLen:     len(snap.Path),
		LastUpdated: snap.LastUpdated.UTC().Format(time.RFC3339Nano),
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}
	if input.IncludePath {
		resp.Path = snap.Path
	}

	data, err := json.Marshal(resp)
	if err != nil {
		return nil, nil, errors.Wrap(err, "marshal telemetry response")
	}
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: string(data)}},
	}, nil, nil
}

func (s *Server) errorResult(err error) *mcpsdk.CallToolResult {
	resp := TelemetryUnavailableResponse{
		Available: false,
		Error:     err.Error(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	switch {
	case errors.Is(err, state.ErrStale):
		resp.Code = "DATA_STALE"
		resp.Recoverable = true
		resp.Suggestion = "Check that the vehicle or ground station is sending MAVLink to the relay's UDP port."
	default:
		resp.Code = "UNKNOWN_ERROR"
		resp.Recoverable = false
		resp.Suggestion = "Check application logs for details."
	}

	data, _ := json.Marshal(resp)
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: string(data)}},
		IsError: true,
	}
}
