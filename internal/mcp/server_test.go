package mcp_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internalmcp "github.com/eytandecker/telemetry-relay/internal/mcp"
	"github.com/eytandecker/telemetry-relay/internal/state"
	"github.com/eytandecker/telemetry-relay/pkg/types"
)

// mockStateReader controls what Snapshot returns in tests.
type mockStateReader struct {
	snap state.Snapshot
	err  error
}

func (m *mockStateReader) Snapshot() (state.Snapshot, error) {
	return m.snap, m.err
}

var sampleSnap = state.Snapshot{
	Position: types.PositionState{
		Latitude:    47.3977419,
		Longitude:   8.5455938,
		Altitude:    488.27,
		GroundSpeed: 5,
		Heading:     90,
	},
	Attitude: types.AttitudeState{Roll: 1.5, Pitch: -2.0, Yaw: 90},
	Path: []types.PathPoint{
		{Latitude: 47.3977, Longitude: 8.5455},
		{Latitude: 47.3977419, Longitude: 8.5455938},
	},
	LastUpdated: time.Now(),
}

func decodeText(t *testing.T, res *mcpsdk.CallToolResult) map[string]any {
	t.Helper()
	require.Len(t, res.Content, 1)
	text := res.Content[0].(*mcpsdk.TextContent).Text
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(text), &m))
	return m
}

// callTool connects the MCP server via in-memory transports and calls the tool.
func callTool(t *testing.T, sr internalmcp.StateReader, args map[string]any) *mcpsdk.CallToolResult {
	t.Helper()
	ctx := context.Background()

	srv := internalmcp.NewServer(sr)
	st, ct := mcpsdk.NewInMemoryTransports()

	_, err := srv.Connect(ctx, st)
	require.NoError(t, err)

	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "test", Version: "1.0"}, nil)
	cs, err := client.Connect(ctx, ct, nil)
	require.NoError(t, err)
	t.Cleanup(func() { cs.Close() })

	res, err := cs.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      "get_vehicle_telemetry",
		Arguments: args,
	})
	require.NoError(t, err)
	return res
}

func TestGetVehicleTelemetrySuccess(t *testing.T) {
	res := callTool(t, &mockStateReader{snap: sampleSnap}, nil)
	require.False(t, res.IsError)
	m := decodeText(t, res)

	pos := m["position"].(map[string]any)
	assert.InDelta(t, 47.3977419, pos["lat"].(float64), 1e-9)
	assert.InDelta(t, 8.5455938, pos["lon"].(float64), 1e-9)
	assert.InDelta(t, 488.27, pos["alt"].(float64), 1e-9)
	assert.InDelta(t, 5.0, pos["speed"].(float64), 1e-9)
	assert.InDelta(t, 90.0, pos["heading"].(float64), 1e-9)

	att := m["attitude"].(map[string]any)
	assert.InDelta(t, 1.5, att["roll"].(float64), 1e-9)
	assert.InDelta(t, -2.0, att["pitch"].(float64), 1e-9)
	assert.InDelta(t, 90.0, att["yaw"].(float64), 1e-9)

	assert.Equal(t, float64(2), m["path_len"])
	_, hasPath := m["path"]
	assert.False(t, hasPath, "path should be omitted unless include_path=true")

	ts, ok := m["timestamp"].(string)
	require.True(t, ok)
	parsed, err := time.Parse(time.RFC3339, ts)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC(), parsed, 5*time.Second)
}

func TestGetVehicleTelemetryWithPath(t *testing.T) {
	res := callTool(t, &mockStateReader{snap: sampleSnap}, map[string]any{"include_path": true})
	require.False(t, res.IsError)
	m := decodeText(t, res)

	path := m["path"].([]any)
	require.Len(t, path, 2)
	last := path[1].([]any)
	assert.InDelta(t, 47.3977419, last[0].(float64), 1e-9)
	assert.InDelta(t, 8.5455938, last[1].(float64), 1e-9)
}

func TestGetVehicleTelemetryErrStale(t *testing.T) {
	res := callTool(t, &mockStateReader{err: state.ErrStale}, nil)

	require.True(t, res.IsError)
	m := decodeText(t, res)
	assert.Equal(t, "DATA_STALE", m["code"])
	assert.Equal(t, true, m["recoverable"])
	assert.Equal(t, false, m["available"])
}

func TestGetVehicleTelemetryUnknownError(t *testing.T) {
	res := callTool(t, &mockStateReader{err: errors.New("some unexpected error")}, nil)

	require.True(t, res.IsError)
	m := decodeText(t, res)
	assert.Equal(t, "UNKNOWN_ERROR", m["code"])
	assert.Equal(t, false, m["recoverable"])
	assert.Equal(t, false, m["available"])
}

func TestGetVehicleTelemetryFromStore(t *testing.T) {
	store := state.NewStore(time.Minute)
	store.UpdatePosition(types.PositionState{Latitude: 1, Longitude: 2})
	store.UpdateAttitude(types.AttitudeState{Yaw: 45})

	res := callTool(t, store, nil)
	require.False(t, res.IsError)
	m := decodeText(t, res)
	assert.Equal(t, float64(1), m["path_len"])
	assert.InDelta(t, 45.0, m["attitude"].(map[string]any)["yaw"].(float64), 1e-9)
}

func TestHandlerServesStreamableHTTP(t *testing.T) {
	srv := internalmcp.NewServer(&mockStateReader{snap: sampleSnap})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx := context.Background()
	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "test", Version: "1.0"}, nil)
	cs, err := client.Connect(ctx, &mcpsdk.StreamableClientTransport{Endpoint: ts.URL}, nil)
	require.NoError(t, err)
	defer cs.Close()

	res, err := cs.CallTool(ctx, &mcpsdk.CallToolParams{Name: "get_vehicle_telemetry"})
	require.NoError(t, err)
	require.False(t, res.IsError)
	assert.Equal(t, float64(2), decodeText(t, res)["path_len"])
}
