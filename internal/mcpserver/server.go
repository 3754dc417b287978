// Package mcpserver implements the MCP Dispatcher (spec §4.9): JSON-RPC/MCP
// envelope framing is delegated to the official SDK
// (github.com/modelcontextprotocol/go-sdk/mcp, the same library
// Aureuma-si/tools/credentials-mcp/main.go wires up); this package adds
// auth, per-user rate limiting, and permission gating in front of thin tool
// handlers that adapt onto the Engine, Store, Workspace Manager, Connection
// Manager, and Health Monitor.
package mcpserver

import (
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	"github.com/scooter-lacroix/swiss-sandbox-sub000/internal/artifact"
	"github.com/scooter-lacroix/swiss-sandbox-sub000/internal/auth"
	"github.com/scooter-lacroix/swiss-sandbox-sub000/internal/connmgr"
	"github.com/scooter-lacroix/swiss-sandbox-sub000/internal/engine"
	"github.com/scooter-lacroix/swiss-sandbox-sub000/internal/health"
	"github.com/scooter-lacroix/swiss-sandbox-sub000/internal/workspace"
)

const serverVersion = "1.0.0"

// Deps carries every collaborator the Dispatcher wires tool handlers onto.
type Deps struct {
	Engine     *engine.Engine
	Store      *artifact.Store
	Workspaces *workspace.Manager
	Conns      *connmgr.Manager
	Health     *health.Monitor
	Auth       *auth.Manager
	Log        zerolog.Logger
}

// Server owns the wired *mcp.Server plus the collaborators tool handlers
// close over.
type Server struct {
	deps      Deps
	mcpSrv    *mcp.Server
	startedAt time.Time
}

// New builds a Server and registers every tool from spec §6's surface plus
// the supplemental tools SPEC_FULL.md §3 adds (check_artifact_consistency,
// reconnect, disconnect, get_execution_history).
func New(deps Deps) *Server {
	s := &Server{deps: deps, startedAt: time.Now()}

	impl := &mcp.Implementation{
		Name:    "swiss-sandbox",
		Title:   "Swiss Sandbox MCP Server",
		Version: serverVersion,
	}
	srv := mcp.NewServer(impl, &mcp.ServerOptions{HasTools: true})

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "execute_python",
		Description: "Run Python code in a workspace's persistent interpreter context.",
	}, wrap(s, auth.PermExecute, s.executePython))

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "execute_shell",
		Description: "Run a shell command in a workspace's artifacts directory.",
	}, wrap(s, auth.PermExecute, s.executeShell))

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "execute_animation",
		Description: "Render a Manim animation script and harvest the produced media.",
	}, wrap(s, auth.PermExecute, s.executeAnimation))

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "store_artifact",
		Description: "Store a file as a content-addressed artifact.",
	}, wrap(s, auth.PermManageArtifacts, s.storeArtifact))

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "list_artifacts",
		Description: "List artifacts matching a filter.",
	}, wrap(s, auth.PermViewArtifacts, s.listArtifacts))

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "retrieve_artifact",
		Description: "Retrieve an artifact's metadata and storage location.",
	}, wrap(s, auth.PermViewArtifacts, s.retrieveArtifact))

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_artifact_content",
		Description: "Read an artifact's content, as text or hex-encoded binary.",
	}, wrap(s, auth.PermViewArtifacts, s.getArtifactContent))

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "cleanup_artifacts",
		Description: "Apply a retention policy and delete artifacts that exceed it.",
	}, wrap(s, auth.PermManageArtifacts, s.cleanupArtifacts))

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_storage_stats",
		Description: "Report artifact counts and bytes used, by category.",
	}, wrap(s, auth.PermViewArtifacts, s.getStorageStats))

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "check_artifact_consistency",
		Description: "Find orphaned index entries and orphaned blobs in the artifact store.",
	}, wrap(s, auth.PermManageArtifacts, s.checkArtifactConsistency))

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "server_info",
		Description: "Report server identity, version, and feature flags.",
	}, wrap(s, auth.PermViewStatus, s.serverInfo))

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "health_check",
		Description: "Return the current Health Snapshot.",
	}, wrap(s, auth.PermViewStatus, s.healthCheck))

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_execution_history",
		Description: "Return recent execution records, optionally filtered by workspace.",
	}, wrap(s, auth.PermViewHistory, s.getExecutionHistory))

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "reconnect",
		Description: "Attempt to move a connection out of the Failed state.",
	}, wrap(s, auth.PermManageConnections, s.reconnect))

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "disconnect",
		Description: "Remove a connection from the registry.",
	}, wrap(s, auth.PermManageConnections, s.disconnect))

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "cleanup_context",
		Description: "Destroy a workspace's persistent execution context and delete its artifacts directory.",
	}, wrap(s, auth.PermExecute, s.cleanupContext))

	s.mcpSrv = srv
	return s
}

// MCPServer exposes the wired *mcp.Server for transport binding (stdio or
// HTTP) in cmd/sandboxd.
func (s *Server) MCPServer() *mcp.Server { return s.mcpSrv }

// HTTPHandler returns a streamable-HTTP handler serving this server,
// grounded directly on credentials-mcp's mcp.NewStreamableHTTPHandler use.
func (s *Server) HTTPHandler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.mcpSrv
	}, &mcp.StreamableHTTPOptions{JSONResponse: true})
}
