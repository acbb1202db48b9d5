package gateway

import (
	"context"
	"fmt"
)

// registerBuiltinMethods registers all built-in RPC methods.
func (s *Server) registerBuiltinMethods() {
	_ = s.RegisterMethod("task.process", s.handleTaskProcess)
	_ = s.RegisterMethod("sessions.list", s.handleSessionsList)
	_ = s.RegisterMethod("sessions.load", s.handleSessionsLoad)
	_ = s.RegisterMethod("sessions.stats", s.handleSessionsStats)
	_ = s.RegisterMethod("system.info", s.handleSystemInfo)
}

// handleTaskProcess handles the task.process RPC method. The params object
// IS the task envelope; validation failures come back as failed envelopes
// inside the RPC result, not as RPC errors.
func (s *Server) handleTaskProcess(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	if params == nil {
		return nil, &RPCError{Code: InvalidParams, Message: "params object is required"}
	}
	return s.processor.Process(ctx, params), nil
}

// handleSessionsList handles the sessions.list RPC method.
func (s *Server) handleSessionsList(_ context.Context, _ map[string]interface{}) (interface{}, error) {
	summaries, err := s.store.List()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return map[string]interface{}{
		"sessions": summaries,
		"count":    len(summaries),
	}, nil
}

// handleSessionsLoad handles the sessions.load RPC method.
func (s *Server) handleSessionsLoad(_ context.Context, params map[string]interface{}) (interface{}, error) {
	id, ok := params["sessionId"].(string)
	if !ok || id == "" {
		return nil, &RPCError{Code: InvalidParams, Message: "sessionId parameter is required and must be a string"}
	}

	doc, err := s.store.Load(id)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return doc, nil
}

// handleSessionsStats handles the sessions.stats RPC method.
func (s *Server) handleSessionsStats(_ context.Context, params map[string]interface{}) (interface{}, error) {
	id, ok := params["sessionId"].(string)
	if !ok || id == "" {
		return nil, &RPCError{Code: InvalidParams, Message: "sessionId parameter is required and must be a string"}
	}

	stats, err := s.store.Stats(id)
	if err != nil {
		return nil, fmt.Errorf("failed to load session stats: %w", err)
	}
	return stats, nil
}

// handleSystemInfo handles the system.info RPC method.
func (s *Server) handleSystemInfo(_ context.Context, _ map[string]interface{}) (interface{}, error) {
	return map[string]interface{}{
		"service": "careerpilot",
		"methods": s.router.Methods(),
		"clients": s.clients.Count(),
	}, nil
}
