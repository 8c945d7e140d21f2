package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/sjson"

	"github.com/RowanDark/cryptbreak/internal/logging"
	"github.com/RowanDark/cryptbreak/internal/tools"
)

// InvocationHeader lets callers pin the invocation id of a tool call. The
// id is echoed back on the response.
const InvocationHeader = "X-Invocation-ID"

// ToolListResponse is the body of GET /api/v1/tools.
type ToolListResponse struct {
	Tools []tools.Info `json:"tools"`
}

// ToolResponse is the body of a successful POST /api/v1/tools/{name}. The
// invocation_id and duration_ms fields are added on write.
type ToolResponse struct {
	Tool   string `json:"tool"`
	Result any    `json:"result"`
}

// ToolErrorResponse is the body of a failed tool call.
type ToolErrorResponse struct {
	Tool  string `json:"tool"`
	Error string `json:"error"`
	Class string `json:"class"`
}

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, http.StatusOK, ToolListResponse{Tools: s.registry.List()})
}

func (s *Server) handleInvokeTool(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	name := r.PathValue("name")
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
		return
	}

	id := strings.TrimSpace(r.Header.Get(InvocationHeader))
	if id == "" {
		id = logging.NewInvocationID()
	}
	ctx := tools.WithTransport(tools.WithInvocationID(r.Context(), id), "http")
	res, err := s.registry.Invoke(ctx, name, body)
	w.Header().Set(InvocationHeader, res.InvocationID)

	if err != nil {
		status := statusFor(r.Context(), err)
		s.writeWithInvocation(w, status, ToolErrorResponse{Tool: name, Error: err.Error(), Class: tools.ErrorClass(err)}, res, false)
		return
	}
	s.writeWithInvocation(w, http.StatusOK, ToolResponse{Tool: res.Tool, Result: res.Output}, res, true)
}

// writeWithInvocation encodes data and splices in the invocation fields.
func (s *Server) writeWithInvocation(w http.ResponseWriter, status int, data any, res tools.Result, timed bool) {
	body, err := json.Marshal(data)
	if err == nil {
		body, err = sjson.SetBytes(body, "invocation_id", res.InvocationID)
	}
	if err == nil && timed {
		body, err = sjson.SetBytes(body, "duration_ms", float64(res.Duration.Microseconds())/1000)
	}
	if err != nil {
		s.logger.Error("encode tool response", "tool", res.Tool, "invocation_id", res.InvocationID, "error", err)
		http.Error(w, "encode response", http.StatusInternalServerError)
		return
	}
	s.writeBody(w, status, body)
}

// statusFor maps a tool error onto an HTTP status.
func statusFor(reqCtx context.Context, err error) int {
	switch tools.ErrorClass(err) {
	case "unknown_tool":
		return http.StatusNotFound
	case "invalid_params":
		return http.StatusBadRequest
	case "decode":
		return http.StatusUnprocessableEntity
	case "canceled":
		if errors.Is(reqCtx.Err(), context.Canceled) {
			return http.StatusRequestTimeout
		}
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
