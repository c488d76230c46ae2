package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bryclee/taskcheck/internal/apperr"
	"github.com/bryclee/taskcheck/internal/command"
	"github.com/bryclee/taskcheck/internal/graph"
)

// Handler holds API route handlers.
type Handler struct {
	svc      *graph.Service
	commands *command.Registry
}

// NewHandler creates a new Handler.
func NewHandler(svc *graph.Service, commands *command.Registry) *Handler {
	return &Handler{svc: svc, commands: commands}
}

// GetBlock handles GET /api/blocks/{id}.
//
//	@Summary	Get a single block by ID
//	@Tags		blocks
//	@Produce	json
//	@Param		id	path		string	true	"Block ID"
//	@Success	200	{object}	BlockDetail
//	@Failure	404	{object}	errResponse
//	@Security	BearerAuth
//	@Router		/blocks/{id} [get]
func (h *Handler) GetBlock(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("id is required"))
		return
	}
	block, err := h.svc.GetBlock(r.Context(), id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("get block failed", slog.String("id", id), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, toBlockDetail(block))
}

// UpdateBlock handles PUT /api/blocks/{id}.
//
//	@Summary	Replace a block's content
//	@Tags		blocks
//	@Accept		json
//	@Produce	json
//	@Param		id		path		string				true	"Block ID"
//	@Param		body	body		UpdateBlockRequest	true	"New content"
//	@Success	200		{object}	BlockDetail
//	@Failure	400		{object}	errResponse
//	@Failure	404		{object}	errResponse
//	@Failure	409		{object}	errResponse
//	@Security	BearerAuth
//	@Router		/blocks/{id} [put]
func (h *Handler) UpdateBlock(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	id := chi.URLParam(r, "id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("id is required"))
		return
	}
	var req UpdateBlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Content == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("content is required"))
		return
	}
	if err := h.svc.UpdateBlock(r.Context(), id, req.Content, nil); err != nil {
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		case errors.Is(err, apperr.ErrConflict):
			writeJSON(w, http.StatusConflict, errorBody("block moved, retry"))
		default:
			slog.Error("update block failed", slog.String("id", id), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	block, err := h.svc.GetBlock(r.Context(), id)
	if err != nil {
		slog.Error("reload block failed", slog.String("id", id), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, toBlockDetail(block))
}

// Query handles GET /api/query.
//
//	@Summary	Find blocks by property value
//	@Tags		query
//	@Produce	json
//	@Param		property	query		string		true	"Property key"
//	@Param		value		query		[]string	true	"Property values (repeatable)"
//	@Success	200			{object}	QueryResponse
//	@Failure	400			{object}	errResponse
//	@Security	BearerAuth
//	@Router		/query [get]
func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	property := q.Get("property")
	values := q["value"]
	if property == "" || len(values) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("property and value are required"))
		return
	}
	blocks, err := h.svc.QueryByProperty(r.Context(), property, values)
	if err != nil {
		slog.Error("query failed", slog.String("property", property), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, QueryResponse{
		Blocks: toBlockDetails(blocks),
		Total:  len(blocks),
	})
}

// ListCommands handles GET /api/commands.
//
//	@Summary	List registered editor commands
//	@Tags		commands
//	@Produce	json
//	@Success	200	{array}	CommandInfo
//	@Security	BearerAuth
//	@Router		/commands [get]
func (h *Handler) ListCommands(w http.ResponseWriter, r *http.Request) {
	cmds := h.commands.List()
	out := make([]CommandInfo, 0, len(cmds))
	for _, c := range cmds {
		out = append(out, CommandInfo{Name: c.Name, Label: c.Label})
	}
	writeJSON(w, http.StatusOK, out)
}

// InvokeCommand handles POST /api/commands/{name}.
//
//	@Summary	Invoke an editor command against a block
//	@Tags		commands
//	@Accept		json
//	@Param		name	path	string					true	"Command name"
//	@Param		body	body	InvokeCommandRequest	false	"Invocation context"
//	@Success	204		"Command completed"
//	@Failure	404		{object}	errResponse
//	@Security	BearerAuth
//	@Router		/commands/{name} [post]
func (h *Handler) InvokeCommand(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	name := chi.URLParam(r, "name")
	if name == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("name is required"))
		return
	}
	var req InvokeCommandRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
			return
		}
	}
	if err := h.commands.Invoke(r.Context(), name, command.Invocation{BlockID: req.BlockID}); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("unknown command"))
		} else {
			slog.Error("command failed", slog.String("name", name), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
