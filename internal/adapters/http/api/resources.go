package api

import (
	"context"
	"net/http"

	"github.com/okian/octofit/pkg/logger"
)

// resource binds one collection's service calls to the generic CRUD routes:
//
//	GET    /api/{name}/      list
//	POST   /api/{name}/      create (201)
//	GET    /api/{name}/{id}  read
//	PUT    /api/{name}/{id}  replace
//	DELETE /api/{name}/{id}  delete (204)
type resource[T any] struct {
	name   string
	list   func(ctx context.Context) ([]T, error)
	get    func(ctx context.Context, id string) (T, error)
	create func(ctx context.Context, doc T) (T, error)
	update func(ctx context.Context, id string, doc T) (T, error)
	remove func(ctx context.Context, id string) error
	// decode overrides plain JSON decoding of T.
	decode func(w http.ResponseWriter, r *http.Request) (T, error)
}

type resourceHandler[T any] struct {
	res    resource[T]
	logger logger.Logger
}

func registerResource[T any](mux *http.ServeMux, log logger.Logger, res resource[T]) {
	h := &resourceHandler[T]{res: res, logger: log}
	collection := "/api/" + res.name
	item := collection + "/{id}"
	itemEndpoint := res.name + "_item"

	mux.HandleFunc("GET "+collection, MetricsMiddleware(h.handleList, res.name))
	mux.HandleFunc("GET "+collection+"/{$}", MetricsMiddleware(h.handleList, res.name))
	mux.HandleFunc("POST "+collection, MetricsMiddleware(h.handleCreate, res.name))
	mux.HandleFunc("POST "+collection+"/{$}", MetricsMiddleware(h.handleCreate, res.name))
	mux.HandleFunc("GET "+item, MetricsMiddleware(h.handleGet, itemEndpoint))
	mux.HandleFunc("PUT "+item, MetricsMiddleware(h.handleUpdate, itemEndpoint))
	mux.HandleFunc("DELETE "+item, MetricsMiddleware(h.handleDelete, itemEndpoint))
}

func (h *resourceHandler[T]) decode(w http.ResponseWriter, r *http.Request) (T, error) {
	if h.res.decode != nil {
		return h.res.decode(w, r)
	}
	var doc T
	err := decodeBody(w, r, &doc)
	return doc, err
}

func (h *resourceHandler[T]) handleList(w http.ResponseWriter, r *http.Request) {
	docs, err := h.res.list(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

func (h *resourceHandler[T]) handleCreate(w http.ResponseWriter, r *http.Request) {
	doc, err := h.decode(w, r)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	out, err := h.res.create(r.Context(), doc)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (h *resourceHandler[T]) handleGet(w http.ResponseWriter, r *http.Request) {
	doc, err := h.res.get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *resourceHandler[T]) handleUpdate(w http.ResponseWriter, r *http.Request) {
	doc, err := h.decode(w, r)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	out, err := h.res.update(r.Context(), r.PathValue("id"), doc)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *resourceHandler[T]) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.res.remove(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
