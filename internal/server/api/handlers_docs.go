package api

import (
	"encoding/json"
	"fmt"
	"net/http"
)

func (s *Server) handleQueryDocs(w http.ResponseWriter, r *http.Request) {
	docs, err := s.docs.Query(r.Context(), userID(r), r.PathValue("collection"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (s *Server) handleAddDoc(w http.ResponseWriter, r *http.Request) {
	var fields map[string]any
	if !decodeBody(w, r, &fields) {
		return
	}

	id, err := s.docs.Add(r.Context(), userID(r), r.PathValue("collection"), fields)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) handleGetDoc(w http.ResponseWriter, r *http.Request) {
	doc, err := s.docs.Get(r.Context(), userID(r), r.PathValue("collection"), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleSetDoc(w http.ResponseWriter, r *http.Request) {
	var fields map[string]any
	if !decodeBody(w, r, &fields) {
		return
	}
	merge := r.URL.Query().Get("merge") == "true"

	err := s.docs.Set(r.Context(), userID(r), r.PathValue("collection"), r.PathValue("id"), fields, merge)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteDoc(w http.ResponseWriter, r *http.Request) {
	err := s.docs.Delete(r.Context(), userID(r), r.PathValue("collection"), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleWatch streams the collection's full result set over SSE: once on
// connect and again after every change, until the client disconnects.
func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	uid := userID(r)
	collection := r.PathValue("collection")

	sub := s.hub.Subscribe(collection, uid)
	defer sub.Unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	send := func() bool {
		docs, err := s.docs.Query(r.Context(), uid, collection)
		if err != nil {
			s.log.Error(r.Context(), "watch query failed", "collection", collection, "err", err)
			return false
		}
		payload, err := json.Marshal(docs)
		if err != nil {
			return false
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	if !send() {
		return
	}
	for {
		select {
		case <-r.Context().Done():
			return
		case <-sub.C:
			if !send() {
				return
			}
		}
	}
}
