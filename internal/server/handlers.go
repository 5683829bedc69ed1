package server

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"

	"github.com/hession/teachmate/internal/resolver"
)

// TeachInvalidMessage is the 400 body for a bad /teach request
const TeachInvalidMessage = "Invalid data format. Provide both 'prompt' and 'response'."

const maxBodyBytes = 1 << 20

// envelope is the shape of every reply
type envelope struct {
	Response any `json:"response"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Response: v})
}

// handleAI answers ?prompt=. A missing prompt is still a 200.
func (s *Server) handleAI(w http.ResponseWriter, r *http.Request) {
	res := s.service.Resolve(r.Context(), r.URL.Query().Get("prompt"))
	w.Header().Set("X-Resolved-By", string(res.Source))
	writeJSON(w, http.StatusOK, res.Response)
}

type teachRequest struct {
	Prompt   string `json:"prompt"`
	Response string `json:"response"`
}

// handleTeach accepts a JSON or url-encoded body with prompt and response
func (s *Server) handleTeach(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	req, err := decodeTeach(r)
	if err != nil {
		s.log.Warn("bad teach request: %v", err)
		writeJSON(w, http.StatusBadRequest, TeachInvalidMessage)
		return
	}

	msg, err := s.service.Teach(req.Prompt, req.Response)
	if errors.Is(err, resolver.ErrMissingField) {
		writeJSON(w, http.StatusBadRequest, TeachInvalidMessage)
		return
	}
	if err != nil {
		s.log.Error("teach failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, msg)
}

func decodeTeach(r *http.Request) (teachRequest, error) {
	var req teachRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		err := json.NewDecoder(r.Body).Decode(&req)
		return req, err
	}

	if err := r.ParseForm(); err != nil {
		return req, err
	}
	req.Prompt = r.PostForm.Get("prompt")
	req.Response = r.PostForm.Get("response")
	return req, nil
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.History())
}

func (s *Server) handleInspectMemory(w http.ResponseWriter, r *http.Request) {
	snap, err := s.service.Memory()
	if err != nil {
		s.log.Error("failed to read memory: %v", err)
		writeJSON(w, http.StatusInternalServerError, "failed to read memory")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, "ok")
}
