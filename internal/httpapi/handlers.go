package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"cronboard/internal/board"
)

// actor identifies the caller in activity records. Workers set X-Actor to
// their subagent id; everything else counts as "api".
func actor(r *http.Request) string {
	if a := r.Header.Get("X-Actor"); a != "" {
		return a
	}
	return "api"
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := validate.Struct(v); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	includeArchived := r.URL.Query().Get("include_archived") == "true"
	tasks := s.board.List(r.Context(), includeArchived)
	if tasks == nil {
		tasks = []*board.Task{}
	}
	respondJSON(w, http.StatusOK, tasks)
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if !decodeBody(w, r, &req) {
		return
	}
	t, err := s.board.Create(r.Context(), actor(r), board.CreateParams{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		Skills:      req.Skills,
		Channel:     req.Channel,
		Status:      board.Status(req.Status),
		Order:       req.Order,
		Schedule:    req.Schedule,
	})
	if err != nil {
		respondBoardError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, t)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	t, err := s.board.Get(r.Context(), chi.URLParam(r, "taskID"))
	if err != nil {
		respondBoardError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, t)
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	var req updateTaskRequest
	if !decodeBody(w, r, &req) {
		return
	}
	var status *board.Status
	if req.Status != nil {
		st := board.Status(*req.Status)
		status = &st
	}
	t, err := s.board.Update(r.Context(), actor(r), chi.URLParam(r, "taskID"), board.UpdateParams{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		Skills:      req.Skills,
		Channel:     req.Channel,
		Status:      status,
		Order:       req.Order,
		Schedule:    req.Schedule,
	})
	if err != nil {
		respondBoardError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, t)
}

func (s *Server) handleArchiveTask(w http.ResponseWriter, r *http.Request) {
	t, err := s.board.Archive(r.Context(), actor(r), chi.URLParam(r, "taskID"))
	if err != nil {
		respondBoardError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, t)
}

func (s *Server) handleArchiveMany(w http.ResponseWriter, r *http.Request) {
	var req archiveManyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	n, err := s.board.ArchiveMany(r.Context(), actor(r), req.IDs)
	if err != nil {
		respondBoardError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"archived": n})
}

func (s *Server) handleRunTask(w http.ResponseWriter, r *http.Request) {
	t, err := s.board.Run(r.Context(), actor(r), chi.URLParam(r, "taskID"))
	if err != nil {
		respondBoardError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, t)
}

func (s *Server) handlePickupTask(w http.ResponseWriter, r *http.Request) {
	var req pickupRequest
	if r.ContentLength > 0 && !decodeBody(w, r, &req) {
		return
	}
	t, err := s.board.Pickup(r.Context(), actor(r), chi.URLParam(r, "taskID"), req.SubagentID)
	if err != nil {
		respondBoardError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, t)
}

func (s *Server) handleCompleteTask(w http.ResponseWriter, r *http.Request) {
	var req completeRequest
	if r.ContentLength > 0 && !decodeBody(w, r, &req) {
		return
	}
	t, err := s.board.Complete(r.Context(), actor(r), chi.URLParam(r, "taskID"), req.Result, req.Error)
	if err != nil {
		respondBoardError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, t)
}

func (s *Server) handleReportStatus(w http.ResponseWriter, r *http.Request) {
	var req statusReportRequest
	if !decodeBody(w, r, &req) {
		return
	}
	t, err := s.board.ReportStatus(r.Context(), actor(r), chi.URLParam(r, "taskID"), req.Status, req.Message)
	if err != nil {
		respondBoardError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, t)
}

func (s *Server) handlePauseTask(w http.ResponseWriter, r *http.Request) {
	t, err := s.board.Pause(r.Context(), actor(r), chi.URLParam(r, "taskID"))
	if err != nil {
		respondBoardError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, t)
}

func (s *Server) handleResumeTask(w http.ResponseWriter, r *http.Request) {
	t, err := s.board.Resume(r.Context(), actor(r), chi.URLParam(r, "taskID"))
	if err != nil {
		respondBoardError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, t)
}

func (s *Server) handleFutureRuns(w http.ResponseWriter, r *http.Request) {
	days := 30
	if raw := r.URL.Query().Get("days"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			respondError(w, http.StatusBadRequest, "days must be a positive integer")
			return
		}
		days = v
	}
	runs, err := s.board.FutureRuns(r.Context(), chi.URLParam(r, "taskID"), days)
	if err != nil {
		respondBoardError(w, err)
		return
	}
	if runs == nil {
		runs = []board.ProjectedRun{}
	}
	respondJSON(w, http.StatusOK, runs)
}

// handleQueue is the worker poll. By default the list is cut to remaining
// capacity; all=true returns every eligible task.
func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	limited := r.URL.Query().Get("all") != "true"
	res := s.board.Queue(r.Context(), limited)
	if res.Tasks == nil {
		res.Tasks = []*board.Task{}
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.board.Settings(r.Context()))
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	set, err := s.board.UpdateSettings(r.Context(), actor(r), board.Settings{
		MaxConcurrent: req.MaxConcurrent,
		Timezone:      req.Timezone,
	})
	if err != nil {
		respondBoardError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, set)
}
