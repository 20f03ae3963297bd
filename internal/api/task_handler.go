package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"gorm.io/gorm"

	"family-tasks/internal/auth"
	"family-tasks/internal/model"
	"family-tasks/internal/repository"
	"family-tasks/internal/service"
)

// initDataHeader carries the signed Telegram init data on every Mini
// App request.
const initDataHeader = "X-TG-Data"

// TaskHandler serves the Mini App task endpoints.
type TaskHandler struct {
	botToken   string
	memberRepo *repository.MemberRepository
	taskSvc    *service.TaskService
}

func NewTaskHandler(botToken string, memberRepo *repository.MemberRepository, taskSvc *service.TaskService) *TaskHandler {
	return &TaskHandler{botToken: botToken, memberRepo: memberRepo, taskSvc: taskSvc}
}

type subtaskResponse struct {
	ID     uint   `json:"id"`
	Title  string `json:"title"`
	IsDone bool   `json:"is_done"`
}

type taskResponse struct {
	ID           uint              `json:"id"`
	Title        string            `json:"title"`
	Description  string            `json:"description"`
	Status       string            `json:"status"`
	Visibility   model.Visibility  `json:"visibility"`
	Deadline     *time.Time        `json:"deadline"`
	Recurrence   string            `json:"recurrence"`
	ReminderSent bool              `json:"reminder_sent"`
	OwnerID      uint              `json:"owner_id"`
	CreatedAt    time.Time         `json:"created_at"`
	Subtasks     []subtaskResponse `json:"subtasks"`
}

func toTaskResponse(task *model.Task) taskResponse {
	subtasks := make([]subtaskResponse, 0, len(task.Subtasks))
	for _, sub := range task.Subtasks {
		subtasks = append(subtasks, subtaskResponse{ID: sub.ID, Title: sub.Title, IsDone: sub.IsDone})
	}
	return taskResponse{
		ID:           task.ID,
		Title:        task.Title,
		Description:  task.Description,
		Status:       task.Status,
		Visibility:   task.Visibility,
		Deadline:     task.Deadline,
		Recurrence:   task.Recurrence,
		ReminderSent: task.ReminderSent,
		OwnerID:      task.OwnerID,
		CreatedAt:    task.CreatedAt,
		Subtasks:     subtasks,
	}
}

// authMember verifies the request's init data and resolves the acting
// member.
func (h *TaskHandler) authMember(r *http.Request) (*model.Member, int, error) {
	user, err := auth.VerifyInitData(r.Header.Get(initDataHeader), h.botToken, time.Now())
	if err != nil {
		status := http.StatusUnauthorized
		if errors.Is(err, auth.ErrBadSignature) {
			status = http.StatusForbidden
		}
		return nil, status, err
	}

	member, err := h.memberRepo.FindByTelegramID(r.Context(), user.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, http.StatusForbidden, errors.New("member is not registered")
		}
		return nil, http.StatusInternalServerError, err
	}
	return member, http.StatusOK, nil
}

func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	member, status, err := h.authMember(r)
	if err != nil {
		writeJSONError(w, status, err)
		return
	}

	tasks, err := h.taskSvc.ListVisible(r.Context(), member)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	out := make([]taskResponse, 0, len(tasks))
	for i := range tasks {
		out = append(out, toTaskResponse(&tasks[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

type createTaskRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Visibility  string     `json:"visibility"`
	Deadline    *time.Time `json:"deadline"`
	Recurrence  string     `json:"recurrence"`
}

func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	member, status, err := h.authMember(r)
	if err != nil {
		writeJSONError(w, status, err)
		return
	}

	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, errors.New("malformed request body"))
		return
	}

	task, err := h.taskSvc.Create(r.Context(), member, service.TaskInput{
		Title:       req.Title,
		Description: req.Description,
		Visibility:  req.Visibility,
		Deadline:    req.Deadline,
		Recurrence:  req.Recurrence,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskResponse(task))
}

func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	member, status, err := h.authMember(r)
	if err != nil {
		writeJSONError(w, status, err)
		return
	}

	taskID, err := parseID(r.PathValue("id"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}

	patch, err := decodePatch(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}

	task, err := h.taskSvc.Update(r.Context(), member, taskID, patch)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskResponse(task))
}

func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	member, status, err := h.authMember(r)
	if err != nil {
		writeJSONError(w, status, err)
		return
	}

	taskID, err := parseID(r.PathValue("id"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}

	if err := h.taskSvc.Delete(r.Context(), member, taskID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": "deleted"})
}

type addSubtaskRequest struct {
	Title string `json:"title"`
}

func (h *TaskHandler) AddSubtask(w http.ResponseWriter, r *http.Request) {
	member, status, err := h.authMember(r)
	if err != nil {
		writeJSONError(w, status, err)
		return
	}

	taskID, err := parseID(r.PathValue("id"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}

	var req addSubtaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, errors.New("malformed request body"))
		return
	}

	subtask, err := h.taskSvc.AddSubtask(r.Context(), member, taskID, req.Title)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, subtaskResponse{ID: subtask.ID, Title: subtask.Title, IsDone: subtask.IsDone})
}

func (h *TaskHandler) ToggleSubtask(w http.ResponseWriter, r *http.Request) {
	member, status, err := h.authMember(r)
	if err != nil {
		writeJSONError(w, status, err)
		return
	}

	subtaskID, err := parseID(r.PathValue("id"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}

	isDone, err := strconv.ParseBool(r.URL.Query().Get("is_done"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, errors.New("is_done must be true or false"))
		return
	}

	subtask, err := h.taskSvc.ToggleSubtask(r.Context(), member, subtaskID, isDone)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, subtaskResponse{ID: subtask.ID, Title: subtask.Title, IsDone: subtask.IsDone})
}

// decodePatch reads the PATCH body as a raw field map so that an
// absent field and a field sent as null/empty stay distinct.
func decodePatch(r *http.Request) (service.TaskPatch, error) {
	var fields map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		return service.TaskPatch{}, errors.New("malformed request body")
	}

	var patch service.TaskPatch
	for name, raw := range fields {
		switch name {
		case "title":
			patch.TitleSet = true
			if err := unmarshalNullable(raw, &patch.Title); err != nil {
				return patch, errors.New("title must be a string")
			}
		case "description":
			patch.DescriptionSet = true
			if err := unmarshalNullable(raw, &patch.Description); err != nil {
				return patch, errors.New("description must be a string")
			}
		case "status":
			patch.StatusSet = true
			if err := unmarshalNullable(raw, &patch.Status); err != nil {
				return patch, errors.New("status must be a string")
			}
		case "visibility":
			patch.VisibilitySet = true
			if err := unmarshalNullable(raw, &patch.Visibility); err != nil {
				return patch, errors.New("visibility must be a string")
			}
		case "recurrence":
			patch.RecurrenceSet = true
			if err := unmarshalNullable(raw, &patch.Recurrence); err != nil {
				return patch, errors.New("recurrence must be a string")
			}
		case "deadline":
			patch.DeadlineSet = true
			if string(raw) == "null" {
				patch.Deadline = nil
				continue
			}
			var deadline time.Time
			if err := json.Unmarshal(raw, &deadline); err != nil {
				return patch, errors.New("deadline must be an RFC 3339 timestamp or null")
			}
			patch.Deadline = &deadline
		}
	}
	return patch, nil
}

// unmarshalNullable treats JSON null as the zero value: a field sent
// as null is still applied.
func unmarshalNullable(raw json.RawMessage, dst *string) error {
	if string(raw) == "null" {
		*dst = ""
		return nil
	}
	return json.Unmarshal(raw, dst)
}

func parseID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, errors.New("id must be a positive number")
	}
	return uint(id), nil
}

// writeServiceError maps the lifecycle failure taxonomy onto HTTP
// statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		writeJSONError(w, http.StatusBadRequest, err)
	case errors.Is(err, service.ErrAccessDenied):
		writeJSONError(w, http.StatusForbidden, err)
	case errors.Is(err, service.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, err)
	default:
		log.Printf("task handler: %v", err)
		writeJSONError(w, http.StatusInternalServerError, errors.New("internal error"))
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode response: %v", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
