// Package api exposes the Mini App HTTP interface.
package api

import (
	"net/http"

	"family-tasks/internal/repository"
	"family-tasks/internal/service"
)

// SetupRouter wires the task endpoints onto a ServeMux. The bot token
// authenticates Mini App requests via their signed init data.
func SetupRouter(botToken string, memberRepo *repository.MemberRepository, taskSvc *service.TaskService) *http.ServeMux {
	mux := http.NewServeMux()

	taskHandler := NewTaskHandler(botToken, memberRepo, taskSvc)

	mux.HandleFunc("GET /api/tasks/", taskHandler.ListTasks)
	mux.HandleFunc("POST /api/tasks/", taskHandler.CreateTask)
	mux.HandleFunc("PATCH /api/tasks/{id}", taskHandler.UpdateTask)
	mux.HandleFunc("DELETE /api/tasks/{id}", taskHandler.DeleteTask)
	mux.HandleFunc("POST /api/tasks/{id}/subtasks", taskHandler.AddSubtask)
	mux.HandleFunc("PATCH /api/tasks/subtasks/{id}", taskHandler.ToggleSubtask)

	return mux
}
