package httpapi

import (
	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type createTaskRequest struct {
	Title       string   `json:"title"       validate:"required"`
	Description string   `json:"description"`
	Priority    string   `json:"priority"`
	Skills      []string `json:"skills"`
	Channel     string   `json:"channel"`
	Status      string   `json:"status"      validate:"omitempty,oneof=backlog todo in-progress done"`
	Order       *int     `json:"order"`
	Schedule    string   `json:"schedule"`
}

// updateTaskRequest is a field patch: absent fields stay untouched,
// schedule="" clears the schedule.
type updateTaskRequest struct {
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	Priority    *string   `json:"priority"`
	Skills      *[]string `json:"skills"`
	Channel     *string   `json:"channel"`
	Status      *string   `json:"status"   validate:"omitempty,oneof=backlog todo in-progress done"`
	Order       *int      `json:"order"`
	Schedule    *string   `json:"schedule"`
}

type pickupRequest struct {
	SubagentID string `json:"subagentId"`
}

type completeRequest struct {
	Result string `json:"result"`
	Error  string `json:"error"`
}

type statusReportRequest struct {
	// Accepted values are arbitrated by the board (running/completed/failed/timeout).
	Status  string `json:"status"  validate:"required"`
	Message string `json:"message"`
}

type archiveManyRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,dive,required"`
}

type settingsRequest struct {
	MaxConcurrent int    `json:"maxConcurrent" validate:"required,min=1"`
	Timezone      string `json:"timezone"      validate:"required"`
}
