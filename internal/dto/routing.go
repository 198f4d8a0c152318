package dto

// RunRoutingRequest triggers a routing pass for one case.
type RunRoutingRequest struct {
	KeepStatus bool `json:"keep_status"`
}

// ChangeStatusRequest moves a case to an explicit workflow status.
type ChangeStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// MarkDoneRequest records that a caseworker finished with a case on the given queues.
type MarkDoneRequest struct {
	UserID   string   `json:"user_id" validate:"required"`
	QueueIDs []string `json:"queue_ids" validate:"required,min=1,dive,required"`
}
