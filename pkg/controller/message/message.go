package message

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/followup/pkg/domain/model"
	"github.com/secmon-lab/followup/pkg/domain/types"
	"github.com/secmon-lab/followup/pkg/usecase"
	"github.com/secmon-lab/followup/pkg/utils/errutil"
	"github.com/secmon-lab/followup/pkg/utils/logging"
)

// Action names a request type of the message envelope
type Action string

const (
	ActionCreateReminder       Action = "CREATE_REMINDER"
	ActionCompleteReminder     Action = "COMPLETE_REMINDER"
	ActionDeleteReminder       Action = "DELETE_REMINDER"
	ActionGetReminders         Action = "GET_REMINDERS"
	ActionGetPlanStatus        Action = "GET_PLAN_STATUS"
	ActionCheckAlertPermission Action = "CHECK_ALERT_PERMISSION"
	ActionGetStorageStatus     Action = "GET_STORAGE_STATUS"
	ActionAlertClicked         Action = "ALERT_CLICKED"
)

// AllActions lists every recognized action
var AllActions = []Action{
	ActionCreateReminder,
	ActionCompleteReminder,
	ActionDeleteReminder,
	ActionGetReminders,
	ActionGetPlanStatus,
	ActionCheckAlertPermission,
	ActionGetStorageStatus,
	ActionAlertClicked,
}

// Envelope level validation messages
const (
	MsgReminderIDRequired = "Reminder ID is required"
	MsgMalformedPayload   = "Malformed payload"
)

// Request is the inbound envelope
type Request struct {
	Type    Action          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response is the outbound envelope. Code is set on failure only.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

// Decode reads a request envelope
func Decode(r io.Reader) (*Request, error) {
	var req Request
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return nil, goerr.Wrap(err, "failed to decode message")
	}
	if req.Type == "" {
		return nil, goerr.New("message type is required")
	}
	return &req, nil
}

// Writer runs mutations on the single writer
type Writer interface {
	Do(ctx context.Context, fn func(ctx context.Context) (any, error)) (any, error)
}

// Handler dispatches envelopes to use cases. Mutations and alert clicks go
// through the writer; reads hit the store directly.
type Handler struct {
	uc     *usecase.UseCases
	writer Writer
}

func NewHandler(uc *usecase.UseCases, writer Writer) *Handler {
	return &Handler{
		uc:     uc,
		writer: writer,
	}
}

type remindersData struct {
	Reminders    []*model.Reminder `json:"reminders"`
	PendingCount int               `json:"pendingCount"`
	PlanLimit    int               `json:"planLimit"`
	PlanType     types.PlanType    `json:"planType"`
	CanAdmit     bool              `json:"canAdmit"`
}

type reminderData struct {
	Reminder *model.Reminder `json:"reminder"`
}

type deletedData struct {
	DeletedID model.ReminderID `json:"deletedId"`
}

type permissionData struct {
	PermissionLevel types.PermissionLevel `json:"permissionLevel"`
}

type alertClickedData struct {
	ReminderID model.ReminderID `json:"reminderId"`
}

type reminderIDPayload struct {
	ReminderID model.ReminderID `json:"reminderId"`
}

// Handle processes one request. It never returns a partial success.
func (h *Handler) Handle(ctx context.Context, req *Request) *Response {
	ctx = logging.With(ctx, logging.From(ctx).With("action", req.Type))

	data, err := h.dispatch(ctx, req)
	if err != nil {
		return h.failure(ctx, req, err)
	}
	return &Response{Success: true, Data: data}
}

func (h *Handler) dispatch(ctx context.Context, req *Request) (any, error) {
	switch req.Type {
	case ActionCreateReminder:
		payload, err := decodeCreatePayload(req.Payload)
		if err != nil {
			return nil, err
		}
		r, err := h.write(ctx, func(ctx context.Context) (any, error) {
			return h.uc.Reminder.Create(ctx, payload)
		})
		if err != nil {
			return nil, err
		}
		return &reminderData{Reminder: r.(*model.Reminder)}, nil

	case ActionCompleteReminder:
		id, err := reminderID(req.Payload)
		if err != nil {
			return nil, err
		}
		r, err := h.write(ctx, func(ctx context.Context) (any, error) {
			return h.uc.Reminder.Complete(ctx, id)
		})
		if err != nil {
			return nil, err
		}
		return &reminderData{Reminder: r.(*model.Reminder)}, nil

	case ActionDeleteReminder:
		id, err := reminderID(req.Payload)
		if err != nil {
			return nil, err
		}
		deleted, err := h.write(ctx, func(ctx context.Context) (any, error) {
			return h.uc.Reminder.Delete(ctx, id)
		})
		if err != nil {
			return nil, err
		}
		return &deletedData{DeletedID: deleted.(model.ReminderID)}, nil

	case ActionGetReminders:
		list, err := h.uc.Reminder.List(ctx)
		if err != nil {
			return nil, err
		}
		return &remindersData{
			Reminders:    list.Reminders,
			PendingCount: list.Status.PendingCount,
			PlanLimit:    list.Status.ActiveReminderLimit,
			PlanType:     list.Status.PlanType,
			CanAdmit:     list.Status.CanAdmit,
		}, nil

	case ActionGetPlanStatus:
		return h.uc.Plan.GetStatus(ctx)

	case ActionCheckAlertPermission:
		return &permissionData{PermissionLevel: h.uc.Notification.CheckPermission(ctx)}, nil

	case ActionGetStorageStatus:
		return h.uc.Reminder.StorageStatus(ctx)

	case ActionAlertClicked:
		id, err := reminderID(req.Payload)
		if err != nil {
			return nil, err
		}
		if _, err := h.write(ctx, func(ctx context.Context) (any, error) {
			return nil, h.uc.Notification.HandleAlertClick(ctx, id)
		}); err != nil {
			return nil, err
		}
		return &alertClickedData{ReminderID: id}, nil

	default:
		return nil, errUnknownAction
	}
}

func (h *Handler) write(ctx context.Context, fn func(ctx context.Context) (any, error)) (any, error) {
	if h.writer == nil {
		return fn(ctx)
	}
	return h.writer.Do(ctx, fn)
}

var errUnknownAction = goerr.New("unknown action")

func (h *Handler) failure(ctx context.Context, req *Request, err error) *Response {
	if errors.Is(err, errUnknownAction) {
		logging.From(ctx).Warn("unknown action")
		return &Response{Error: "Unknown action: " + string(req.Type), Code: usecase.CodeValidation}
	}

	code := usecase.ErrorCode(err)
	if code == usecase.CodeStorage {
		errutil.Handle(ctx, err, "message handling failed")
	} else {
		logging.From(ctx).Info("request refused", "code", code, "error", err.Error())
	}
	return &Response{Error: usecase.UserMessage(err), Code: code}
}

type createPayload struct {
	ConversationID    string          `json:"conversationId"`
	ConversationLabel string          `json:"conversationLabel"`
	ScheduledAt       json.RawMessage `json:"scheduledAt"`
}

// decodeCreatePayload maps a scheduledAt that is not a JSON number to NaN so
// validation reports it in its usual order.
func decodeCreatePayload(raw json.RawMessage) (*model.CreateReminderRequest, error) {
	var payload createPayload
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, usecase.NewValidationError(MsgMalformedPayload)
		}
	}

	req := &model.CreateReminderRequest{
		ConversationID:    payload.ConversationID,
		ConversationLabel: payload.ConversationLabel,
		ScheduledAt:       math.NaN(),
	}
	var at *float64
	if err := json.Unmarshal(payload.ScheduledAt, &at); err == nil && at != nil {
		req.ScheduledAt = *at
	}
	return req, nil
}

func reminderID(raw json.RawMessage) (model.ReminderID, error) {
	var payload reminderIDPayload
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &payload); err != nil {
			return "", usecase.NewValidationError(MsgMalformedPayload)
		}
	}
	if payload.ReminderID == "" {
		return "", usecase.NewValidationError(MsgReminderIDRequired)
	}
	return payload.ReminderID, nil
}
