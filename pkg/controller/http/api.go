package http

import (
	"net/http"

	"github.com/secmon-lab/followup/pkg/controller/message"
	"github.com/secmon-lab/followup/pkg/domain/model"
	"github.com/secmon-lab/followup/pkg/usecase"
	"github.com/secmon-lab/followup/pkg/utils/logging"
)

const maxMessageBytes = 64 * 1024

// messageHandler serves the action envelope. Refused actions are still
// answered with 200; the envelope carries the outcome.
func messageHandler(dispatcher Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := message.Decode(http.MaxBytesReader(w, r.Body, maxMessageBytes))
		if err != nil {
			logging.From(r.Context()).Info("malformed message", "error", err.Error())
			writeJSON(w, r, http.StatusBadRequest, &message.Response{
				Error: "Malformed request",
				Code:  usecase.CodeValidation,
			})
			return
		}

		writeJSON(w, r, http.StatusOK, dispatcher.Handle(r.Context(), req))
	}
}

type remindersResponse struct {
	Reminders []*model.Reminder `json:"reminders"`
	Status    *model.PlanStatus `json:"status"`
}

// remindersHandler reads the store directly; data may lag the writer until
// the next change event.
func remindersHandler(uc *usecase.UseCases) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := uc.Reminder.List(r.Context())
		if err != nil {
			writeUseCaseError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, &remindersResponse{
			Reminders: list.Reminders,
			Status:    list.Status,
		})
	}
}

func planHandler(uc *usecase.UseCases) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := uc.Plan.GetStatus(r.Context())
		if err != nil {
			writeUseCaseError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, status)
	}
}

func storageHandler(uc *usecase.UseCases) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := uc.Reminder.StorageStatus(r.Context())
		if err != nil {
			writeUseCaseError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, status)
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func writeUseCaseError(w http.ResponseWriter, r *http.Request, err error) {
	logging.From(r.Context()).Error("read failed", "error", err.Error())
	writeJSON(w, r, http.StatusInternalServerError, &message.Response{
		Error: usecase.UserMessage(err),
		Code:  usecase.ErrorCode(err),
	})
}
