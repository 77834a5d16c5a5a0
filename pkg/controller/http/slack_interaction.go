package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/followup/pkg/controller/message"
	"github.com/secmon-lab/followup/pkg/service/notify"
	"github.com/secmon-lab/followup/pkg/utils/async"
	"github.com/secmon-lab/followup/pkg/utils/errutil"
	"github.com/secmon-lab/followup/pkg/utils/logging"
	"github.com/slack-go/slack"
)

// SlackInteractionHandler turns alert button clicks into message envelopes
type SlackInteractionHandler struct {
	dispatcher Dispatcher
}

func NewSlackInteractionHandler(dispatcher Dispatcher) *SlackInteractionHandler {
	return &SlackInteractionHandler{
		dispatcher: dispatcher,
	}
}

// ServeHTTP handles Slack interaction webhook requests
func (h *SlackInteractionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Slack sends interaction payloads as application/x-www-form-urlencoded
	// with a "payload" field containing JSON
	payload := r.FormValue("payload")
	if payload == "" {
		errutil.HandleHTTP(ctx, w, goerr.New("missing payload field in interaction request"), http.StatusBadRequest)
		return
	}

	var callback slack.InteractionCallback
	if err := json.Unmarshal([]byte(payload), &callback); err != nil {
		errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "failed to parse interaction payload"), http.StatusBadRequest)
		return
	}

	if callback.Type != slack.InteractionTypeBlockActions {
		w.WriteHeader(http.StatusOK)
		return
	}

	var requests []*message.Request
	for _, action := range callback.ActionCallback.BlockActions {
		var actionType message.Action
		switch action.ActionID {
		case notify.SlackActionOpen:
			actionType = message.ActionAlertClicked
		case notify.SlackActionComplete:
			actionType = message.ActionCompleteReminder
		default:
			continue
		}

		raw, err := json.Marshal(map[string]string{"reminderId": action.Value})
		if err != nil {
			logging.From(ctx).Warn("failed to encode interaction", "error", err, "value", action.Value)
			continue
		}
		requests = append(requests, &message.Request{Type: actionType, Payload: raw})
	}

	// Answer within Slack's 3 second limit and process afterwards
	w.WriteHeader(http.StatusOK)

	if len(requests) == 0 {
		return
	}
	userID := callback.User.ID
	async.Dispatch(ctx, func(ctx context.Context) error {
		for _, req := range requests {
			resp := h.dispatcher.Handle(ctx, req)
			if !resp.Success {
				logging.From(ctx).Warn("Slack interaction refused",
					"action", req.Type,
					"user_id", userID,
					"error", resp.Error,
				)
			}
		}
		return nil
	})
}
