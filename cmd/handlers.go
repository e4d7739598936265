package cmd

import (
	"context"
	"encoding/json"
	"time"

	"ipcam/pkg/handler"
	"ipcam/pkg/message"
	"ipcam/pkg/service"
)

const pingAction = "ping"

type pingReply struct {
	Service string `json:"service"`
	Time    string `json:"time"`
}

// registerBuiltins installs the handlers every service answers.
func registerBuiltins(svc *service.Service) {
	svc.RegisterRequestHandler(pingAction, newPingHandler)
}

type pingHandler struct {
	svc *service.Service
}

func newPingHandler(svc *service.Service) handler.Handler {
	return &pingHandler{svc: svc}
}

func (h *pingHandler) Run(ctx context.Context, msg *message.Message) error {
	body, err := json.Marshal(pingReply{
		Service: h.svc.Name(),
		Time:    time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return err
	}

	return h.svc.Reply(ctx, msg, message.CodeOK, body)
}
