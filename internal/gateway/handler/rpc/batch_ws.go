package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"schemagen/internal/batch"
	gatewayschema "schemagen/internal/gateway/service/schema"
	"schemagen/internal/requestio"
	"schemagen/internal/types"
)

const (
	batchWSWriteWait = 10 * time.Second
	batchWSPongWait  = 60 * time.Second
	batchWSPingEvery = (batchWSPongWait * 9) / 10
)

var batchWSUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

type batchWSInbound struct {
	Type     string          `json:"type"`
	Requests json.RawMessage `json:"requests,omitempty"`
}

type batchWSOutbound struct {
	Type      string                `json:"type"`
	BatchID   string                `json:"batchId,omitempty"`
	Index     *int                  `json:"index,omitempty"`
	Response  *types.SchemaResponse `json:"response,omitempty"`
	Failures  []types.Failure       `json:"failures,omitempty"`
	Total     int                   `json:"total,omitempty"`
	Succeeded int                   `json:"succeeded,omitempty"`
	Failed    int                   `json:"failed,omitempty"`
	Code      string                `json:"code,omitempty"`
	Message   string                `json:"message,omitempty"`
}

// BatchStreamHandler streams batch outcomes over a websocket.
type BatchStreamHandler struct {
	svc *gatewayschema.Service
}

func NewBatchStreamHandler(svc *gatewayschema.Service) *BatchStreamHandler {
	return &BatchStreamHandler{svc: svc}
}

// HandleBatchWS accepts {"type":"batch","requests":[...]} and answers with
// "accepted", one "outcome" per request as it completes, then "complete".
// Closing the socket stops launching the remaining requests of a running
// batch.
func (h *BatchStreamHandler) HandleBatchWS(w http.ResponseWriter, r *http.Request) {
	conn, err := batchWSUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := conn.SetReadDeadline(time.Now().Add(batchWSPongWait)); err != nil {
		log.Printf("batch ws set read deadline failed: %v", err)
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(batchWSPongWait))
	})

	writeCh := make(chan batchWSOutbound, 32)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		defer cancel()
		ticker := time.NewTicker(batchWSPingEvery)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case out := <-writeCh:
				if err := conn.SetWriteDeadline(time.Now().Add(batchWSWriteWait)); err != nil {
					return
				}
				if err := conn.WriteJSON(out); err != nil {
					return
				}
			case <-ticker.C:
				if err := conn.SetWriteDeadline(time.Now().Add(batchWSWriteWait)); err != nil {
					return
				}
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	var running atomic.Bool
	for {
		var in batchWSInbound
		if err := conn.ReadJSON(&in); err != nil {
			cancel()
			<-writerDone
			return
		}

		switch strings.ToLower(strings.TrimSpace(in.Type)) {
		case "ping":
			pushBatchWS(ctx, writeCh, batchWSOutbound{Type: "pong"})
		case "batch":
			reqs, err := requestio.Decode(bytes.NewReader(in.Requests), requestio.FormatJSON)
			if err != nil {
				pushBatchWS(ctx, writeCh, batchWSOutbound{Type: "error", Code: "invalid_argument", Message: err.Error()})
				continue
			}
			if !running.CompareAndSwap(false, true) {
				pushBatchWS(ctx, writeCh, batchWSOutbound{Type: "error", Code: "failed_precondition", Message: "a batch is already running"})
				continue
			}
			batchID := gatewayschema.NewBatchID()
			pushBatchWS(ctx, writeCh, batchWSOutbound{Type: "accepted", BatchID: batchID, Total: len(reqs)})
			go func() {
				defer running.Store(false)
				_, res := h.svc.Run(ctx, batchID, reqs, func(o batch.Outcome) {
					idx := o.Index
					pushBatchWS(ctx, writeCh, batchWSOutbound{
						Type:     "outcome",
						BatchID:  batchID,
						Index:    &idx,
						Response: o.Response,
						Failures: o.Failures,
					})
				})
				pushBatchWS(ctx, writeCh, batchWSOutbound{
					Type:      "complete",
					BatchID:   batchID,
					Total:     len(reqs),
					Succeeded: len(res.Responses),
					Failed:    len(reqs) - len(res.Responses),
				})
			}()
		case "":
			pushBatchWS(ctx, writeCh, batchWSOutbound{Type: "error", Code: "invalid_argument", Message: "type is required"})
		default:
			pushBatchWS(ctx, writeCh, batchWSOutbound{Type: "error", Code: "invalid_argument", Message: "unsupported type: " + in.Type})
		}
	}
}

// pushBatchWS blocks until the writer takes out or the socket goes away.
// Outcomes are never dropped.
func pushBatchWS(ctx context.Context, writeCh chan<- batchWSOutbound, out batchWSOutbound) bool {
	select {
	case writeCh <- out:
		return true
	case <-ctx.Done():
		return false
	}
}
