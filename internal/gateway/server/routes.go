package server

import (
	"net/http"

	"schemagen/internal/gateway/handler/rpc"
	"schemagen/internal/gateway/middleware"
)

func NewMux(schemaHandler *rpc.SchemaHandler, batchStream *rpc.BatchStreamHandler) http.Handler {
	mux := http.NewServeMux()

	// RPC Handlers
	mux.Handle(rpc.NewSchemaServiceHandler(schemaHandler))

	// Streaming
	mux.HandleFunc("/ws/batch", batchStream.HandleBatchWS)

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// Middleware
	return middleware.CORS(mux)
}
