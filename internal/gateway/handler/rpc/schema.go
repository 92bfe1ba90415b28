package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	schemarepo "schemagen/internal/gateway/repository/schema"
	gatewayschema "schemagen/internal/gateway/service/schema"
	"schemagen/internal/requestio"
	"schemagen/internal/types"
)

const (
	SchemaServiceName = "schemagen.v1.SchemaService"

	SchemaServiceGenerateProcedure  = "/" + SchemaServiceName + "/Generate"
	SchemaServiceGetSchemaProcedure = "/" + SchemaServiceName + "/GetSchema"
)

type SchemaHandler struct {
	svc *gatewayschema.Service
}

func NewSchemaHandler(svc *gatewayschema.Service) *SchemaHandler {
	return &SchemaHandler{svc: svc}
}

// NewSchemaServiceHandler mounts the schema service. Messages are
// google.protobuf.Struct values carrying the JSON request and response
// shapes of the CLI, plus a schemaJson string next to every schema.
func NewSchemaServiceHandler(h *SchemaHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	generate := connect.NewUnaryHandler(SchemaServiceGenerateProcedure, h.Generate, opts...)
	getSchema := connect.NewUnaryHandler(SchemaServiceGetSchemaProcedure, h.GetSchema, opts...)
	return "/" + SchemaServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case SchemaServiceGenerateProcedure:
			generate.ServeHTTP(w, r)
		case SchemaServiceGetSchemaProcedure:
			getSchema.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

type generateOutput struct {
	BatchID   string           `json:"batchId"`
	Responses []responseOutput `json:"responses"`
	Failures  []types.Failure  `json:"failures"`
}

type responseOutput struct {
	types.Coordinate
	Schemas []schemaOutput `json:"schemas"`
}

// schemaOutput repeats the schema as a string. A Struct does not keep key
// order, so schemaJson is the copy to use when order matters.
type schemaOutput struct {
	types.TypeSchema
	SchemaJSON string `json:"schemaJson"`
}

func toSchemaOutput(ts types.TypeSchema) schemaOutput {
	return schemaOutput{TypeSchema: ts, SchemaJSON: string(ts.Schema)}
}

func toResponseOutputs(in []types.SchemaResponse) []responseOutput {
	out := make([]responseOutput, 0, len(in))
	for _, r := range in {
		ro := responseOutput{Coordinate: r.Coordinate, Schemas: make([]schemaOutput, 0, len(r.Schemas))}
		for _, ts := range r.Schemas {
			ro.Schemas = append(ro.Schemas, toSchemaOutput(ts))
		}
		out = append(out, ro)
	}
	return out
}

// Generate accepts either {"requests": [...]} or a single request object.
func (h *SchemaHandler) Generate(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	reqs, err := decodeRequests(req.Msg)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	batchID, res := h.svc.Run(ctx, "", reqs, nil)
	out := generateOutput{BatchID: batchID, Responses: toResponseOutputs(res.Responses), Failures: res.Failures}
	if out.Failures == nil {
		out.Failures = []types.Failure{}
	}
	msg, err := toStruct(out)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(msg), nil
}

type getSchemaInput struct {
	types.Coordinate
	FullyQualifiedName string `json:"fullyQualifiedName"`
}

// GetSchema returns one stored schema, or the stored type names of the
// artifact when fullyQualifiedName is empty.
func (h *SchemaHandler) GetSchema(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	var in getSchemaInput
	if err := fromStruct(req.Msg, &in); err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	var out any
	if fqn := strings.TrimSpace(in.FullyQualifiedName); fqn == "" {
		names, err := h.svc.List(ctx, in.Coordinate)
		if err != nil {
			return nil, toSchemaError(err)
		}
		if names == nil {
			names = []string{}
		}
		out = map[string]any{"fullyQualifiedNames": names}
	} else {
		ts, err := h.svc.Get(ctx, in.Coordinate, fqn)
		if err != nil {
			return nil, toSchemaError(err)
		}
		out = toSchemaOutput(ts)
	}
	msg, err := toStruct(out)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(msg), nil
}

func decodeRequests(msg *structpb.Struct) ([]types.SchemaRequest, error) {
	if msg == nil {
		return nil, requestio.ErrEmpty
	}
	var raw []byte
	var err error
	if list, ok := msg.GetFields()["requests"]; ok {
		raw, err = protojson.Marshal(list)
	} else {
		raw, err = protojson.Marshal(msg)
	}
	if err != nil {
		return nil, err
	}
	return requestio.Decode(bytes.NewReader(raw), requestio.FormatJSON)
}

func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	msg := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, msg); err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	return msg, nil
}

func fromStruct(msg *structpb.Struct, v any) error {
	raw, err := protojson.Marshal(msg)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

func toSchemaError(err error) error {
	switch {
	case errors.Is(err, gatewayschema.ErrInvalidArgument):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, schemarepo.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	default:
		return connect.NewError(connect.CodeInternal, fmt.Errorf("schema service failed: %w", err))
	}
}
