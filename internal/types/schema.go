package types

import "encoding/json"

// TypeRequest names one class to derive a schema for.
type TypeRequest struct {
	FullyQualifiedName string `json:"fullyQualifiedName" yaml:"fullyQualifiedName"`
	Description        string `json:"description" yaml:"description"`
}

// SchemaRequest triggers one resolve-and-load cycle.
type SchemaRequest struct {
	Coordinate `yaml:",inline"`
	Objects    []TypeRequest `json:"objects" yaml:"objects"`
}

// ResolvedArtifactSet lists the local files covering an artifact and its
// transitive dependency closure, in classpath order.
type ResolvedArtifactSet struct {
	Root  Coordinate
	Files []string
}

// TypeSchema is the derived schema for one TypeRequest.
type TypeSchema struct {
	FullyQualifiedName string          `json:"fullyQualifiedName"`
	Description        string          `json:"description"`
	Schema             json.RawMessage `json:"schema"`
}

// SchemaResponse carries one schema per requested object, in request order.
type SchemaResponse struct {
	Coordinate
	Schemas []TypeSchema `json:"schemas"`
}

// FailureKind classifies why a request (or one of its types) produced no schema.
type FailureKind string

const (
	FailureResolution       FailureKind = "resolution"
	FailureTypeNotFound     FailureKind = "type_not_found"
	FailureTypeLoad         FailureKind = "type_load"
	FailureSchemaDerivation FailureKind = "schema_derivation"
	FailureCanceled         FailureKind = "canceled"
	FailureInternal         FailureKind = "internal"
)

// Failure reports a request that produced no SchemaResponse. TypeName is set
// when the failure is scoped to one object of the request.
type Failure struct {
	Index int `json:"index"`
	Coordinate
	Kind     FailureKind `json:"kind"`
	TypeName string      `json:"typeName,omitempty"`
	Message  string      `json:"message"`
}

// BatchResult partitions a batch: every input index appears in Responses
// (through ResponseIndex) or in Failures with an artifact-level kind.
type BatchResult struct {
	Responses     []SchemaResponse `json:"responses"`
	ResponseIndex []int            `json:"-"`
	Failures      []Failure        `json:"failures"`
}
