package schema

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"schemagen/internal/types"
)

// Store persists derived schemas keyed by coordinate and type name.
type Store interface {
	Put(ctx context.Context, c types.Coordinate, s types.TypeSchema) error
	Get(ctx context.Context, c types.Coordinate, fqn string) (types.TypeSchema, error)
	List(ctx context.Context, c types.Coordinate) ([]string, error)
}

var ErrNotFound = errors.New("schema not found")

// PutResponse stores every schema of a response.
func PutResponse(ctx context.Context, st Store, resp types.SchemaResponse) error {
	for _, s := range resp.Schemas {
		if err := st.Put(ctx, resp.Coordinate, s); err != nil {
			return fmt.Errorf("store %s %s: %w", resp.Coordinate, s.FullyQualifiedName, err)
		}
	}
	return nil
}

func checkKey(c types.Coordinate, fqn string) (string, error) {
	if err := c.Validate(); err != nil {
		return "", err
	}
	fqn = strings.TrimSpace(fqn)
	if fqn == "" {
		return "", fmt.Errorf("fully qualified name is required")
	}
	return fqn, nil
}

// objectKey lays schemas out as "<g>/<a>/<v>/<fqn>.json".
func objectKey(c types.Coordinate, fqn string) string {
	return coordinatePrefix(c) + fqn + ".json"
}

func coordinatePrefix(c types.Coordinate) string {
	return c.GroupID + "/" + c.ArtifactID + "/" + c.Version + "/"
}
