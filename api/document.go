package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// Document fetches any authenticated GET path as a schemaless document. It
// backs inspection commands that should not depend on the typed models.
func (c *Client) Document(ctx context.Context, path string) (*structpb.Struct, error) {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	raw, err := c.do(ctx, http.MethodGet, path, nil, nil, true)
	if err != nil {
		return nil, err
	}
	doc := &structpb.Struct{}
	if err := (protojson.UnmarshalOptions{DiscardUnknown: true}).Unmarshal(raw, doc); err != nil {
		return nil, fmt.Errorf("api: %s is not a JSON object: %w", path, err)
	}
	return doc, nil
}
