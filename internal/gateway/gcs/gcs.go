// Package gcs implements the remote gateway on top of a Google Cloud Storage
// bucket. Each record is one JSON object under records/<kind>/<id>.json.
// It assumes Application Default Credentials are configured
// (gcloud auth application-default login).
package gcs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"

	"github.com/MansurAzad/cashbook/internal/domain"
	"github.com/MansurAzad/cashbook/internal/gateway"
)

const opTimeout = 30 * time.Second

// Gateway is a gateway.Remote backed by a GCS bucket. It holds a shared
// storage client to avoid creating a new connection for each operation.
type Gateway struct {
	client *storage.Client
	bucket string
}

// New creates a gateway against the given bucket.
func New(ctx context.Context, bucket string) (*Gateway, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcs gateway: create storage client: %w", err)
	}
	return &Gateway{client: client, bucket: bucket}, nil
}

// Close releases the underlying storage client.
func (g *Gateway) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

func objectName(kind domain.Kind, id string) string {
	return fmt.Sprintf("records/%s/%s.json", kind, id)
}

func cloneRecord(data map[string]any) map[string]any {
	out := make(map[string]any, len(data)+1)
	for k, v := range data {
		out[k] = v
	}
	return out
}

// Create implements gateway.Remote. The caller's map is copied before the id
// is stamped in, so a failed write leaves the payload untouched.
func (g *Gateway) Create(ctx context.Context, kind domain.Kind, data map[string]any) (gateway.Object, error) {
	id := uuid.New().String()
	obj := gateway.Object{ID: id, Data: cloneRecord(data)}
	obj.Data["id"] = id
	if err := g.write(ctx, kind, id, obj.Data); err != nil {
		return gateway.Object{}, err
	}
	return obj, nil
}

// Update implements gateway.Remote. Updating an object that does not exist
// is a permanent failure.
func (g *Gateway) Update(ctx context.Context, kind domain.Kind, id string, data map[string]any) (gateway.Object, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	handle := g.client.Bucket(g.bucket).Object(objectName(kind, id))
	if _, err := handle.Attrs(ctx); err != nil {
		return gateway.Object{}, classify(fmt.Errorf("update %s/%s: %w", kind, id, err))
	}
	stored := cloneRecord(data)
	stored["id"] = id
	if err := g.write(ctx, kind, id, stored); err != nil {
		return gateway.Object{}, err
	}
	return gateway.Object{ID: id, Data: stored}, nil
}

// Delete implements gateway.Remote.
func (g *Gateway) Delete(ctx context.Context, kind domain.Kind, id string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	err := g.client.Bucket(g.bucket).Object(objectName(kind, id)).Delete(ctx)
	if err != nil {
		return classify(fmt.Errorf("delete %s/%s: %w", kind, id, err))
	}
	return nil
}

// List implements gateway.Remote. It scans the kind's prefix and decodes
// every object; any failed read fails the listing.
func (g *Gateway) List(ctx context.Context, kind domain.Kind, limit int) ([]gateway.Object, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	prefix := fmt.Sprintf("records/%s/", kind)
	it := g.client.Bucket(g.bucket).Objects(ctx, &storage.Query{Prefix: prefix})

	var out []gateway.Object
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, classify(fmt.Errorf("list %s: %w", kind, err))
		}
		obj, err := g.read(ctx, attrs.Name)
		if err != nil {
			return nil, err
		}
		out = append(out, obj)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (g *Gateway) write(ctx context.Context, kind domain.Kind, id string, data map[string]any) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", kind, id, err)
	}

	w := g.client.Bucket(g.bucket).Object(objectName(kind, id)).NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := w.Write(raw); err != nil {
		_ = w.Close()
		return classify(fmt.Errorf("write %s/%s: %w", kind, id, err))
	}
	if err := w.Close(); err != nil {
		return classify(fmt.Errorf("finalize %s/%s: %w", kind, id, err))
	}
	return nil
}

func (g *Gateway) read(ctx context.Context, name string) (gateway.Object, error) {
	rc, err := g.client.Bucket(g.bucket).Object(name).NewReader(ctx)
	if err != nil {
		return gateway.Object{}, classify(fmt.Errorf("read %s: %w", name, err))
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return gateway.Object{}, classify(fmt.Errorf("read %s: %w", name, err))
	}

	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return gateway.Object{}, fmt.Errorf("decode %s: %w", name, err)
	}
	id, _ := data["id"].(string)
	return gateway.Object{ID: id, Data: data}, nil
}

// classify maps storage errors onto the gateway failure taxonomy: missing
// objects and permission denials are permanent, everything else is presumed
// transient.
func classify(err error) error {
	if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
		return gateway.Permanent(err)
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case 403, 404:
			return gateway.Permanent(err)
		}
	}
	return err
}

var _ gateway.Remote = (*Gateway)(nil)
