package cdc

import (
	"context"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectInfo is the subset of object metadata the ingester needs to plan
// work, independent of the object-store client library.
type ObjectInfo struct {
	Key  string
	Size int64
}

// ObjectStore is the staged-file surface the ingester depends on (spec
// §3.7/§4.7's "list/claim/get/delete" flow). Implemented against
// github.com/minio/minio-go/v7 for S3-compatible endpoints; see
// SPEC_FULL.md §4.7 for why minio-go was chosen over aws-sdk-go.
type ObjectStore interface {
	List(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error)
	Get(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, bucket, key string) error
}

// MinioStore adapts a minio.Client to ObjectStore.
type MinioStore struct {
	client *minio.Client
}

// NewMinioStore dials endpoint with the given static credentials. endpoint
// may be a base URL ("https://host:port") or a bare host[:port]; only the
// host part is passed to minio, and secure alone selects HTTPS.
func NewMinioStore(endpoint, accessKey, secretKey string, secure bool) (*MinioStore, error) {
	if u, err := url.Parse(endpoint); err == nil && u.Host != "" {
		endpoint = u.Host
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, err
	}
	return &MinioStore{client: client}, nil
}

// List returns every object under prefix. minio-go's ListObjects streams
// results over a channel; this collects them eagerly since the ingester
// needs the full pending set to apply its backpressure cap.
func (m *MinioStore) List(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error) {
	var out []ObjectInfo
	for obj := range m.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		out = append(out, ObjectInfo{Key: obj.Key, Size: obj.Size})
	}
	return out, nil
}

func (m *MinioStore) Get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	return m.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
}

func (m *MinioStore) Delete(ctx context.Context, bucket, key string) error {
	return m.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{})
}

// globPrefix extracts the longest literal directory prefix of a path
// pattern, so List can narrow its request instead of scanning the whole
// bucket. "cdc/{database}/{collection}/*.parquet" yields "cdc/".
func globPrefix(pattern string) string {
	idx := strings.IndexAny(pattern, "*{")
	if idx < 0 {
		return pattern
	}
	return pattern[:strings.LastIndex(pattern[:idx], "/")+1]
}

// matchesPath reports whether key satisfies the glob pattern from
// Config.Path, where "{word}" placeholders behave like "*".
func matchesPath(pattern, key string) bool {
	translated := placeholderPattern(pattern)
	ok, err := path.Match(translated, key)
	return err == nil && ok
}

func placeholderPattern(pattern string) string {
	var b strings.Builder
	inBrace := false
	for _, r := range pattern {
		switch {
		case r == '{':
			inBrace = true
			b.WriteByte('*')
		case r == '}':
			inBrace = false
		case inBrace:
			// swallow placeholder name
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
