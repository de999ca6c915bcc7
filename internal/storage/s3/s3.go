/*
Copyright 2025 The htsgetd Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package s3 implements storage.Backend over an S3-compatible bucket
// using minio-go, issuing presigned GET URLs as tickets so clients
// fetch byte ranges directly from the object store.
package s3

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/go-htsget/htsgetd/internal/htserr"
	"github.com/go-htsget/htsgetd/internal/htsget"
)

// Credentials configures the underlying minio client. Endpoint may be a
// bare host or a full URL; a URL's scheme determines UseSSL when
// present.
type Credentials struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	UseSSL          bool
	Region          string
}

// Backend serves objects out of a single bucket, optionally under a
// key prefix.
type Backend struct {
	name      string
	client    *minio.Client
	bucket    string
	prefix    string
	ticketTTL time.Duration
}

// New builds an S3 Backend bound to bucket, resolving object keys
// under keyPrefix. ticketTTL bounds how long issued presigned URLs
// remain valid; it should comfortably exceed how long a client is
// expected to take fetching its ticket. An empty Endpoint means AWS S3;
// without both static keys, credentials come from the environment, the
// shared AWS credentials file, or the instance's IAM role.
func New(name string, creds Credentials, bucket, keyPrefix string, ticketTTL time.Duration) (*Backend, error) {
	if creds.Endpoint == "" {
		creds.Endpoint = "https://s3.amazonaws.com"
	}
	provider := credentials.NewStaticV4(creds.AccessKeyID, creds.SecretAccessKey, creds.SessionToken)
	if creds.AccessKeyID == "" || creds.SecretAccessKey == "" {
		provider = credentials.NewChainCredentials([]credentials.Provider{
			&credentials.EnvAWS{},
			&credentials.FileAWSCredentials{},
			&credentials.IAM{Client: &http.Client{Transport: http.DefaultTransport}},
		})
	}

	endpoint, secure := parseEndpoint(creds.Endpoint, creds.UseSSL)
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  provider,
		Secure: secure,
		Region: creds.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("creating S3 client for backend %q at %s: %w", name, endpoint, err)
	}

	if ticketTTL <= 0 {
		ticketTTL = 15 * time.Minute
	}

	return &Backend{
		name:      name,
		client:    client,
		bucket:    bucket,
		prefix:    strings.Trim(keyPrefix, "/"),
		ticketTTL: ticketTTL,
	}, nil
}

// parseEndpoint extracts the host from an endpoint that may carry a
// scheme, deriving UseSSL from it when present.
func parseEndpoint(endpoint string, useSSL bool) (string, bool) {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		if parsed, err := url.Parse(endpoint); err == nil && parsed.Host != "" {
			return parsed.Host, parsed.Scheme == "https"
		}
	}
	return endpoint, useSSL
}

// Name implements htsget.StorageHandle.
func (b *Backend) Name() string { return b.name }

func (b *Backend) objectKey(key string) string {
	trimmed := strings.TrimPrefix(key, "/")
	if b.prefix == "" {
		return trimmed
	}
	return b.prefix + "/" + trimmed
}

// Head implements storage.Backend.
func (b *Backend) Head(ctx context.Context, key string) (int64, bool, error) {
	info, err := b.client.StatObject(ctx, b.bucket, b.objectKey(key), minio.StatObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return 0, false, nil
		}
		return 0, false, htserr.Transient.Wrap(fmt.Errorf("stat s3://%s/%s: %w", b.bucket, b.objectKey(key), err))
	}
	return info.Size, true, nil
}

// GetRanges implements storage.Backend by issuing one ranged GET per
// entry and concatenating the bodies in order.
func (b *Backend) GetRanges(ctx context.Context, key string, ranges []htsget.ByteRange) ([]byte, error) {
	objKey := b.objectKey(key)
	var out []byte
	for _, rng := range ranges {
		opts := minio.GetObjectOptions{}
		if err := opts.SetRange(rng.First, rng.Last); err != nil {
			return nil, htserr.ServerError.Wrap(fmt.Errorf("setting range %d-%d: %w", rng.First, rng.Last, err))
		}
		obj, err := b.client.GetObject(ctx, b.bucket, objKey, opts)
		if err != nil {
			return nil, classifyGetError(err, objKey)
		}
		body, err := io.ReadAll(obj)
		obj.Close()
		if err != nil {
			return nil, classifyGetError(err, objKey)
		}
		out = append(out, body...)
	}
	return out, nil
}

// TicketURL implements storage.Backend via a presigned GET scoped to a
// single byte range.
func (b *Backend) TicketURL(ctx context.Context, key string, rng htsget.ByteRange) (htsget.Url, error) {
	objKey := b.objectKey(key)
	reqParams := url.Values{}
	signed, err := b.client.PresignedGetObject(ctx, b.bucket, objKey, b.ticketTTL, reqParams)
	if err != nil {
		return htsget.Url{}, htserr.Transient.Wrap(fmt.Errorf("presigning s3://%s/%s: %w", b.bucket, objKey, err))
	}
	return htsget.Url{
		URL: signed.String(),
		Headers: map[string]string{
			"Range": fmt.Sprintf("bytes=%d-%d", rng.First, rng.Last),
		},
		Class: rng.Purpose.AsClass(),
	}, nil
}

func isNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound
}

func classifyGetError(err error, objKey string) error {
	if isNotFound(err) {
		return htserr.NotFound.New("object %q not found", objKey)
	}
	resp := minio.ToErrorResponse(err)
	if resp.StatusCode == http.StatusForbidden {
		return htserr.PermissionDenied.Wrap(fmt.Errorf("access to %q denied: %w", objKey, err))
	}
	return htserr.Transient.Wrap(fmt.Errorf("reading %q: %w", objKey, err))
}
