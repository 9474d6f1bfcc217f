// Package s3 stores the workbook as an object in an S3-compatible bucket.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"sync"

	"github.com/SscSPs/kiosc_finance_app/internal/apperrors"
	portsrepo "github.com/SscSPs/kiosc_finance_app/internal/core/ports/repositories"
	"github.com/SscSPs/kiosc_finance_app/internal/middleware"
	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// DriverName identifies this driver in configuration.
const DriverName = "s3"

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Config holds explicit construction parameters.
// Credentials fall back to the default AWS chain when AccessKeyID is empty.
type Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	Prefix          string
	PathStyle       bool
	AccessKeyID     string
	SecretAccessKey string
	HTTPClient      aws.HTTPClient
}

// Store is a RemoteStore backed by one S3 bucket. The object ETag is the
// revision marker; writes are conditional on the last ETag observed.
type Store struct {
	client *s3.Client
	bucket string
	prefix string

	mu      sync.Mutex
	objects map[string]observed
}

// observed is the object a filename resolved to and the ETag last seen for it.
type observed struct {
	key  string
	etag string
}

var _ portsrepo.RemoteStore = (*Store)(nil)

// New creates an S3 remote store.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("%w: s3 bucket required", apperrors.ErrValidation)
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	if cfg.HTTPClient != nil {
		loadOpts = append(loadOpts, config.WithHTTPClient(cfg.HTTPClient))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		// S3-compatible stores such as MinIO reject the default trailing checksums.
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})
	return &Store{
		client:  client,
		bucket:  cfg.Bucket,
		prefix:  strings.Trim(cfg.Prefix, "/"),
		objects: make(map[string]observed),
	}, nil
}

// Driver implements RemoteStore.
func (s *Store) Driver() string { return DriverName }

// Ping checks that the bucket is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: &s.bucket}); err != nil {
		return s.mapError("ping", s.bucket, err)
	}
	return nil
}

// ListFiles lists spreadsheet objects directly under the prefix.
func (s *Store) ListFiles(ctx context.Context) ([]portsrepo.RemoteFile, error) {
	listPrefix := ""
	if s.prefix != "" {
		listPrefix = s.prefix + "/"
	}
	var files []portsrepo.RemoteFile
	var token *string
	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            &s.bucket,
			Prefix:            &listPrefix,
			ContinuationToken: token,
		})
		if err != nil {
			return nil, s.mapError("list", listPrefix, err)
		}
		for _, obj := range out.Contents {
			key := aws.ToString(obj.Key)
			name := strings.TrimPrefix(key, listPrefix)
			if name == "" || strings.Contains(name, "/") || !isSpreadsheet(name) {
				continue
			}
			files = append(files, portsrepo.RemoteFile{
				Name:       name,
				Path:       key,
				Size:       aws.ToInt64(obj.Size),
				Revision:   strings.Trim(aws.ToString(obj.ETag), `"`),
				ModifiedAt: aws.ToTime(obj.LastModified),
			})
		}
		if aws.ToBool(out.IsTruncated) && out.NextContinuationToken != nil {
			token = out.NextContinuationToken
			continue
		}
		break
	}
	return files, nil
}

// FileExists reports whether an object with a case-insensitively matching name exists.
func (s *Store) FileExists(ctx context.Context, filename string) (bool, error) {
	files, err := s.ListFiles(ctx)
	if err != nil {
		return false, err
	}
	_, ok := matchFile(files, filename)
	return ok, nil
}

// FetchFile downloads the object whose name matches case-insensitively.
func (s *Store) FetchFile(ctx context.Context, filename string) ([]byte, error) {
	files, err := s.ListFiles(ctx)
	if err != nil {
		return nil, err
	}
	file, ok := matchFile(files, filename)
	if !ok {
		return nil, apperrors.NewRemoteError(apperrors.ErrFileNotFound, "fetch", s.key(filename), 0, nil)
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &s.bucket, Key: &file.Path})
	if err != nil {
		return nil, s.mapError("fetch", file.Path, err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, apperrors.NewRemoteError(apperrors.ErrTransport, "fetch", file.Path, 0, err)
	}
	s.remember(filename, file.Path, strings.Trim(aws.ToString(out.ETag), `"`))
	return data, nil
}

// PutFile writes the object. A known ETag makes the write conditional on it.
// Otherwise the object is looked up case-insensitively, and a missing object
// is created with If-None-Match.
func (s *Store) PutFile(ctx context.Context, filename string, content []byte, commitMessage string) (string, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	target, known := s.lastSeen(filename)
	if !known {
		files, err := s.ListFiles(ctx)
		if err != nil {
			return "", err
		}
		target = observed{key: s.key(filename)}
		if file, ok := matchFile(files, filename); ok {
			target = observed{key: file.Path, etag: file.Revision}
		}
	}
	key := target.key

	input := &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         &key,
		Body:        bytes.NewReader(content),
		ContentType: aws.String(xlsxContentType),
	}
	if commitMessage != "" {
		input.Metadata = map[string]string{"commit-message": commitMessage}
	}
	if target.etag != "" {
		input.IfMatch = aws.String(`"` + target.etag + `"`)
	} else {
		input.IfNoneMatch = aws.String("*")
	}

	out, err := s.client.PutObject(ctx, input)
	if err != nil {
		return "", s.mapError("put", key, err)
	}
	revision := strings.Trim(aws.ToString(out.ETag), `"`)
	s.remember(filename, key, revision)
	logger.Info("Workbook uploaded", slog.String("bucket", s.bucket), slog.String("key", key), slog.String("etag", revision))
	return revision, nil
}

func (s *Store) key(filename string) string {
	if s.prefix == "" {
		return filename
	}
	return path.Join(s.prefix, filename)
}

func (s *Store) remember(filename, key, etag string) {
	if etag == "" {
		return
	}
	s.mu.Lock()
	s.objects[strings.ToLower(filename)] = observed{key: key, etag: etag}
	s.mu.Unlock()
}

func (s *Store) lastSeen(filename string) (observed, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.objects[strings.ToLower(filename)]
	return o, ok
}

type statusCoder interface {
	HTTPStatusCode() int
}

func statusOf(err error) int {
	var sc statusCoder
	if errors.As(err, &sc) {
		return sc.HTTPStatusCode()
	}
	return 0
}

func isNotFound(err error) bool {
	var noKey *types.NoSuchKey
	var notFound *types.NotFound
	return errors.As(err, &noKey) || errors.As(err, &notFound) || statusOf(err) == 404
}

func (s *Store) mapError(op, key string, err error) error {
	status := statusOf(err)
	switch {
	case status == 412 || status == 409:
		return apperrors.NewRemoteError(apperrors.ErrConflict, op, key, status, err)
	case op == "fetch" && isNotFound(err):
		return apperrors.NewRemoteError(apperrors.ErrFileNotFound, op, key, status, err)
	default:
		return apperrors.NewRemoteError(apperrors.ErrTransport, op, key, status, err)
	}
}

func matchFile(files []portsrepo.RemoteFile, filename string) (portsrepo.RemoteFile, bool) {
	for _, f := range files {
		if strings.EqualFold(f.Name, filename) {
			return f, true
		}
	}
	return portsrepo.RemoteFile{}, false
}

func isSpreadsheet(name string) bool {
	switch strings.ToLower(path.Ext(name)) {
	case ".xlsx", ".xls", ".xlsm", ".xlsb":
		return true
	}
	return false
}
