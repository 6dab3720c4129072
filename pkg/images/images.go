// Package images stores extension screenshots in an S3-compatible bucket.
//
// Objects are keyed "{user}/{timestamp}-{id}.png" and made public; the
// returned URLs are what extension records reference. Both AWS S3 and
// DigitalOcean Spaces URL layouts are recognized so records written before
// a provider switch stay valid.
package images

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"

	apperrors "github.com/ulauncher/extapi/pkg/errors"
)

const (
	DefaultMaxSize   = 5 * 1024 * 1024
	DefaultMaxImages = 300

	timestampLayout = "2006-01-02T15:04:05.000000"
	contentType     = "image/png"
)

// API is the subset of the S3 client the store uses.
type API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObjects(ctx context.Context, in *s3.DeleteObjectsInput, opts ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, opts ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// Options configures a Store.
type Options struct {
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	// Endpoint overrides the S3 endpoint, e.g. for MinIO.
	Endpoint string
	// DigitalOcean selects DigitalOcean Spaces for the endpoint and URLs.
	DigitalOcean bool
	// MaxSize is the per-file upload limit in bytes.
	MaxSize int64
	// MaxImages is the per-user object limit.
	MaxImages int
}

func (o *Options) setDefaults() {
	if o.MaxSize <= 0 {
		o.MaxSize = DefaultMaxSize
	}
	if o.MaxImages <= 0 {
		o.MaxImages = DefaultMaxImages
	}
}

// Store uploads and deletes images.
type Store struct {
	api  API
	opts Options
	now  func() time.Time
}

// New builds an S3 client from opts. Static credentials are used when
// given, otherwise the default AWS credential chain.
func New(ctx context.Context, opts Options) (*Store, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("images: bucket is required")
	}
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(opts.Region)}
	if opts.AccessKey != "" && opts.SecretKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	endpoint := opts.Endpoint
	if endpoint == "" && opts.DigitalOcean {
		endpoint = fmt.Sprintf("https://%s.digitaloceanspaces.com", opts.Region)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return NewWithClient(client, opts), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(api API, opts Options) *Store {
	opts.setDefaults()
	return &Store{api: api, opts: opts, now: time.Now}
}

// MaxSize returns the per-file limit in bytes.
func (s *Store) MaxSize() int64 { return s.opts.MaxSize }

// BaseURL is the public URL prefix of uploaded objects.
func (s *Store) BaseURL() string {
	if s.opts.DigitalOcean {
		return fmt.Sprintf("https://%s.%s.digitaloceanspaces.com", s.opts.Bucket, s.opts.Region)
	}
	return fmt.Sprintf("https://%s.s3.amazonaws.com", s.opts.Bucket)
}

// Ping checks that the bucket is reachable.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.opts.Bucket)})
	if err != nil {
		return fmt.Errorf("head bucket %s: %w", s.opts.Bucket, err)
	}
	return nil
}

// ReadLimited reads r fully, failing with CodeFileTooLarge once more than
// MaxSize bytes arrive.
func (s *Store) ReadLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, s.opts.MaxSize+1))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if int64(len(data)) > s.opts.MaxSize {
		return nil, apperrors.New(apperrors.CodeFileTooLarge,
			"File too large (max: %g megabytes)", float64(s.opts.MaxSize)/(1024*1024))
	}
	return data, nil
}

// Upload stores files for user and returns their public URLs. Every file is
// read and size-checked before anything is uploaded.
func (s *Store) Upload(ctx context.Context, user string, files []io.Reader) ([]string, error) {
	count, err := s.Count(ctx, user)
	if err != nil {
		return nil, err
	}
	if count+len(files) > s.opts.MaxImages {
		return nil, apperrors.New(apperrors.CodeImageLimit, "You cannot upload more than %d images", s.opts.MaxImages)
	}

	blobs := make([][]byte, len(files))
	for i, f := range files {
		if blobs[i], err = s.ReadLimited(f); err != nil {
			return nil, err
		}
	}

	urls := make([]string, 0, len(blobs))
	for _, data := range blobs {
		key := s.objectKey(user)
		_, err := s.api.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(s.opts.Bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(data),
			ContentType: aws.String(contentType),
			ACL:         types.ObjectCannedACLPublicRead,
		})
		if err != nil {
			return urls, fmt.Errorf("upload %s: %w", key, err)
		}
		urls = append(urls, s.BaseURL()+"/"+key)
	}
	return urls, nil
}

// Delete removes the objects behind urls. Keys are rebuilt under user so a
// caller cannot delete another user's objects.
func (s *Store) Delete(ctx context.Context, urls []string, user string) error {
	keys := make([]string, 0, len(urls))
	for _, u := range urls {
		_, _, name, err := ParseURL(u)
		if err != nil {
			return err
		}
		keys = append(keys, user+"/"+name)
	}
	return s.deleteKeys(ctx, keys)
}

// DeleteUser removes every object owned by user.
func (s *Store) DeleteUser(ctx context.Context, user string) error {
	keys, err := s.list(ctx, user)
	if err != nil {
		return err
	}
	return s.deleteKeys(ctx, keys)
}

// Count returns how many objects user owns.
func (s *Store) Count(ctx context.Context, user string) (int, error) {
	keys, err := s.list(ctx, user)
	return len(keys), err
}

// ValidateURL accepts only URLs that point into the configured bucket.
func (s *Store) ValidateURL(u string) error {
	if strings.TrimSpace(u) == "" {
		return apperrors.New(apperrors.CodeInvalidImageURL, "Image URL cannot be empty")
	}
	for _, prefix := range s.prefixes() {
		if strings.HasPrefix(u, prefix) {
			return nil
		}
	}
	return apperrors.New(apperrors.CodeInvalidImageURL, "You cannot use external image URLs")
}

func (s *Store) prefixes() []string {
	return []string{
		fmt.Sprintf("https://%s.s3.amazonaws.com/", s.opts.Bucket),
		fmt.Sprintf("https://%s.%s.digitaloceanspaces.com/", s.opts.Bucket, s.opts.Region),
	}
}

// ParseURL splits an image URL into bucket, user and file name.
func ParseURL(raw string) (bucket, user, name string, err error) {
	u, perr := url.Parse(raw)
	if perr != nil || u.Hostname() == "" {
		return "", "", "", apperrors.New(apperrors.CodeInvalidImageURL, "Invalid image URL: %s", raw)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", "", apperrors.New(apperrors.CodeInvalidImageURL, "Invalid image URL: %s", raw)
	}
	bucket, _, _ = strings.Cut(u.Hostname(), ".")
	return bucket, parts[0], parts[1], nil
}

func (s *Store) objectKey(user string) string {
	id := uuid.NewString()
	return fmt.Sprintf("%s/%s-%s.png", user, s.now().UTC().Format(timestampLayout), id[:8])
}

func (s *Store) list(ctx context.Context, user string) ([]string, error) {
	p := s3.NewListObjectsV2Paginator(s.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.opts.Bucket),
		Prefix: aws.String(user + "/"),
	})
	var keys []string
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list images of %s: %w", user, err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys, nil
}

func (s *Store) deleteKeys(ctx context.Context, keys []string) error {
	// DeleteObjects accepts at most 1000 keys per call.
	for len(keys) > 0 {
		n := min(len(keys), 1000)
		objs := make([]types.ObjectIdentifier, n)
		for i, k := range keys[:n] {
			objs[i] = types.ObjectIdentifier{Key: aws.String(k)}
		}
		_, err := s.api.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.opts.Bucket),
			Delete: &types.Delete{Objects: objs, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return fmt.Errorf("delete images: %w", err)
		}
		keys = keys[n:]
	}
	return nil
}
