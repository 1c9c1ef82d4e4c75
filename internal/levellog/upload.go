package levellog

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// uploadTimeout bounds a single upload.
const uploadTimeout = 5 * time.Minute

// uploadQueueSize is the number of closed files waiting for upload.
const uploadQueueSize = 16

// S3Config holds S3-compatible storage configuration.
type S3Config struct {
	Endpoint        string // custom S3 endpoint (empty for AWS)
	Bucket          string
	Prefix          string // key prefix, e.g. "studio-a/"
	AccessKeyID     string
	SecretAccessKey string
	// RemoveLocal deletes files after a successful upload.
	RemoveLocal bool
}

// IsConfigured returns true if S3 settings are configured.
func (c *S3Config) IsConfigured() bool {
	return c.Bucket != "" && c.AccessKeyID != "" && c.SecretAccessKey != ""
}

// objectPutter is the subset of the S3 client used for uploads.
type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// createS3Client creates an S3 client with the given configuration.
func createS3Client(cfg *S3Config) *s3.Client {
	creds := credentials.NewStaticCredentialsProvider(
		cfg.AccessKeyID,
		cfg.SecretAccessKey,
		"",
	)

	options := []func(*s3.Options){
		func(o *s3.Options) {
			o.Credentials = creds
			o.Region = "auto"
		},
	}

	if cfg.Endpoint != "" {
		options = append(options, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	return s3.New(s3.Options{}, options...)
}

// Uploader copies closed log files to S3 on a background worker.
type Uploader struct {
	client      objectPutter
	bucket      string
	prefix      string
	removeLocal bool

	queue    chan string
	stopCh   chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewUploader creates an uploader for cfg and starts its worker.
func NewUploader(cfg *S3Config) (*Uploader, error) {
	if !cfg.IsConfigured() {
		return nil, errors.New("S3 is not configured")
	}
	return newUploader(createS3Client(cfg), cfg), nil
}

func newUploader(client objectPutter, cfg *S3Config) *Uploader {
	u := &Uploader{
		client:      client,
		bucket:      cfg.Bucket,
		prefix:      cfg.Prefix,
		removeLocal: cfg.RemoveLocal,
		queue:       make(chan string, uploadQueueSize),
		stopCh:      make(chan struct{}),
	}
	u.wg.Add(1)
	go u.worker()
	return u
}

// Enqueue schedules path for upload. Files are dropped when the queue is full.
func (u *Uploader) Enqueue(p string) {
	select {
	case u.queue <- p:
		slog.Info("queued level log for upload", "file", filepath.Base(p))
	default:
		slog.Warn("upload queue full, keeping level log locally", "file", filepath.Base(p))
	}
}

// worker processes the upload queue, draining remaining items on shutdown.
func (u *Uploader) worker() {
	defer u.wg.Done()

	for {
		select {
		case <-u.stopCh:
			for {
				select {
				case p := <-u.queue:
					u.upload(p)
				default:
					return
				}
			}
		case p := <-u.queue:
			u.upload(p)
		}
	}
}

func (u *Uploader) upload(localPath string) {
	key := path.Join(u.prefix, filepath.Base(localPath))
	if err := u.put(localPath, key); err != nil {
		slog.Error("upload failed", "s3_key", key, "error", err)
		return
	}

	slog.Info("upload completed", "s3_key", key)

	if u.removeLocal {
		if err := os.Remove(localPath); err != nil {
			slog.Warn("failed to delete level log after upload", "file", localPath, "error", err)
		}
	}
}

func (u *Uploader) put(localPath, key string) error {
	ctx, cancel := context.WithTimeoutCause(
		context.Background(),
		uploadTimeout,
		errors.New("s3 upload timeout"),
	)
	defer cancel()

	file, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := file.Close(); err != nil {
			slog.Warn("failed to close level log after upload", "file", localPath, "error", err)
		}
	}()

	info, err := file.Stat()
	if err != nil {
		return err
	}

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		Body:          file,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String("application/x-ndjson"),
	})
	return err
}

// Close uploads everything still queued and stops the worker.
func (u *Uploader) Close() error {
	u.stopOnce.Do(func() {
		close(u.stopCh)
	})
	u.wg.Wait()
	return nil
}
