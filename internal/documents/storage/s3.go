package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	docerrors "travelbook/internal/documents/errors"
	"travelbook/pkg/config"
	"travelbook/pkg/model"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

const pdfContentType = "application/pdf"

// S3API is the subset of the S3 client the storage uses.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

type Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

type s3Storage struct {
	client     S3API
	presigner  Presigner
	bucket     string
	prefix     string
	presignTTL time.Duration
}

func NewS3Storage(ctx context.Context, cfg *config.Config) (Storage, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.S3Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg)
	return NewS3StorageWithClient(client, s3.NewPresignClient(client), cfg.S3Bucket, cfg.S3Prefix, cfg.S3PresignTTL), nil
}

func NewS3StorageWithClient(client S3API, presigner Presigner, bucket, prefix string, presignTTL time.Duration) Storage {
	return &s3Storage{
		client:     client,
		presigner:  presigner,
		bucket:     bucket,
		prefix:     strings.Trim(prefix, "/"),
		presignTTL: presignTTL,
	}
}

func (s *s3Storage) key(owner, name string) string {
	return path.Join(s.prefix, owner, name)
}

func (s *s3Storage) ownerPrefix(owner string) string {
	return path.Join(s.prefix, owner) + "/"
}

// Save uses a conditional put so two uploads racing for the same name never
// overwrite each other. Retrying under a new name needs a seekable body.
func (s *s3Storage) Save(ctx context.Context, owner, name string, body io.Reader, size int64) (*model.Document, error) {
	if err := checkOwner(owner); err != nil {
		return nil, err
	}
	if err := CheckName(name); err != nil {
		return nil, err
	}

	seeker, _ := body.(io.ReadSeeker)

	for n := 0; n < maxNameAttempts; n++ {
		final := candidateName(name, n)

		exists, err := s.exists(ctx, s.key(owner, final))
		if err != nil {
			return nil, err
		}
		if exists {
			continue
		}

		if seeker != nil {
			if _, err := seeker.Seek(0, io.SeekStart); err != nil {
				return nil, fmt.Errorf("failed to rewind document body: %w", err)
			}
		}

		_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(s.bucket),
			Key:           aws.String(s.key(owner, final)),
			Body:          body,
			ContentLength: aws.Int64(size),
			ContentType:   aws.String(pdfContentType),
			IfNoneMatch:   aws.String("*"),
		})
		if isPreconditionFailed(err) {
			if seeker == nil {
				return nil, fmt.Errorf("document name %s was taken concurrently", final)
			}
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to put document: %w", err)
		}

		return &model.Document{
			Name:       final,
			Size:       size,
			UploadedAt: time.Now().UTC(),
			URL:        ViewURL(final),
		}, nil
	}
	return nil, fmt.Errorf("failed to find a free name for %s", name)
}

func (s *s3Storage) List(ctx context.Context, owner string) ([]model.Document, error) {
	if err := checkOwner(owner); err != nil {
		return nil, err
	}

	prefix := s.ownerPrefix(owner)
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})

	docs := []model.Document{}
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list documents: %w", err)
		}
		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), prefix)
			if CheckName(name) != nil {
				continue
			}
			docs = append(docs, model.Document{
				Name:       name,
				Size:       aws.ToInt64(obj.Size),
				UploadedAt: aws.ToTime(obj.LastModified).UTC(),
				URL:        ViewURL(name),
			})
		}
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Name < docs[j].Name })
	return docs, nil
}

func (s *s3Storage) Open(ctx context.Context, owner, name string) (*Object, error) {
	if err := checkOwner(owner); err != nil {
		return nil, err
	}
	if err := CheckName(name); err != nil {
		return nil, err
	}

	key := s.key(owner, name)
	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if isNotFound(err) {
		return nil, docerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat document: %w", err)
	}

	presigned, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket:                     aws.String(s.bucket),
		Key:                        aws.String(key),
		ResponseContentType:        aws.String(pdfContentType),
		ResponseContentDisposition: aws.String("inline"),
	}, func(po *s3.PresignOptions) {
		po.Expires = s.presignTTL
	})
	if err != nil {
		return nil, fmt.Errorf("failed to presign document URL: %w", err)
	}

	return &Object{
		Document: model.Document{
			Name:       name,
			Size:       aws.ToInt64(head.ContentLength),
			UploadedAt: aws.ToTime(head.LastModified).UTC(),
			URL:        ViewURL(name),
		},
		RedirectURL: presigned.URL,
	}, nil
}

func (s *s3Storage) exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("failed to check document: %w", err)
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	var notFound *types.NotFound
	var noKey *types.NoSuchKey
	return errors.As(err, &notFound) || errors.As(err, &noKey)
}

func isPreconditionFailed(err error) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "PreconditionFailed"
}
