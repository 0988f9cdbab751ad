package storage

import (
	"bytes"
	"context"
	"log/slog"
	"net/url"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/khaledhikmat/lens-go/service/config"
	"github.com/khaledhikmat/lens-go/service/lgr"
	"golang.org/x/xerrors"
)

// PutObjectAPI is the slice of the S3 client the service needs.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type s3Service struct {
	CfgSvc config.IService
	client PutObjectAPI
}

// NewS3 builds one S3 client from the default credential chain. The SDK
// caches and refreshes temporary credentials, so the client is reused
// across uploads.
func NewS3(ctx context.Context, cfgSvc config.IService) (IService, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfgSvc.GetS3Region()))
	if err != nil {
		return nil, xerrors.Errorf("error loading aws config: %w", err)
	}

	return NewS3WithClient(cfgSvc, s3.NewFromConfig(awsCfg)), nil
}

func NewS3WithClient(cfgSvc config.IService, client PutObjectAPI) IService {
	return &s3Service{
		CfgSvc: cfgSvc,
		client: client,
	}
}

func (svc *s3Service) StoreFile(ctx context.Context, key string, data []byte) (string, error) {
	bucket := svc.CfgSvc.GetS3Bucket()

	_, err := svc.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ACL:         types.ObjectCannedACLPublicRead,
		ContentType: aws.String("image/jpeg"),
	})
	if err != nil {
		return "", xerrors.Errorf("error putting s3://%s/%s: %w", bucket, key, err)
	}

	lgr.Logger.Debug(
		"object stored",
		slog.String("bucket", bucket),
		slog.String("key", key),
		slog.Int("size", len(data)),
	)

	return PublicURL(bucket, key), nil
}

// PublicURL is the path-style URL of a public-read object.
func PublicURL(bucket, key string) string {
	u := url.URL{
		Scheme: "https",
		Host:   "s3.amazonaws.com",
		Path:   "/" + bucket + "/" + key,
	}
	return u.String()
}
