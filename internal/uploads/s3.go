package uploads

import (
	"context"
	"fmt"
	"log/slog"
	"mime/multipart"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Store uploads objects under the "uploads/" key prefix and returns
// PublicURL/key. PublicURL is typically a CloudFront distribution.
type S3Store struct {
	client    *s3.Client
	bucket    string
	publicURL string
}

func NewS3Store(ctx context.Context, bucket, region, publicURL string) (*S3Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS config for S3: %w", err)
	}
	if publicURL == "" {
		publicURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", bucket, region)
	}
	slog.Info("s3 upload store configured", "bucket", bucket, "region", region)
	return &S3Store{
		client:    s3.NewFromConfig(cfg),
		bucket:    bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
	}, nil
}

func (s *S3Store) Save(ctx context.Context, fh *multipart.FileHeader, prefix string) (string, error) {
	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open upload: %w", err)
	}
	defer src.Close()

	key := "uploads/" + objectName(fh, prefix)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          src,
		ContentLength: aws.Int64(fh.Size),
		ContentType:   aws.String(fh.Header.Get("Content-Type")),
		ACL:           s3types.ObjectCannedACLPublicRead,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}

	return s.publicURL + "/" + key, nil
}

func (s *S3Store) Remove(ctx context.Context, url string) error {
	key := strings.TrimPrefix(url, s.publicURL+"/")
	if key == url {
		return fmt.Errorf("not an object of this bucket: %s", url)
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	return err
}
