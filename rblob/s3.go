package rblob

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"gocloud.dev/blob/s3blob"
)

// OpenS3Bucket opens and returns a s3 bucket for the provided client and bucket name.
// See OpenBucket which can also open s3 bucket urls, but obtains the AWS config from the
// environment.
func OpenS3Bucket(ctx context.Context, label string, client *s3.Client, name string,
	opts ...Option,
) (*Bucket, error) {
	bucket, err := s3blob.OpenBucketV2(ctx, client, name, nil)
	if err != nil {
		return nil, err
	}

	return NewBucket(label, bucket, opts...), nil
}
