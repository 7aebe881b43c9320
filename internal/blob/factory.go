package blob

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// Open selects a blob.Store implementation using environment variables.
//
//	FALKEN_BLOB_DRIVER: fs|s3|memory (default fs)
//	FALKEN_BLOB_FS_ROOT: directory root when driver=fs (default ./falken-artifacts)
//	FALKEN_BLOB_S3_BUCKET: bucket when driver=s3 (required)
//	FALKEN_BLOB_S3_REGION: region (default us-east-1)
//	FALKEN_BLOB_S3_ENDPOINT: custom endpoint, e.g. MinIO
//	FALKEN_BLOB_S3_PATH_STYLE: true|false
func Open(ctx context.Context) (Store, error) {
	driver := os.Getenv("FALKEN_BLOB_DRIVER")
	if driver == "" {
		driver = string(DriverFilesystem)
	}
	switch Driver(driver) {
	case DriverFilesystem:
		return NewFilesystem(os.Getenv("FALKEN_BLOB_FS_ROOT"))
	case DriverS3:
		cfg, err := s3ConfigFromEnv()
		if err != nil {
			return nil, err
		}
		return NewS3(ctx, cfg)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}

func s3ConfigFromEnv() (S3Config, error) {
	bucket := os.Getenv("FALKEN_BLOB_S3_BUCKET")
	if bucket == "" {
		return S3Config{}, fmt.Errorf("FALKEN_BLOB_S3_BUCKET required for s3 driver")
	}
	return S3Config{
		Bucket:    bucket,
		Region:    os.Getenv("FALKEN_BLOB_S3_REGION"),
		Endpoint:  os.Getenv("FALKEN_BLOB_S3_ENDPOINT"),
		PathStyle: strings.EqualFold(os.Getenv("FALKEN_BLOB_S3_PATH_STYLE"), "true"),
	}, nil
}
