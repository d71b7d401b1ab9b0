package s3

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"

	"github.com/charmbracelet/log"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ErrNoSuchKey is returned by Conn.Get when the object does not exist.
var ErrNoSuchKey = stderrors.New("no such key")

/*
Objects is the slice of an object storage client the task store needs.
*/
type Objects interface {
	Get(ctx context.Context, bucket, key string) ([]byte, error)
	Put(ctx context.Context, bucket, key string, body []byte) error
}

/*
ConnConfig holds the connection settings for an S3 compatible endpoint.
*/
type ConnConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

/*
Conn wraps a MinIO client.
*/
type Conn struct {
	client *minio.Client
}

var _ Objects = (*Conn)(nil)

/*
NewConn connects to the endpoint. No request is made until first use.
*/
func NewConn(config ConnConfig) (*Conn, error) {
	client, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKey, config.SecretKey, ""),
		Secure: config.UseSSL,
	})

	if err != nil {
		return nil, err
	}

	return &Conn{client: client}, nil
}

/*
EnsureBucket creates the bucket when it does not exist yet.
*/
func (conn *Conn) EnsureBucket(ctx context.Context, bucket string) error {
	exists, err := conn.client.BucketExists(ctx, bucket)

	if err != nil {
		return err
	}

	if exists {
		return nil
	}

	log.Info("creating bucket", "bucket", bucket)

	return conn.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{})
}

func (conn *Conn) Get(
	ctx context.Context, bucket, key string,
) ([]byte, error) {
	obj, err := conn.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})

	if err != nil {
		return nil, mapError(err)
	}

	defer obj.Close()

	buf, err := io.ReadAll(obj)

	if err != nil {
		return nil, mapError(err)
	}

	return buf, nil
}

func (conn *Conn) Put(
	ctx context.Context, bucket, key string, body []byte,
) error {
	_, err := conn.client.PutObject(
		ctx, bucket, key, bytes.NewReader(body), int64(len(body)),
		minio.PutObjectOptions{ContentType: "application/json"},
	)

	return err
}

func mapError(err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return ErrNoSuchKey
	}

	return err
}
