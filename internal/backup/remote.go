package backup

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/golang-jwt/jwt/v5"
)

// RemoteStore pushes and pulls backup snapshots to an S3/R2-compatible
// bucket, mirroring the pattern the ambient stack already uses for the
// filter-config fetch in internal/http/mw.
type RemoteStore struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewRemoteStore wraps an existing S3 client.
func NewRemoteStore(client *s3.Client, bucket, prefix string) *RemoteStore {
	return &RemoteStore{client: client, bucket: bucket, prefix: prefix}
}

// Push uploads a local snapshot file under the key prefix+basename.
func (r *RemoteStore) Push(ctx context.Context, localPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("opening snapshot for upload: %w", err)
	}
	defer f.Close()

	key := r.prefix + filepath.Base(localPath)
	_, err = r.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: &r.bucket,
		Key:    &key,
		Body:   f,
	})
	if err != nil {
		return fmt.Errorf("uploading snapshot: %w", err)
	}
	return nil
}

// Pull downloads a remote snapshot to localPath.
func (r *RemoteStore) Pull(ctx context.Context, remoteName, localPath string) error {
	key := r.prefix + remoteName
	out, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &r.bucket,
		Key:    &key,
	})
	if err != nil {
		return fmt.Errorf("downloading snapshot: %w", err)
	}
	defer out.Body.Close()

	f, err := os.Create(localPath)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := io.Copy(f, out.Body); err != nil {
		return fmt.Errorf("writing downloaded snapshot: %w", err)
	}
	return nil
}

// downloadClaims is the JWT payload signed into a time-limited backup
// download link.
type downloadClaims struct {
	SnapshotName string `json:"snapshot_name"`
	jwt.RegisteredClaims
}

// SignDownloadLink issues a short-lived JWT authorizing a download of
// snapshotName, for an HTTP handler to verify before streaming the file.
func SignDownloadLink(secret []byte, snapshotName string, ttl time.Duration) (string, error) {
	claims := downloadClaims{
		SnapshotName: snapshotName,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// VerifyDownloadLink validates a signed download token and returns the
// snapshot name it authorizes.
func VerifyDownloadLink(secret []byte, tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &downloadClaims{}, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("invalid download token: %w", err)
	}
	claims, ok := token.Claims.(*downloadClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("invalid download token claims")
	}
	return claims.SnapshotName, nil
}
