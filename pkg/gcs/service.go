package gcs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
)

// GCSClient stores synthesized speech clips so the telephony gateway can
// fetch them over plain HTTPS.
type GCSClient struct {
	client     *storage.Client
	bucketName string
}

func NewGCSClient(ctx context.Context, bucketName string) (*GCSClient, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create gcs client: %w", err)
	}

	return &GCSClient{
		client:     client,
		bucketName: bucketName,
	}, nil
}

// UploadAudio writes an audio clip and returns its public URL.
func (g *GCSClient) UploadAudio(ctx context.Context, objectPath, contentType string, audio []byte) (string, error) {
	obj := g.client.Bucket(g.bucketName).Object(objectPath)

	writer := obj.NewWriter(ctx)
	writer.ContentType = contentType
	writer.CacheControl = "public, max-age=86400"
	if _, err := io.Copy(writer, bytes.NewReader(audio)); err != nil {
		return "", fmt.Errorf("failed to copy content: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to close writer: %w", err)
	}

	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", g.bucketName, objectPath), nil
}

// Delete removes a previously uploaded object. URLs in the
// https://storage.googleapis.com/<bucket>/<path> form are accepted.
func (g *GCSClient) Delete(ctx context.Context, publicURL string) error {
	const prefix = "https://storage.googleapis.com/"
	if !strings.HasPrefix(publicURL, prefix) {
		return fmt.Errorf("invalid storage URL: %s", publicURL)
	}

	rest := strings.TrimPrefix(publicURL, prefix)
	slashIndex := strings.Index(rest, "/")
	if slashIndex == -1 {
		return fmt.Errorf("storage URL has no object path: %s", publicURL)
	}

	bucketName := rest[:slashIndex]
	objectPath := rest[slashIndex+1:]

	obj := g.client.Bucket(bucketName).Object(objectPath)
	if err := obj.Delete(ctx); err != nil {
		if err == storage.ErrObjectNotExist {
			return nil
		}
		return fmt.Errorf("failed to delete object: %w", err)
	}

	return nil
}
