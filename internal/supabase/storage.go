package supabase

import (
	"bytes"
	"fmt"
	"net/http"

	storage "github.com/supabase-community/storage-go"
)

// StorageClient publishes paid artifacts (generated photos) to Supabase
// Storage so the download QR code on the completion screen has a public URL
// to point at.
type StorageClient struct {
	client  *storage.Client
	bucket  string
	baseURL string
}

func NewStorageClient(supabaseURL, serviceRoleKey, bucket string) (*StorageClient, error) {
	baseURL := supabaseURL
	if len(baseURL) > 0 && baseURL[len(baseURL)-1] == '/' {
		baseURL = baseURL[:len(baseURL)-1]
	}
	client := storage.NewClient(baseURL+"/storage/v1", serviceRoleKey, nil)

	return &StorageClient{
		client:  client,
		bucket:  bucket,
		baseURL: baseURL,
	}, nil
}

// ArtifactContentType sniffs the payload and returns its content type with
// a matching file extension. The generation backend returns JPEG, but the
// simulated capture fallback produces PNG, so the type cannot be assumed.
func ArtifactContentType(data []byte) (contentType, ext string) {
	contentType = http.DetectContentType(data)
	switch contentType {
	case "image/png":
		return contentType, ".png"
	case "image/jpeg":
		return contentType, ".jpg"
	default:
		return contentType, ".bin"
	}
}

// UploadArtifact stores one generated photo under its session and order and
// returns the storage path and public download URL.
func (s *StorageClient) UploadArtifact(sessionID, orderID string, data []byte) (string, string, error) {
	contentType, ext := ArtifactContentType(data)
	storagePath := fmt.Sprintf("sessions/%s/orders/%s%s", sessionID, orderID, ext)

	upsert := true
	_, err := s.client.UploadFile(s.bucket, storagePath, bytes.NewReader(data), storage.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to upload artifact: %w", err)
	}

	return storagePath, s.GetPublicURL(storagePath), nil
}

func (s *StorageClient) GetPublicURL(storagePath string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s",
		s.baseURL, s.bucket, storagePath)
}

func (s *StorageClient) DeleteArtifact(storagePath string) error {
	_, err := s.client.RemoveFile(s.bucket, []string{storagePath})
	return err
}

// DeleteSessionArtifacts removes everything published for one session.
func (s *StorageClient) DeleteSessionArtifacts(sessionID string) error {
	prefix := fmt.Sprintf("sessions/%s/", sessionID)

	files, err := s.client.ListFiles(s.bucket, prefix, storage.FileSearchOptions{
		Limit: 1000,
	})
	if err != nil {
		return fmt.Errorf("failed to list artifacts: %w", err)
	}

	if len(files) > 0 {
		filePaths := make([]string, len(files))
		for i, file := range files {
			filePaths[i] = file.Name
		}
		_, err = s.client.RemoveFile(s.bucket, filePaths)
		if err != nil {
			return fmt.Errorf("failed to delete artifacts: %w", err)
		}
	}

	return nil
}
