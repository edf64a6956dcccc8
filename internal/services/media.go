package services

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
)

const BucketGenerated = "generated"

func EnsureStoragePath(base string, bucket string) (string, error) {
	path := filepath.Join(base, bucket)
	if err := os.MkdirAll(path, 0755); err != nil {
		return "", err
	}
	return path, nil
}

// SaveGeneratedImage writes png bytes for assetID and returns the file path
// and its sha256. The write goes through a temp file so readers never see a
// partial image.
func SaveGeneratedImage(basePath, assetID string, data []byte) (string, string, error) {
	if len(data) == 0 {
		return "", "", ErrBadRequest("image is empty")
	}
	bucketPath, err := EnsureStoragePath(basePath, BucketGenerated)
	if err != nil {
		return "", "", err
	}
	target := filepath.Join(bucketPath, safeFileName(assetID)+".png")
	tmp, err := os.CreateTemp(bucketPath, ".upload-*")
	if err != nil {
		return "", "", err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", "", err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", "", err
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		_ = os.Remove(tmp.Name())
		return "", "", err
	}
	sum := sha256.Sum256(data)
	return target, hex.EncodeToString(sum[:]), nil
}

func GeneratedImagePath(basePath, assetID string) string {
	return filepath.Join(basePath, BucketGenerated, safeFileName(assetID)+".png")
}

func BuildGeneratedURL(assetID string) string {
	return "/api/media/generated/" + assetID
}

// safeFileName keeps asset ids from escaping the storage directory.
func safeFileName(id string) string {
	id = strings.ReplaceAll(id, "..", "")
	return strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == 0 {
			return '_'
		}
		return r
	}, id)
}
