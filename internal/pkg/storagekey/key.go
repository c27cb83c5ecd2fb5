// Package storagekey derives canonical object keys. Pure functions, no I/O.
package storagekey

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrEmptyFileName  = errors.New("file name is empty")
	ErrUnsafeFileName = errors.New("file name contains a path separator")
	ErrInvalidKey     = errors.New("storage key is not valid")
)

const (
	orgPrefix    = "orgs"
	thumbnailDir = "thumbnails"
	// Thumbnails are always re-encoded to a lossy raster format.
	thumbnailExt = ".jpg"
)

// ForUpload builds the canonical key for a new object:
//
//	orgs/{orgID}/[{uploaderID}/]{unixMillis}-{random}-{fileName}
//
// The random token makes the key unique with overwhelming probability even
// for identical inputs; once issued a key is never regenerated. Pass
// uploaderID 0 to omit the uploader segment. File names carrying path
// separators are rejected — callers sanitize display names, not keys.
func ForUpload(orgID int64, fileName string, uploaderID int64) (string, error) {
	if fileName == "" {
		return "", ErrEmptyFileName
	}
	if strings.ContainsAny(fileName, "/\\") {
		return "", ErrUnsafeFileName
	}

	random := strings.SplitN(uuid.New().String(), "-", 2)[0]
	leaf := fmt.Sprintf("%d-%s-%s", time.Now().UnixMilli(), random, fileName)

	if uploaderID > 0 {
		return fmt.Sprintf("%s/%d/%d/%s", orgPrefix, orgID, uploaderID, leaf), nil
	}
	return fmt.Sprintf("%s/%d/%s", orgPrefix, orgID, leaf), nil
}

// ForThumbnail derives the thumbnail key for an original object key:
// a thumbnails/ directory is inserted before the leaf, the size label is
// appended and the extension is fixed to the thumbnail format.
//
//	orgs/1/42/170...-ab12-cat.png + "small" -> orgs/1/42/thumbnails/170...-ab12-cat-small.jpg
//
// Deterministic: identical inputs always derive the identical key, so
// regeneration is idempotent.
func ForThumbnail(originalKey, sizeLabel string) (string, error) {
	if originalKey == "" || sizeLabel == "" {
		return "", ErrInvalidKey
	}

	dir, leaf := splitKey(originalKey)
	if leaf == "" {
		return "", ErrInvalidKey
	}

	if ext := extension(leaf); ext != "" {
		leaf = strings.TrimSuffix(leaf, ext)
	}
	leaf = fmt.Sprintf("%s-%s%s", leaf, sizeLabel, thumbnailExt)

	if dir == "" {
		return thumbnailDir + "/" + leaf, nil
	}
	return dir + "/" + thumbnailDir + "/" + leaf, nil
}

// BelongsTo reports whether a key lives inside an organization's namespace.
// Handlers use it to reject operations on foreign keys before touching the
// backend.
func BelongsTo(key string, orgID int64) bool {
	return strings.HasPrefix(key, fmt.Sprintf("%s/%d/", orgPrefix, orgID))
}

func splitKey(key string) (dir, leaf string) {
	idx := strings.LastIndex(key, "/")
	if idx < 0 {
		return "", key
	}
	return key[:idx], key[idx+1:]
}

func extension(leaf string) string {
	idx := strings.LastIndex(leaf, ".")
	if idx <= 0 {
		return ""
	}
	return leaf[idx:]
}
