package utils

import (
	"errors"
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

// MaxAvatarBytes caps profile picture uploads.
const MaxAvatarBytes = 5 << 20

var avatarExtensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
}

var ErrUnsupportedImage = errors.New("profile picture must be a PNG, JPEG or WebP image")

// AvatarExtension validates an upload and returns the extension to store it under.
func AvatarExtension(fileHeader *multipart.FileHeader) (string, error) {
	if fileHeader.Size <= 0 || fileHeader.Size > MaxAvatarBytes {
		return "", fmt.Errorf("profile picture must be between 1 byte and %d MB", MaxAvatarBytes>>20)
	}
	contentType := strings.ToLower(strings.TrimSpace(strings.Split(fileHeader.Header.Get("Content-Type"), ";")[0]))
	ext, ok := avatarExtensions[contentType]
	if !ok {
		return "", ErrUnsupportedImage
	}
	return ext, nil
}

// AvatarObjectKey builds a unique, URL-safe object key such as
// "avatars/<user>/<uuid>-my-photo.png".
func AvatarObjectKey(userID, filename, ext string) string {
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	name := slug.Make(base)
	if name == "" || name == "." {
		name = "avatar"
	}
	return fmt.Sprintf("avatars/%s/%s-%s%s", slug.Make(userID), uuid.NewString(), name, ext)
}
