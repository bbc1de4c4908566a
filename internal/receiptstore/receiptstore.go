package receiptstore

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned by Get and Delete for unknown keys.
	ErrNotFound = errors.New("receipt not found")
	// ErrInvalidKey is returned for keys NewKey could not have produced.
	ErrInvalidKey = errors.New("invalid receipt key")
)

// ReceiptStore archives uploaded receipt images.
type ReceiptStore interface {
	Save(ctx context.Context, owner, mimeType string, r io.Reader) (storageKey string, err error)
	Get(ctx context.Context, storageKey string) (io.ReadCloser, string, error)
	Delete(ctx context.Context, storageKey string) error
}

// Keys have the form "<owner>.<uuid><ext>", where owner is the unpadded
// base64url encoding of the owning user id. The encoding never contains '.',
// so the owner of a key is recovered exactly and distinct users never share
// a prefix.
var ownerEncoding = base64.RawURLEncoding

// NewKey builds a unique flat storage key owned by owner.
func NewKey(owner, mimeType string) string {
	return OwnerPrefix(owner) + uuid.NewString() + MimeTypeToExt(mimeType)
}

// OwnerPrefix is the leading part of every key owned by owner.
func OwnerPrefix(owner string) string {
	return ownerEncoding.EncodeToString([]byte(owner)) + "."
}

// ParseKey splits a key produced by NewKey into its owner and file name.
// It reports false for anything NewKey could not have produced.
func ParseKey(key string) (owner, name string, ok bool) {
	enc, name, found := strings.Cut(key, ".")
	if !found {
		return "", "", false
	}
	raw, err := ownerEncoding.DecodeString(enc)
	if err != nil {
		return "", "", false
	}
	id, ext, found := strings.Cut(name, ".")
	if !found || len(id) != 36 || uuid.Validate(id) != nil {
		return "", "", false
	}
	if MimeTypeToExt(ExtToMimeType(name)) != "."+ext {
		return "", "", false
	}
	return string(raw), name, true
}

// OwnedBy reports whether key was issued to owner.
func OwnedBy(key, owner string) bool {
	got, _, ok := ParseKey(key)
	return ok && got == owner
}

func MimeTypeToExt(mimeType string) string {
	switch mimeType {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}

func ExtToMimeType(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}
