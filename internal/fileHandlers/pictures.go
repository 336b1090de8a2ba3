package fileHandlers

import (
	"bytes"
	"concord-backend/internal/storage"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os/exec"

	"go.uber.org/zap"
)

const (
	MaxPictureSize    = 8 << 20
	MaxAttachmentSize = 4 << 20
)

var (
	ErrMissingFile     = errors.New("no file was uploaded")
	ErrTooLarge        = errors.New("file is too large")
	ErrUnsupportedType = errors.New("file type isn't supported")
)

var sugar *zap.SugaredLogger
var backend storage.Backend

func Setup(_sugar *zap.SugaredLogger, _backend storage.Backend) {
	sugar = _sugar
	backend = _backend
}

// readFormFile reads at most limit bytes of the multipart field.
func readFormFile(r *http.Request, field string, limit int64) ([]byte, error) {
	formFile, _, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, multipart.ErrMessageTooLarge) {
		return nil, ErrMissingFile
	} else if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingFile, err)
	}
	defer func() {
		err := formFile.Close()
		if err != nil {
			sugar.Debug(err)
		}
	}()

	data, err := io.ReadAll(io.LimitReader(formFile, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, ErrTooLarge
	}
	return data, nil
}

// HandleAvatarPicture crops the uploaded picture to a square 256x256 webp and
// stores it under its hash, so the same picture is only kept once.
func HandleAvatarPicture(r *http.Request) (string, error) {
	inputBytes, err := readFormFile(r, "picture", MaxPictureSize)
	if err != nil {
		return "", err
	}

	resultBytes, err := convertAvatar(r.Context(), inputBytes)
	if err != nil {
		return "", err
	}

	// use the hash for filename
	hash := sha256.Sum256(resultBytes)
	key := "avatars/" + hex.EncodeToString(hash[:]) + ".webp"

	return backend.Put(r.Context(), key, "image/webp", resultBytes)
}

func convertAvatar(ctx context.Context, inputBytes []byte) ([]byte, error) {
	cmd := exec.CommandContext(
		ctx,
		"ffmpeg",
		"-i", "pipe:0",
		"-vf", "crop=min(iw\\,ih):min(iw\\,ih):(iw-min(iw\\,ih))/2:(ih-min(iw\\,ih))/2,scale=256:256",
		"-vframes", "1",
		"-c:v", "libwebp",
		"-quality", "50",
		"-preset", "default",
		"-f", "webp",
		"pipe:1",
	)

	cmd.Stdin = bytes.NewReader(inputBytes)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		sugar.Debugf("ffmpeg: %s", stderr.String())
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedType, err)
	}

	if stdout.Len() == 0 {
		return nil, ErrUnsupportedType
	}
	return stdout.Bytes(), nil
}
