package fileHandlers

import (
	"bytes"
	"concord-backend/internal/storage"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// smallest valid png, 1x1 transparent pixel
var pngBytes = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0d, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

func setupLocal(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	Setup(zap.NewNop().Sugar(), storage.NewLocal(dir, "/cdn"))
	return dir
}

func uploadRequest(t *testing.T, field string, name string, data []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile(field, name)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	r := httptest.NewRequest(http.MethodPost, "/api/upload/attachment", &body)
	r.Header.Set("Content-Type", writer.FormDataContentType())
	return r
}

func TestHandleAttachment(t *testing.T) {
	dir := setupLocal(t)

	url, err := HandleAttachment(uploadRequest(t, "file", "pixel.txt", pngBytes))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "/cdn/attachments/"), url)
	assert.True(t, strings.HasSuffix(url, ".png"), url)

	stored, err := os.ReadFile(filepath.Join(dir, strings.TrimPrefix(url, "/cdn/")))
	require.NoError(t, err)
	assert.Equal(t, pngBytes, stored)
}

func TestHandleAttachmentRejects(t *testing.T) {
	setupLocal(t)

	tests := []struct {
		name    string
		request *http.Request
		err     error
	}{
		{
			name:    "Error: html file",
			request: uploadRequest(t, "file", "page.png", []byte("<html><script>alert(1)</script></html>")),
			err:     ErrUnsupportedType,
		},
		{
			name:    "Error: too large",
			request: uploadRequest(t, "file", "big.png", append(append([]byte{}, pngBytes...), make([]byte, MaxAttachmentSize)...)),
			err:     ErrTooLarge,
		},
		{
			name:    "Error: wrong field",
			request: uploadRequest(t, "picture", "pixel.png", pngBytes),
			err:     ErrMissingFile,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := HandleAttachment(tc.request)
			assert.ErrorIs(t, err, tc.err)
		})
	}
}

func TestHandleAvatarPicture(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg isn't installed")
	}
	setupLocal(t)

	first, err := HandleAvatarPicture(uploadRequest(t, "picture", "pixel.png", pngBytes))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(first, "/cdn/avatars/"), first)
	assert.True(t, strings.HasSuffix(first, ".webp"), first)

	second, err := HandleAvatarPicture(uploadRequest(t, "picture", "pixel.png", pngBytes))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
