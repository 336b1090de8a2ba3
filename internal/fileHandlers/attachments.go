package fileHandlers

import (
	"crypto/rand"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/oklog/ulid/v2"
)

var allowedAttachmentTypes = []string{
	"image/png",
	"image/jpeg",
	"image/gif",
	"image/webp",
	"application/pdf",
}

// HandleAttachment stores a message attachment. The type is detected from the
// content, the file name and declared type are ignored.
func HandleAttachment(r *http.Request) (string, error) {
	data, err := readFormFile(r, "file", MaxAttachmentSize)
	if err != nil {
		return "", err
	}

	mtype := mimetype.Detect(data)
	if !mimetype.EqualsAny(mtype.String(), allowedAttachmentTypes...) {
		sugar.Debugf("Rejected attachment of type %s", mtype.String())
		return "", ErrUnsupportedType
	}

	id := ulid.MustNew(ulid.Now(), rand.Reader)
	key := "attachments/" + strings.ToLower(id.String()) + mtype.Extension()

	return backend.Put(r.Context(), key, mtype.String(), data)
}
