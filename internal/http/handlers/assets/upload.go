package assets

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/princekumarofficial/catalog-service/internal/blobstore"
)

// form is a parsed multipart asset form. Text fields that were not sent are
// nil, files that were not sent are nil.
type form struct {
	fields map[string]*string
	files  map[blobstore.Slot]*blobstore.Payload
	log    *zap.Logger
}

func (f *form) field(name string) *string { return f.fields[name] }

func (f *form) release() {
	for slot, p := range f.files {
		if err := p.Release(); err != nil {
			f.log.Warn("failed to remove spooled upload", zap.String("slot", string(slot)), zap.String("path", p.Path), zap.Error(err))
		}
	}
}

// readForm streams the multipart body, spooling the video and thumbnail
// parts to temp files. Each file is cut off one byte past its ceiling so
// oversized parts fail validation without being stored in full.
func (h *AssetHandlers) readForm(w http.ResponseWriter, r *http.Request) (*form, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.limits.MaxVideoSize+h.limits.MaxThumbnailSize+(1<<20))

	mr, err := r.MultipartReader()
	if err != nil {
		return nil, fmt.Errorf("expected multipart/form-data: %w", err)
	}

	f := &form{
		fields: make(map[string]*string),
		files:  make(map[blobstore.Slot]*blobstore.Payload),
		log:    h.log,
	}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return f, nil
		}
		if err != nil {
			f.release()
			return nil, fmt.Errorf("read form: %w", err)
		}

		name := part.FormName()
		switch {
		case name == string(blobstore.SlotVideo) || name == string(blobstore.SlotThumbnail):
			slot := blobstore.Slot(name)
			if _, dup := f.files[slot]; dup {
				part.Close()
				f.release()
				return nil, fmt.Errorf("%s sent more than once", name)
			}
			ceiling := h.limits.MaxVideoSize
			if slot == blobstore.SlotThumbnail {
				ceiling = h.limits.MaxThumbnailSize
			}
			p, err := h.spool(part, ceiling)
			part.Close()
			if err != nil {
				f.release()
				return nil, err
			}
			f.files[slot] = p

		case part.FileName() == "":
			value, err := io.ReadAll(io.LimitReader(part, 64<<10))
			part.Close()
			if err != nil {
				f.release()
				return nil, fmt.Errorf("read field %s: %w", name, err)
			}
			v := string(value)
			f.fields[name] = &v

		default:
			part.Close()
		}
	}
}

func (h *AssetHandlers) spool(part *multipart.Part, ceiling int64) (*blobstore.Payload, error) {
	tmp, err := os.CreateTemp("", "asset-upload-*")
	if err != nil {
		return nil, fmt.Errorf("spool %s: %w", part.FormName(), err)
	}
	p := &blobstore.Payload{Path: tmp.Name(), Filename: part.FileName()}

	n, err := io.Copy(tmp, io.LimitReader(part, ceiling+1))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		if rerr := p.Release(); rerr != nil {
			h.log.Warn("failed to remove spooled upload", zap.String("path", p.Path), zap.Error(rerr))
		}
		return nil, fmt.Errorf("spool %s: %w", part.FormName(), err)
	}
	p.Size = n
	p.ContentType = contentType(part.Header.Get("Content-Type"), p.Path)
	return p, nil
}

// contentType trusts a specific declared type and sniffs the file when the
// client sent nothing useful.
func contentType(declared, path string) string {
	if mt, _, err := mime.ParseMediaType(declared); err == nil && mt != "application/octet-stream" {
		return strings.ToLower(mt)
	}
	detected, err := mimetype.DetectFile(path)
	if err != nil {
		return "application/octet-stream"
	}
	mt, _, _ := mime.ParseMediaType(detected.String())
	return mt
}
