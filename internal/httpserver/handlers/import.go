package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/MrSnakeDoc/smartmarks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/smartmarks/internal/logger"
	"github.com/MrSnakeDoc/smartmarks/internal/utils"
	"github.com/MrSnakeDoc/smartmarks/internal/view"
)

var errBadUpload = errors.New("bad upload")

// multipartSlack covers form fields and part headers around the file.
const multipartSlack = 64 << 10

// ImportBookmarks accepts a homepage bookmarks.yaml either as the "file"
// part of a multipart form or as a raw YAML body (view_id then comes from
// the query string).
func ImportBookmarks(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if limit := importLimit(d); limit > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, limit+multipartSlack)
		}

		mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
		var (
			src     io.ReadCloser
			readErr error
		)
		switch mediaType {
		case "multipart/form-data":
			if err := r.ParseMultipartForm(multipartSlack); err != nil {
				readErr = fmt.Errorf("%w: %w", errBadUpload, err)
				break
			}
			f, _, err := r.FormFile("file")
			if err != nil {
				readErr = fmt.Errorf("%w: missing file: %w", errBadUpload, err)
				break
			}
			src = f
		case "application/yaml", "application/x-yaml", "text/yaml", "text/plain", "":
			src = r.Body
		default:
			readErr = fmt.Errorf("%w: unsupported content type %q", errBadUpload, mediaType)
		}
		if src != nil {
			defer utils.CloseLogged(src, "import upload", d.Logger)
		}

		dispatch(w, r, d, func(ctx context.Context, v *view.BookmarkView, _ bool) error {
			if readErr != nil {
				v.RejectImport(readErr)
				return readErr
			}
			cfg, err := d.Importer.Load(src)
			if err != nil {
				v.RejectImport(err)
				return fmt.Errorf("%w: %w", errBadUpload, err)
			}
			drafts, err := d.Mapper.MapDrafts(cfg)
			if err != nil {
				v.RejectImport(err)
				return err
			}

			res, err := v.Import(ctx, drafts)
			if err != nil {
				return err
			}
			d.Logger.Info("bookmarks imported",
				logger.Int("inserted", len(res.Inserted)),
				logger.Int("skipped", res.Skipped),
			)
			return nil
		})
	}
}

func importLimit(d deps.Deps) int64 {
	if d.Importer == nil {
		return 0
	}
	return d.Importer.MaxBytes()
}
