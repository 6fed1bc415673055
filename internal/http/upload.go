package httpapi

import (
	"errors"
	"mime/multipart"
	"net/http"

	"emmo-data/internal/domain"
)

// formFile reads the multipart field "file" from a body capped at maxBytes.
// The caller closes the returned file.
func formFile(w http.ResponseWriter, r *http.Request, maxBytes int64) (multipart.File, *multipart.FileHeader, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, nil, domain.Validationf("upload exceeds the %d byte limit", maxBytes)
		}
		return nil, nil, domain.Validationf("invalid multipart form: %v", err)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, nil, domain.Validationf("file is required")
	}
	return file, header, nil
}
