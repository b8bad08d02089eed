package handler

import (
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"rivermonitor/internal/apperror"
	"rivermonitor/internal/dto"
	"rivermonitor/internal/logger"
	"rivermonitor/internal/metrics"
	"rivermonitor/internal/service"
	"rivermonitor/internal/validation"
)

const (
	// multipartMemory is how much of an upload is kept in memory before
	// spilling to temporary files.
	multipartMemory = 8 << 20
	// maxRetrieveBody bounds the /retrieve JSON body.
	maxRetrieveBody = 1 << 20
)

// UploadHandler handles POST /upload: a multipart form with the observation
// fields and an image file.
func UploadHandler(svc *service.ObservationService, maxBytes int64, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handler.Upload"

		if r.ContentLength > maxBytes {
			reject(w, r, apperror.New(apperror.KindPayloadTooLarge, op, nil), logger)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

		if err := r.ParseMultipartForm(multipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				reject(w, r, apperror.New(apperror.KindPayloadTooLarge, op, err), logger)
				return
			}
			reject(w, r, apperror.New(apperror.KindBadRequest, op, err), logger)
			return
		}
		if r.MultipartForm != nil {
			defer r.MultipartForm.RemoveAll()
		}

		sub, closeFiles, err := collectSubmission(r)
		defer closeFiles()
		if err != nil {
			reject(w, r, apperror.New(apperror.KindBadRequest, op, err), logger)
			return
		}

		accepted, err := validation.Validate(sub)
		if err != nil {
			reject(w, r, err, logger)
			return
		}

		if _, err := svc.Submit(r.Context(), accepted); err != nil {
			metrics.RecordUpload(metrics.UploadFailed, "")
			writeError(w, r, err, logger)
			return
		}

		metrics.RecordUpload(metrics.UploadStored, "")
		writeJSON(w, r, http.StatusOK, dto.StatusResponse{Status: "OK"}, logger)
	}
}

func reject(w http.ResponseWriter, r *http.Request, err error, logger *logger.Logger) {
	metrics.RecordUpload(metrics.UploadRejected, apperror.KindOf(err).Code())
	writeError(w, r, err, logger)
}

// collectSubmission gathers the first value of every form field and opens the
// image file. The returned func closes opened files.
func collectSubmission(r *http.Request) (validation.Submission, func(), error) {
	sub := validation.Submission{
		Fields: make(map[string]string, len(r.PostForm)),
		Files:  make(map[string]io.Reader),
	}
	var opened []multipart.File
	closeFiles := func() {
		for _, f := range opened {
			f.Close()
		}
	}

	for name, values := range r.PostForm {
		if len(values) > 0 {
			sub.Fields[name] = values[0]
		}
	}

	if r.MultipartForm != nil {
		if headers := r.MultipartForm.File[validation.FileImage]; len(headers) > 0 {
			f, err := headers[0].Open()
			if err != nil {
				return sub, closeFiles, err
			}
			opened = append(opened, f)
			sub.Files[validation.FileImage] = f
		}
	}
	return sub, closeFiles, nil
}

// RetrieveHandler handles POST /retrieve with a JSON body {start?, end?}.
func RetrieveHandler(svc *service.ObservationService, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handler.Retrieve"

		if !isJSON(r.Header.Get("Content-Type")) {
			writeError(w, r, apperror.New(apperror.KindBadRequest, op, errors.New("content type is not JSON")), logger)
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRetrieveBody))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, r, apperror.New(apperror.KindPayloadTooLarge, op, err), logger)
				return
			}
			writeError(w, r, apperror.New(apperror.KindBadRequest, op, err), logger)
			return
		}

		req, err := dto.ParseRetrieveRequest(body)
		if err != nil {
			writeError(w, r, apperror.New(apperror.KindBadRequest, op, err), logger)
			return
		}

		observations, err := svc.Retrieve(r.Context(), req.Window())
		if err != nil {
			writeError(w, r, err, logger)
			return
		}

		writeJSON(w, r, http.StatusOK, dto.NewObservationResponses(observations), logger)
	}
}

// ObservationHandler handles GET /observation/{timestamp}.
func ObservationHandler(svc *service.ObservationService, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ts, err := timestampParam(r)
		if err != nil {
			writeError(w, r, err, logger)
			return
		}

		obs, err := svc.Get(r.Context(), ts)
		if err != nil {
			writeError(w, r, err, logger)
			return
		}

		writeJSON(w, r, http.StatusOK, dto.NewObservationResponse(obs), logger)
	}
}

// timestampParam reads the {timestamp} route parameter. Values that do not
// fit an int64 cannot name a stored record, so they are reported as not found.
func timestampParam(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "timestamp")
	ts, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, apperror.New(apperror.KindNotFound, "handler.timestampParam", err)
	}
	return ts, nil
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}
