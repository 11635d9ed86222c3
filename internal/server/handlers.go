package server

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/jonathan/trait-scorer/internal/analysis"
	"github.com/jonathan/trait-scorer/internal/imaging"
)

const (
	// maxImagesPerRequest bounds the photos sent to the model in one call.
	maxImagesPerRequest = 8
	// maxReplyBytes bounds the raw reply accepted by /validate.
	maxReplyBytes = 1 << 20
	// multipartMemory is kept in memory before parts spill to disk.
	multipartMemory = 32 << 20
)

// imagesRequest is the JSON alternative to a multipart upload.
type imagesRequest struct {
	Images []string `json:"images" validate:"required,min=1,max=8,dive,required"`
}

// handleScore scores the uploaded photos against a profile.
func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	images, err := s.readImages(w, r)
	if err != nil {
		s.writeError(w, err, nil)
		return
	}

	out, err := s.service.Score(r.Context(), analysis.Request{
		Profile: r.PathValue("profile"),
		Images:  images,
		Report:  parseQueryBool(r, "report"),
	})
	if err != nil {
		s.writeError(w, err, out)
		return
	}
	s.jsonResponse(w, http.StatusOK, out)
}

// handleClassify returns the model's free-text character classification.
func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	images, err := s.readImages(w, r)
	if err != nil {
		s.writeError(w, err, nil)
		return
	}

	out, err := s.service.Classify(r.Context(), images)
	if err != nil {
		s.writeError(w, err, out)
		return
	}
	s.jsonResponse(w, http.StatusOK, out)
}

// handleValidate runs a pasted model reply through extraction and validation.
// A blank reply is evaluated like any other and fails extraction.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxReplyBytes))
	if err != nil {
		s.writeError(w, &ErrValidation{Field: "body", Message: "reply exceeds 1 MiB or could not be read"}, nil)
		return
	}
	out, err := s.service.Evaluate(r.PathValue("profile"), string(body))
	if err != nil {
		s.writeError(w, err, out)
		return
	}
	s.jsonResponse(w, http.StatusOK, out)
}

// handleTraits lists the trait descriptions used in prompts.
func (s *Server) handleTraits(w http.ResponseWriter, _ *http.Request) {
	catalog := s.service.Catalog()
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"source": catalog.Source(),
		"traits": catalog.Map(),
		"text":   catalog.Text(),
	})
}

// handleListProfiles lists every configured profile.
func (s *Server) handleListProfiles(w http.ResponseWriter, _ *http.Request) {
	registry := s.service.Profiles()
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"profiles": registry.All(),
		"scored":   registry.Scored(),
	})
}

// handleGetProfile returns one profile by name.
func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	schema, ok := s.service.Profiles().Get(name)
	if !ok {
		s.errorResponse(w, http.StatusNotFound, fmt.Sprintf("profile not found: %s", name))
		return
	}
	s.jsonResponse(w, http.StatusOK, schema)
}

// readImages accepts either multipart "image" fields or a JSON body of data URLs.
func (s *Server) readImages(w http.ResponseWriter, r *http.Request) ([]imaging.Image, error) {
	maxBytes := s.images.MaxBytes
	if maxBytes <= 0 {
		maxBytes = imaging.DefaultMaxBytes
	}
	// base64 inflates JSON bodies by a third; leave room for that and the envelope.
	r.Body = http.MaxBytesReader(w, r.Body, 2*maxBytes*maxImagesPerRequest)

	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return nil, &ErrValidation{Field: "Content-Type", Message: "expected multipart/form-data or application/json"}
	}

	switch mediaType {
	case "multipart/form-data":
		return s.readMultipart(r)
	case "application/json":
		return s.readDataURLs(r)
	default:
		return nil, &ErrValidation{Field: "Content-Type", Message: "expected multipart/form-data or application/json"}
	}
}

func (s *Server) readMultipart(r *http.Request) ([]imaging.Image, error) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return nil, &ErrValidation{Field: "body", Message: "invalid multipart form: " + err.Error()}
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck

	files := r.MultipartForm.File["image"]
	if len(files) == 0 {
		return nil, analysis.ErrNoImages
	}
	if len(files) > maxImagesPerRequest {
		return nil, &ErrValidation{Field: "image", Message: fmt.Sprintf("at most %d images per request", maxImagesPerRequest)}
	}

	sources := make([]imaging.Source, 0, len(files))
	for _, fh := range files {
		sources = append(sources, imaging.Source{
			Name: fh.Filename,
			Open: func() (io.ReadCloser, error) { return fh.Open() },
		})
	}
	return s.images.ReadAll(r.Context(), sources)
}

func (s *Server) readDataURLs(r *http.Request) ([]imaging.Image, error) {
	var req imagesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, &ErrValidation{Field: "body", Message: "invalid JSON: " + err.Error()}
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, requestValidationError(err)
	}

	images := make([]imaging.Image, 0, len(req.Images))
	for i, encoded := range req.Images {
		img, err := s.images.FromDataURL(fmt.Sprintf("image-%d", i+1), encoded)
		if err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return images, nil
}

// parseQueryInt parses an integer query parameter with default and max values
func parseQueryInt(r *http.Request, key string, defaultValue, maxValue int) int {
	valStr := r.URL.Query().Get(key)
	if valStr == "" {
		return defaultValue
	}
	val, err := strconv.Atoi(valStr)
	if err != nil || val < 0 {
		return defaultValue
	}
	if maxValue > 0 && val > maxValue {
		return maxValue
	}
	return val
}

// parseQueryBool reports whether a query flag is set to a true value.
func parseQueryBool(r *http.Request, key string) bool {
	val, err := strconv.ParseBool(r.URL.Query().Get(key))
	return err == nil && val
}
