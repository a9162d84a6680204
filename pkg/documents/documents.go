// Package documents uploads files into the knowledge base of the chat API.
package documents

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-go-golems/branchat/pkg/apiclient"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var (
	ErrUploadUnsupported = errors.New("document upload is not supported by this backend")
	ErrEmptyName         = errors.New("document name is empty")
)

// UploadResult is the answer of the ingestion endpoint.
type UploadResult struct {
	Filename string `json:"filename"`
	Status   string `json:"status"`
	Chunks   int    `json:"chunks"`
}

type Service interface {
	Upload(ctx context.Context, name string, content io.Reader) (*UploadResult, error)
}

// UploadFile uploads the file at path under its base name.
func UploadFile(ctx context.Context, s Service, path string) (*UploadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open %s", path)
	}
	defer func() {
		_ = f.Close()
	}()
	return s.Upload(ctx, filepath.Base(path), f)
}

// HTTPService posts files as multipart form data to /documents/upload.
type HTTPService struct {
	client *apiclient.Client
}

var _ Service = (*HTTPService)(nil)

func NewHTTPService(client *apiclient.Client) *HTTPService {
	return &HTTPService{client: client}
}

func (s *HTTPService) Upload(ctx context.Context, name string, content io.Reader) (*UploadResult, error) {
	if name == "" {
		return nil, ErrEmptyName
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", name)
	if err != nil {
		return nil, errors.Wrap(err, "could not create form file")
	}
	n, err := io.Copy(part, content)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read %s", name)
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, "could not finish multipart body")
	}

	log.Debug().Str("name", name).Int64("bytes", n).Msg("uploading document")

	var ret UploadResult
	err = s.client.Do(ctx, http.MethodPost, "/documents/upload", w.FormDataContentType(), &buf, &ret)
	if err != nil {
		return nil, errors.Wrapf(err, "could not upload %s", name)
	}
	if ret.Filename == "" {
		ret.Filename = name
	}
	return &ret, nil
}

// UnsupportedService rejects every upload.
type UnsupportedService struct{}

func (UnsupportedService) Upload(context.Context, string, io.Reader) (*UploadResult, error) {
	return nil, ErrUploadUnsupported
}

var _ Service = UnsupportedService{}
