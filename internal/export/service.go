package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"expression_atlas/internal/blob"
)

const keyPrefix = "exports/"

// ErrNotFound is returned for unknown export ids or file names.
var ErrNotFound = errors.New("export: not found")

// File is one artifact to persist.
type File struct {
	Name        string
	ContentType string
	Body        []byte
	Metadata    map[string]string
}

// Artifact describes a stored file.
type Artifact struct {
	ID          string    `json:"id"`
	File        string    `json:"file"`
	Key         string    `json:"key"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size_bytes"`
	URL         string    `json:"url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Service persists export artifacts under exports/<id>/<file>.
type Service struct {
	store  blob.Store
	logger zerolog.Logger
	newID  func() string
	expiry time.Duration
}

func NewService(store blob.Store, logger zerolog.Logger) *Service {
	return &Service{store: store, logger: logger, newID: uuid.NewString, expiry: 15 * time.Minute}
}

// Driver reports the backing blob driver.
func (s *Service) Driver() blob.Driver { return s.store.Driver() }

// Save stores files under a fresh export id. URLs are filled in when the
// driver can presign.
func (s *Service) Save(ctx context.Context, files []File) (string, []Artifact, error) {
	id := s.newID()
	out := make([]Artifact, 0, len(files))
	for _, f := range files {
		key := objectKey(id, f.Name)
		info, err := s.store.Put(ctx, key, bytes.NewReader(f.Body), blob.PutOptions{ContentType: f.ContentType, Metadata: f.Metadata})
		if err != nil {
			return "", nil, fmt.Errorf("store %s: %w", key, err)
		}
		out = append(out, s.artifact(ctx, id, f.Name, info))
	}
	s.logger.Info().Str("export_id", id).Int("files", len(out)).Str("driver", string(s.store.Driver())).Msg("export stored")
	return id, out, nil
}

// List returns the artifacts of one export.
func (s *Service) List(ctx context.Context, id string) ([]Artifact, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	infos, err := s.store.List(ctx, keyPrefix+id+"/")
	if err != nil {
		return nil, err
	}
	if len(infos) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	out := make([]Artifact, 0, len(infos))
	for _, info := range infos {
		out = append(out, s.artifact(ctx, id, path.Base(info.Key), info))
	}
	return out, nil
}

// Open streams a stored artifact. The caller closes the reader.
func (s *Service) Open(ctx context.Context, id, file string) (blob.Info, io.ReadCloser, error) {
	if _, err := uuid.Parse(id); err != nil || file == "" || strings.ContainsAny(file, "/\\") {
		return blob.Info{}, nil, fmt.Errorf("%w: %s/%s", ErrNotFound, id, file)
	}
	info, rc, err := s.store.Get(ctx, objectKey(id, file))
	if errors.Is(err, blob.ErrNotFound) {
		return blob.Info{}, nil, fmt.Errorf("%w: %s/%s", ErrNotFound, id, file)
	}
	return info, rc, err
}

func (s *Service) artifact(ctx context.Context, id, file string, info blob.Info) Artifact {
	a := Artifact{ID: id, File: file, Key: info.Key, ContentType: info.ContentType, Size: info.Size, CreatedAt: info.LastModified}
	url, err := s.store.PresignURL(ctx, info.Key, blob.SignedURLOptions{Method: "GET", Expiry: s.expiry})
	switch {
	case err == nil:
		a.URL = url
	case !errors.Is(err, blob.ErrUnsupported):
		s.logger.Warn().Err(err).Str("key", info.Key).Msg("presign failed")
	}
	return a
}

func objectKey(id, file string) string {
	return keyPrefix + id + "/" + file
}
