package ziparchive

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/d3i-infra/port-google-home/internal/core/domain"
	"github.com/d3i-infra/port-google-home/internal/core/ports"
)

const defaultMaxArchiveBytes int64 = 2 << 30

// Opener reads stored uploads as zip archives.
type Opener struct {
	storage  ports.ObjectStorage
	maxBytes int64
}

func New(storage ports.ObjectStorage, maxBytes int64) *Opener {
	if maxBytes <= 0 {
		maxBytes = defaultMaxArchiveBytes
	}
	return &Opener{storage: storage, maxBytes: maxBytes}
}

// Open buffers the stored object and parses its central directory. Any
// failure here means the upload is not a usable archive.
func (o *Opener) Open(ctx context.Context, ref string) (ports.Archive, error) {
	rc, err := o.storage.Open(ctx, ref)
	if err != nil {
		return nil, domain.WrapError(domain.ErrContainer, "open stored archive", err)
	}
	defer rc.Close()

	raw, err := io.ReadAll(io.LimitReader(rc, o.maxBytes+1))
	if err != nil {
		return nil, domain.WrapError(domain.ErrContainer, "read stored archive", err)
	}
	if int64(len(raw)) > o.maxBytes {
		return nil, domain.WrapError(domain.ErrContainer, "read stored archive", errors.New("archive too large"))
	}
	return FromBytes(raw)
}

// FromBytes opens an in-memory zip.
func FromBytes(raw []byte) (*Archive, error) {
	reader, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, domain.WrapError(domain.ErrContainer, "parse zip", err)
	}
	return &Archive{reader: reader}, nil
}

type Archive struct {
	reader *zip.Reader
}

func (a *Archive) Names() []string {
	names := make([]string, 0, len(a.reader.File))
	for _, f := range a.reader.File {
		if f.FileInfo().IsDir() {
			continue
		}
		names = append(names, f.Name)
	}
	return names
}

// ReadMember accepts either a full member path or a bare file name; a bare
// name matches the first member with that base name.
func (a *Archive) ReadMember(name string) ([]byte, error) {
	file := a.find(name)
	if file == nil {
		return nil, domain.WrapError(domain.ErrMemberNotFound, "read member", fmt.Errorf("%q", name))
	}
	rc, err := file.Open()
	if err != nil {
		return nil, domain.WrapError(domain.ErrContainer, "open member "+file.Name, err)
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return nil, domain.WrapError(domain.ErrContainer, "read member "+file.Name, err)
	}
	return raw, nil
}

func (a *Archive) Close() error { return nil }

func (a *Archive) find(name string) *zip.File {
	for _, f := range a.reader.File {
		if f.Name == name {
			return f
		}
	}
	if strings.Contains(name, "/") {
		return nil
	}
	for _, f := range a.reader.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if path.Base(f.Name) == name {
			return f
		}
	}
	return nil
}
