package docker

import (
	"archive/tar"
	"bytes"
	_ "embed"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/nevindra/warden"
)

//go:embed Dockerfile
var defaultDockerfile []byte

const dockerfileName = "Dockerfile"

// buildContext assembles the tar stream sent to the daemon and returns it
// together with the dockerfile's name inside the stream.
func (s *Sandbox) buildContext() (io.Reader, string, error) {
	switch {
	case s.cfg.dockerfile == "" && s.cfg.contextDir == "":
		r, err := tarFiles(map[string][]byte{dockerfileName: defaultDockerfile})
		if err != nil {
			return nil, "", &warden.ErrSandbox{Op: "build", Message: err.Error()}
		}
		return r, dockerfileName, nil

	case s.cfg.dockerfile != "":
		if _, err := os.Stat(s.cfg.dockerfile); err != nil {
			return nil, "", &warden.ErrSandbox{Op: "build", Message: "dockerfile not found: " + s.cfg.dockerfile}
		}
		ctxDir := s.cfg.contextDir
		if ctxDir == "" {
			ctxDir = filepath.Dir(s.cfg.dockerfile)
		}
		rel, err := filepath.Rel(ctxDir, s.cfg.dockerfile)
		if err != nil {
			return nil, "", &warden.ErrSandbox{Op: "build", Message: err.Error()}
		}
		r, err := tarDirectory(ctxDir)
		if err != nil {
			return nil, "", &warden.ErrSandbox{Op: "build", Message: err.Error()}
		}
		return r, filepath.ToSlash(rel), nil

	default:
		r, err := tarDirectory(s.cfg.contextDir)
		if err != nil {
			return nil, "", &warden.ErrSandbox{Op: "build", Message: err.Error()}
		}
		return r, dockerfileName, nil
	}
}

func tarDirectory(dir string) (io.Reader, error) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	root := os.DirFS(dir)

	err := fs.WalkDir(root, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(path)
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		data, err := fs.ReadFile(root, path)
		if err != nil {
			return err
		}
		_, err = tw.Write(data)
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}
	return &buf, nil
}

func tarFiles(files map[string][]byte) (io.Reader, error) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for name, data := range files {
		hdr := &tar.Header{Name: name, Mode: 0o644, Size: int64(len(data))}
		if err := tw.WriteHeader(hdr); err != nil {
			return nil, err
		}
		if _, err := tw.Write(data); err != nil {
			return nil, err
		}
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}
	return &buf, nil
}
