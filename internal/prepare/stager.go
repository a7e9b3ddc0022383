package prepare

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/nao1215/threedibatch/internal/config"
	"github.com/nao1215/threedibatch/internal/model"
	"golang.org/x/crypto/sha3"
	"golang.org/x/sync/errgroup"
)

// Raster kinds, in staging order.
const (
	KindDEM          = "dem"
	KindFriction     = "friction"
	KindInfiltration = "infiltration"
)

// source is a configured raster kind.
type source struct {
	kind string
	dir  string
}

// Stager copies sub-area rasters into the working copy.
type Stager struct {
	repoDir        string
	targetDir      string
	extension      string
	sources        []source
	schematisation string
	logger         *slog.Logger
}

// Option configures a Stager.
type Option func(*Stager)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Stager) {
		s.logger = logger
	}
}

// WithSchematisation sets the schematisation SQLite file, relative to the
// repository directory, whose raster references are updated after staging.
func WithSchematisation(path string) Option {
	return func(s *Stager) {
		s.schematisation = path
	}
}

// NewStager creates a Stager for the working copy at repoDir.
// Kinds without a source directory in rasters are skipped.
func NewStager(repoDir string, rasters config.RasterConfig, opts ...Option) *Stager {
	s := &Stager{
		repoDir:   repoDir,
		targetDir: rasters.TargetDir,
		extension: rasters.Extension,
		logger:    slog.Default(),
	}
	if s.targetDir == "" {
		s.targetDir = config.DefaultRasterTargetDir
	}
	if s.extension == "" {
		s.extension = config.DefaultRasterExtension
	}

	for _, src := range []source{
		{KindDEM, rasters.DEMDir},
		{KindFriction, rasters.FrictionDir},
		{KindInfiltration, rasters.InfiltrationDir},
	} {
		if src.dir != "" {
			s.sources = append(s.sources, src)
		}
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Enabled reports whether any raster kind is configured.
func (s *Stager) Enabled() bool {
	return len(s.sources) > 0
}

// Prepare copies the rasters of subArea into the working copy and, when
// configured, updates the schematisation. Kinds are copied concurrently.
// The returned files are in staging order.
func (s *Stager) Prepare(ctx context.Context, subArea string) ([]model.PreparedFile, error) {
	files := make([]model.PreparedFile, len(s.sources))

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range s.sources {
		g.Go(func() error {
			file, err := s.stage(gctx, src, subArea)
			if err != nil {
				return err
			}
			files[i] = file
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if s.schematisation != "" {
		if err := s.updateSchematisation(ctx, files); err != nil {
			return files, err
		}
	}

	return files, nil
}

// stage copies one raster and checksums the copy.
func (s *Stager) stage(ctx context.Context, src source, subArea string) (model.PreparedFile, error) {
	srcPath := filepath.Join(src.dir, subArea+s.extension)
	target := filepath.Join(s.targetDir, src.kind+s.extension)
	dstPath := filepath.Join(s.repoDir, target)

	in, err := os.Open(srcPath) //nolint:gosec // path comes from configuration
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return model.PreparedFile{}, fmt.Errorf("%w: %s", ErrMissingRaster, srcPath)
		}
		return model.PreparedFile{}, fmt.Errorf("failed to open %s: %w", srcPath, err)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dstPath), 0o750); err != nil {
		return model.PreparedFile{}, fmt.Errorf("failed to create raster directory: %w", err)
	}

	out, err := os.Create(dstPath) //nolint:gosec // path is inside the working copy
	if err != nil {
		return model.PreparedFile{}, fmt.Errorf("failed to create %s: %w", dstPath, err)
	}

	hash := sha3.New256()
	size, err := io.Copy(io.MultiWriter(out, hash), &contextReader{ctx: ctx, r: in})
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return model.PreparedFile{}, fmt.Errorf("failed to copy %s: %w", srcPath, err)
	}

	s.logger.Debug("raster staged", "kind", src.kind, "source", srcPath, "target", target, "bytes", size)

	return model.PreparedFile{
		Kind:   src.kind,
		Source: srcPath,
		Target: filepath.ToSlash(target),
		SHA3:   hex.EncodeToString(hash.Sum(nil)),
		Size:   size,
	}, nil
}

// contextReader stops a copy once ctx is done.
type contextReader struct {
	ctx context.Context //nolint:containedctx // scoped to a single copy
	r   io.Reader
}

// Read implements io.Reader.
func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
