// Package imaging resizes accepted photos to the standard print sizes and
// packages the results into a zip archive. Billing only depends on the
// accepted file count; a pipeline failure happens before any debit.
package imaging

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"path"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/image/draw"
)

// PrintSize is one output format, dimensions in pixels at 300 DPI.
type PrintSize struct {
	Name   string
	Width  int
	Height int
}

// PortraitSizes are the supported print formats in portrait orientation at
// base resolution. Scale multiplies these up; at scale 5 every format
// reaches its 300 DPI print dimensions. Landscape jobs use the transposed
// dimensions.
var PortraitSizes = []PrintSize{
	{Name: "4x6", Width: 240, Height: 360},
	{Name: "5x7", Width: 300, Height: 420},
	{Name: "8x10", Width: 480, Height: 600},
	{Name: "11x14", Width: 660, Height: 840},
	{Name: "12x18", Width: 720, Height: 1080},
	{Name: "16x20", Width: 960, Height: 1200},
	{Name: "18x24", Width: 1080, Height: 1440},
	{Name: "24x36", Width: 1440, Height: 2160},
}

const jpegQuality = 90

// File is one uploaded image.
type File struct {
	Name string
	Data []byte
}

// Job is a batch of images to process with shared settings. Scale
// multiplies the base dimensions: 5 is full print resolution, 1 a small
// preview.
type Job struct {
	ID          string
	Orientation string
	Scale       int64
	Files       []File
}

// Result is the packaged output of a processed job.
type Result struct {
	JobID     string
	Processed int
	Archive   []byte
}

// Pipeline processes upload jobs.
type Pipeline interface {
	Process(ctx context.Context, job Job) (*Result, error)
}

type resizer struct {
	logger *zap.Logger
}

// NewResizer creates the default pipeline implementation.
func NewResizer(logger *zap.Logger) Pipeline {
	return &resizer{logger: logger}
}

func (p *resizer) Process(ctx context.Context, job Job) (*Result, error) {
	if len(job.Files) == 0 {
		return nil, fmt.Errorf("no files to process")
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	scale := job.Scale
	if scale < 1 {
		scale = 1
	}
	if scale > 5 {
		scale = 5
	}

	var buf bytes.Buffer
	archive := zip.NewWriter(&buf)

	for _, file := range job.Files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		src, _, err := image.Decode(bytes.NewReader(file.Data))
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", file.Name, err)
		}

		base := baseName(file.Name)
		for _, size := range PortraitSizes {
			width, height := size.Width, size.Height
			if job.Orientation == "landscape" {
				width, height = height, width
			}
			width = int(int64(width) * scale)
			height = int(int64(height) * scale)

			resized := resize(src, width, height)

			entry, err := archive.Create(fmt.Sprintf("%s/%s_%s.jpg", base, base, size.Name))
			if err != nil {
				return nil, fmt.Errorf("failed to create archive entry: %w", err)
			}
			if err := jpeg.Encode(entry, resized, &jpeg.Options{Quality: jpegQuality}); err != nil {
				return nil, fmt.Errorf("failed to encode %s at %s: %w", file.Name, size.Name, err)
			}
		}

		p.logger.Debug("processed file",
			zap.String("job_id", job.ID),
			zap.String("file", file.Name),
			zap.Int("sizes", len(PortraitSizes)))
	}

	if err := archive.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize archive: %w", err)
	}

	return &Result{
		JobID:     job.ID,
		Processed: len(job.Files),
		Archive:   buf.Bytes(),
	}, nil
}

// resize scales src to exactly width x height using Catmull-Rom
// interpolation. Prints expect the exact aspect ratio, so no cropping or
// letterboxing happens here.
func resize(src image.Image, width, height int) image.Image {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

func baseName(name string) string {
	base := path.Base(name)
	if ext := path.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	if base == "" || base == "." {
		return "image"
	}
	return base
}
