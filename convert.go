// Package fontconvert downloads a font file and re-serializes it into another
// container format (TTF, OTF, WOFF, or WOFF2), reporting the size before and
// after. One conversion per Run; there is no caching, no retry, and no
// concurrent batch mode.
package fontconvert

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/dahisea/Font-Convert-Action/font"
	"github.com/google/uuid"
	"golang.org/x/image/font/sfnt"
)

// Request is a single immutable conversion request.
type Request struct {
	URL    string
	Format font.Format
	Name   string // output base name without extension; derived from the URL when empty
}

// Result reports the outcome of a successful conversion.
type Result struct {
	Path       string
	InputSize  int64
	OutputSize int64
}

// Ratio returns the compression ratio achieved by the conversion.
func (r *Result) Ratio() float64 {
	return 1.0 - float64(r.OutputSize)/float64(r.InputSize)
}

// Options configures a Converter. Loggers are passed in explicitly; there is
// no global logging state.
type Options struct {
	Client  *http.Client
	Info    *log.Logger
	Warning *log.Logger
	Verbose bool
	WorkDir string // defaults to the current working directory
}

// Converter runs font container conversions.
type Converter struct {
	client  *http.Client
	info    *log.Logger
	warning *log.Logger
	verbose bool
	workDir string
}

// New returns a Converter with the given options.
func New(opts Options) *Converter {
	c := &Converter{
		client:  opts.Client,
		info:    opts.Info,
		warning: opts.Warning,
		verbose: opts.Verbose,
		workDir: opts.WorkDir,
	}
	if c.client == nil {
		c.client = &http.Client{}
	}
	if c.info == nil {
		c.info = log.New(io.Discard, "", 0)
	}
	if c.warning == nil {
		c.warning = log.New(io.Discard, "", 0)
	}
	return c
}

func (c *Converter) debugf(format string, args ...interface{}) {
	if c.verbose {
		c.info.Printf(format, args...)
	}
}

// Validate checks that the file at path opens as a font container and defines
// at least one glyph. WOFF and WOFF2 containers are decompressed first. The
// underlying cause is carried inside the returned InvalidFontError.
func (c *Converter) Validate(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return &InvalidFontError{path, err}
	}
	data, err := font.ToSFNT(b)
	if err != nil {
		return &InvalidFontError{path, err}
	}
	f, err := sfnt.Parse(data)
	if err != nil {
		return &InvalidFontError{path, err}
	}
	if f.NumGlyphs() == 0 {
		return &InvalidFontError{path, fmt.Errorf("font contains no glyphs")}
	}
	return nil
}

// Convert transcodes the font at src into the given container format at dst.
// Tables pass through unmodified; only the container changes.
func (c *Converter) Convert(src, dst string, format font.Format) error {
	b, err := os.ReadFile(src)
	if err != nil {
		return &ConversionError{src, err}
	}
	data, err := font.ToSFNT(b)
	if err != nil {
		return &ConversionError{src, err}
	}
	f, err := font.ParseSFNT(data)
	if err != nil {
		return &ConversionError{src, err}
	}

	// TTF and OTF requests are served from whichever outlines the font has;
	// the sfnt version tag is not rewritten
	if format == font.OTF && f.IsTrueType {
		c.warning.Printf("requested otf output for a font with TrueType outlines; the result will not contain a CFF table")
	} else if format == font.TTF && f.IsCFF {
		c.warning.Printf("requested ttf output for a font with CFF outlines; the result will not contain TrueType outlines")
	}
	if family := f.Family(); family != "" {
		c.debugf("converting %s %s (%d glyphs)", family, f.Subfamily(), f.NumGlyphs())
	}

	var out []byte
	switch format {
	case font.TTF, font.OTF:
		out = f.Write()
	case font.WOFF:
		out, err = f.WriteWOFF()
	case font.WOFF2:
		out, err = f.WriteWOFF2()
	default:
		err = fmt.Errorf("unknown font format")
	}
	if err != nil {
		return &ConversionError{src, err}
	}
	if err := os.WriteFile(dst, out, 0644); err != nil {
		return &ConversionError{dst, err}
	}
	return nil
}

// Run executes the full pipeline: download, validate, convert, validate the
// output, and publish the result into the working directory. The scratch
// directory is removed on success and on any failure from the output
// validation stage onward; earlier failures leave it behind.
func (c *Converter) Run(ctx context.Context, req Request) (*Result, error) {
	if req.URL == "" {
		return nil, fmt.Errorf("url must not be empty")
	} else if req.Format == font.UnknownFormat {
		return nil, fmt.Errorf("unknown output format")
	}

	workDir := c.workDir
	scratch := "temp_fonts-" + uuid.New().String()
	if workDir != "" {
		scratch = filepath.Join(workDir, scratch)
	}
	if err := os.MkdirAll(scratch, 0755); err != nil {
		return nil, err
	}
	cleanup := false
	defer func() {
		if cleanup {
			os.RemoveAll(scratch)
		}
	}()

	base := filenameFromURL(req.URL)
	inputPath := filepath.Join(scratch, base)

	c.info.Printf("downloading font: %s", req.URL)
	if err := c.Download(ctx, req.URL, inputPath); err != nil {
		return nil, err
	}
	if err := c.Validate(inputPath); err != nil {
		return nil, err
	}

	name := req.Name
	if name == "" {
		name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	outName := name + req.Format.Extension()
	outputPath := filepath.Join(scratch, outName)

	c.info.Printf("converting font: %s -> %s", base, outName)
	if err := c.Convert(inputPath, outputPath, req.Format); err != nil {
		return nil, err
	}
	cleanup = true
	if err := c.Validate(outputPath); err != nil {
		return nil, err
	}

	inputInfo, err := os.Stat(inputPath)
	if err != nil {
		return nil, err
	}
	outputInfo, err := os.Stat(outputPath)
	if err != nil {
		return nil, err
	}

	finalPath := outName
	if workDir != "" {
		finalPath = filepath.Join(workDir, outName)
	}
	if err := os.Rename(outputPath, finalPath); err != nil {
		return nil, err
	}

	result := &Result{
		Path:       finalPath,
		InputSize:  inputInfo.Size(),
		OutputSize: outputInfo.Size(),
	}
	c.info.Printf("input file: %s (%d bytes)", base, result.InputSize)
	c.info.Printf("output file: %s (%d bytes)", outName, result.OutputSize)
	c.info.Printf("compression ratio: %.1f%%", result.Ratio()*100.0)
	return result, nil
}
