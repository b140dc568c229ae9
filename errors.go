package fontconvert

import "fmt"

// NetworkError is returned when the font could not be fetched: the connection
// failed or the server responded with an error status.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("download %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// InvalidFontError is returned when a file does not open as a font container
// or contains no glyphs.
type InvalidFontError struct {
	Path string
	Err  error
}

func (e *InvalidFontError) Error() string {
	return fmt.Sprintf("invalid font %s: %v", e.Path, e.Err)
}

func (e *InvalidFontError) Unwrap() error {
	return e.Err
}

// ConversionError is returned when parsing or serializing a font fails during
// transcoding.
type ConversionError struct {
	Path string
	Err  error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("convert %s: %v", e.Path, e.Err)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}
