package bounce

import "fmt"

// Field is the rectangular boundary bodies live in, in pixels.
type Field struct {
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// Validate rejects non-positive dimensions.
func (f Field) Validate() error {
	err := &ValidationError{}
	if !(f.Width > 0) {
		err.Add(fmt.Sprintf("field width must be positive, got %v", f.Width))
	}
	if !(f.Height > 0) {
		err.Add(fmt.Sprintf("field height must be positive, got %v", f.Height))
	}
	if err.HasIssues() {
		return err
	}
	return nil
}
