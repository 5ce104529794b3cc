package rimage

import (
	"image"

	"github.com/disintegration/imaging"
	_ "github.com/lmittmann/ppm" // register ppm/pgm
	"github.com/pkg/errors"
)

// ReadImageFromFile decodes a png, jpeg, bmp, tiff, gif, ppm or pgm file.
func ReadImageFromFile(path string) (image.Image, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read image %q", path)
	}
	return img, nil
}

// ReadColorImageFromFile decodes a file straight into a normalized ColorImage.
func ReadColorImageFromFile(path string) (*ColorImage, error) {
	img, err := ReadImageFromFile(path)
	if err != nil {
		return nil, err
	}
	return NewColorImageFromStdImage(img), nil
}

// WriteImageToFile encodes img in the format implied by the path extension.
func WriteImageToFile(path string, img image.Image) error {
	if err := imaging.Save(img, path); err != nil {
		return errors.Wrapf(err, "cannot write image %q", path)
	}
	return nil
}
