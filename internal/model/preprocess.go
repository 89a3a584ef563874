package model

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/gabriel-vasile/mimetype"
	"github.com/nfnt/resize"
)

// Normalization is bound to the preprocessing the model was trained with.
type Normalization string

const (
	// ScaleZeroOne maps channel values to [0,1].
	ScaleZeroOne Normalization = "scale_0_1"
	// ScaleNegOneOne maps channel values to [-1,1] via x/127.5 - 1.
	ScaleNegOneOne Normalization = "scale_neg1_1"
	// Raw keeps channel values in [0,255].
	Raw Normalization = "raw"
)

var supportedImageTypes = []string{"image/jpeg", "image/png", "image/gif"}

func (n Normalization) apply(v uint32) float32 {
	x := float32(v)
	switch n {
	case ScaleZeroOne:
		return x / 255.0
	case ScaleNegOneOne:
		return x/127.5 - 1
	default:
		return x
	}
}

// ParseNormalization validates a configured policy name.
func ParseNormalization(s string) (Normalization, error) {
	switch n := Normalization(s); n {
	case ScaleZeroOne, ScaleNegOneOne, Raw:
		return n, nil
	default:
		return "", fmt.Errorf("unknown normalization policy %q", s)
	}
}

// Preprocessor turns raw image bytes into a classifier input tensor.
type Preprocessor struct {
	norm Normalization
}

func NewPreprocessor(norm Normalization) *Preprocessor {
	return &Preprocessor{norm: norm}
}

func (p *Preprocessor) Normalization() Normalization {
	return p.norm
}

// Preprocess decodes buf, resizes it to ImageSize x ImageSize with
// nearest-neighbour sampling and returns a [1,224,224,3] tensor.
func (p *Preprocessor) Preprocess(buf []byte) (Tensor, error) {
	if len(buf) == 0 {
		return Tensor{}, fmt.Errorf("%w: empty image", ErrDecode)
	}
	mt := mimetype.Detect(buf)
	if !mimetype.EqualsAny(mt.String(), supportedImageTypes...) {
		return Tensor{}, fmt.Errorf("%w: unsupported content type %s", ErrDecode, mt.String())
	}

	img, _, err := image.Decode(bytes.NewReader(buf))
	if err != nil {
		return Tensor{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if img.Bounds().Empty() {
		return Tensor{}, fmt.Errorf("%w: empty image", ErrDecode)
	}
	return p.FromImage(img), nil
}

// FromImage resizes and normalizes an already decoded image. Alpha is
// dropped, not multiplied into the colour channels.
func (p *Preprocessor) FromImage(img image.Image) Tensor {
	resized := resize.Resize(ImageSize, ImageSize, straightAlpha(img), resize.NearestNeighbor)
	bounds := resized.Bounds()

	data := make([]float32, ImageSize*ImageSize*Channels)
	for y := 0; y < ImageSize; y++ {
		for x := 0; x < ImageSize; x++ {
			c := color.NRGBAModel.Convert(resized.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.NRGBA)

			i := (y*ImageSize + x) * Channels
			data[i] = p.norm.apply(uint32(c.R))
			data[i+1] = p.norm.apply(uint32(c.G))
			data[i+2] = p.norm.apply(uint32(c.B))
		}
	}

	shape := make([]int64, len(InputShape))
	copy(shape, InputShape)
	return Tensor{Shape: shape, Data: data}
}

// straightAlpha returns img as *image.NRGBA unless it is fully opaque, so
// the resize keeps un-premultiplied colour values.
func straightAlpha(img image.Image) image.Image {
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		return img
	}
	if n, ok := img.(*image.NRGBA); ok {
		return n
	}
	b := img.Bounds()
	out := image.NewNRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			out.SetNRGBA(x, y, color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA))
		}
	}
	return out
}

// TensorFromValues wraps an already normalized NHWC buffer.
func TensorFromValues(values []float32) (Tensor, error) {
	want := ImageSize * ImageSize * Channels
	if len(values) != want {
		return Tensor{}, fmt.Errorf("expected %d values, got %d", want, len(values))
	}
	data := make([]float32, want)
	copy(data, values)
	shape := make([]int64, len(InputShape))
	copy(shape, InputShape)
	return Tensor{Shape: shape, Data: data}, nil
}
