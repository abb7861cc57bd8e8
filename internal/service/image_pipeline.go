package service

import (
	"bytes"
	"image"
	_ "image/gif"  // register decoders for uploaded formats
	_ "image/jpeg"
	_ "image/png"
	"mime"
	"net/http"
	"strings"

	"flatnest/internal/models"

	"github.com/chai2010/webp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register WebP decoder
)

const (
	maxUploadSizeBytes = 10 * 1024 * 1024
	maxImageDimension  = 2048
	webpQuality        = 80
)

// prepareImage validates and normalizes an uploaded image: size and MIME
// checks, decode, downscale to the dimension cap, re-encode as WebP.
func prepareImage(content []byte, contentType string) ([]byte, error) {
	if len(content) == 0 {
		return nil, models.NewValidationError("No file uploaded")
	}
	if len(content) > maxUploadSizeBytes {
		return nil, models.NewValidationError("File too large (max 10MB)")
	}

	detected := http.DetectContentType(content)
	if !isAllowedImageMIME(detected) {
		return nil, models.NewValidationError("Invalid image type")
	}
	if provided := normalizeContentType(contentType); strings.HasPrefix(provided, "image/") && !isAllowedImageMIME(provided) {
		return nil, models.NewValidationError("Invalid image content type")
	}

	decoded, _, err := image.Decode(bytes.NewReader(content))
	if err != nil {
		return nil, models.NewValidationError("Invalid image file")
	}

	resized := resizeToFit(decoded, maxImageDimension, maxImageDimension)

	encoded, err := encodeWebP(resized, webpQuality)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return encoded, nil
}

func resizeToFit(src image.Image, maxWidth, maxHeight int) image.Image {
	bounds := src.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()
	if w <= 0 || h <= 0 {
		return src
	}
	if w <= maxWidth && h <= maxHeight {
		return src
	}

	scaleW := float64(maxWidth) / float64(w)
	scaleH := float64(maxHeight) / float64(h)
	scale := scaleW
	if scaleH < scale {
		scale = scaleH
	}
	newW := int(float64(w) * scale)
	newH := int(float64(h) * scale)
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}

func encodeWebP(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := webp.Encode(buf, img, &webp.Options{Quality: float32(quality)}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func isAllowedImageMIME(contentType string) bool {
	switch normalizeContentType(contentType) {
	case "image/jpeg", "image/jpg", "image/png", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}

func normalizeContentType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}
