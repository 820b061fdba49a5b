package upload

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"
)

var (
	ErrUnsupportedType = errors.New("only JPG, JPEG, PNG, GIF, WEBP and BMP images are supported")
	ErrScriptContent   = errors.New("invalid file type: HTML content is not allowed")
	ErrSVGContent      = errors.New("SVG/XML files are not supported")
)

// mimeByExt lists the accepted uploads. SVG stays out until there is a
// sanitizer.
var mimeByExt = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".bmp":  "image/bmp",
}

var markupPrefixes = []struct {
	prefix string
	err    error
}{
	{"text/html", ErrScriptContent},
	{"application/xhtml", ErrScriptContent},
	{"text/xml", ErrSVGContent},
	{"application/xml", ErrSVGContent},
	{"image/svg+xml", ErrSVGContent},
}

// ValidateImageBySniff checks the extension of filename and the sniffed
// type of head. A renamed image, say a jpeg saved as .png, passes; the
// decoder goes by content. Returns the detected mime.
func ValidateImageBySniff(filename string, head []byte) (string, error) {
	if _, ok := mimeByExt[strings.ToLower(filepath.Ext(filename))]; !ok {
		return "", ErrUnsupportedType
	}

	detected := http.DetectContentType(head)
	for _, m := range markupPrefixes {
		if strings.HasPrefix(detected, m.prefix) {
			return "", m.err
		}
	}
	for _, mime := range mimeByExt {
		if mime == detected {
			return detected, nil
		}
	}
	return "", ErrUnsupportedType
}
