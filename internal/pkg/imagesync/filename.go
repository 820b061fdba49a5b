package imagesync

import (
	"context"
	"regexp"

	"github.com/ManuelReschke/productimages/app/repository"
)

// Filenames following ITEMCODE_Name_Color.ext carry their own catalog data.
var imageNamePattern = regexp.MustCompile(`^(\w+)_([\w\- ]+)_([\w\-]+)\.(jpg|gif|png)$`)

// ImageData is the catalog data encoded in a conventional filename.
type ImageData struct {
	Filename string `json:"filename"`
	ItemCode string `json:"itemCode"`
	Name     string `json:"name"`
	Color    string `json:"color"`
}

// ParseImageFilename splits a conventional filename.
func ParseImageFilename(filename string) (ImageData, bool) {
	m := imageNamePattern.FindStringSubmatch(filename)
	if m == nil {
		return ImageData{}, false
	}
	return ImageData{Filename: m[0], ItemCode: m[1], Name: m[2], Color: m[3]}, true
}

// BuildImageData lists the catalog data of every stored image with a
// conventional filename.
func (e *Engine) BuildImageData(ctx context.Context) ([]ImageData, error) {
	images, err := e.images.Load(ctx, repository.Filter{})
	if err != nil {
		return nil, err
	}
	out := []ImageData{}
	for i := range images {
		if d, ok := ParseImageFilename(images[i].Filename); ok {
			out = append(out, d)
		}
	}
	return out, nil
}
