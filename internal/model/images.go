package model

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// ImageURL builds the CDN URL of img resized to width. It falls back to the
// original upload URL when no public id can be derived or base is empty.
func ImageURL(base string, img ImageInfo, width int) string {
	id := PublicID(img)
	if base == "" || id == "" {
		return img.URL
	}
	return fmt.Sprintf("%s/w_%d/%s.webp", strings.TrimRight(base, "/"), width, id)
}

// PublicID returns the CDN public id of img. When the record has none, it is
// derived from an upload URL of the form /.../v<digits>/<folder>/<name>.<ext>.
func PublicID(img ImageInfo) string {
	if img.PublicID != "" {
		return img.PublicID
	}
	if img.URL == "" {
		return ""
	}
	u, err := url.Parse(img.URL)
	if err != nil {
		return ""
	}
	parts := strings.FieldsFunc(u.Path, func(r rune) bool { return r == '/' })
	for i, p := range parts {
		if !isVersion(p) || i == len(parts)-1 {
			continue
		}
		rest := parts[i+1:]
		last := rest[len(rest)-1]
		rest[len(rest)-1] = strings.TrimSuffix(last, path.Ext(last))
		return strings.Join(rest, "/")
	}
	return ""
}

// CoverImage returns the first image of the listing, preferring the 800px rendition.
func (t Tyre) CoverImage() (ImageInfo, bool) {
	if len(t.Images) == 0 || len(t.Images[0]) == 0 {
		return ImageInfo{}, false
	}
	for _, img := range t.Images[0] {
		if img.Width == 800 {
			return img, true
		}
	}
	return t.Images[0][0], true
}

func isVersion(seg string) bool {
	if len(seg) < 2 || seg[0] != 'v' {
		return false
	}
	for _, r := range seg[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
