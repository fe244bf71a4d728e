// Package sniffer identifies attachment formats from their leading bytes.
// Clients routinely mislabel scans, so the declared Content-Type is only
// ever compared against what the bytes say.
package sniffer

import (
	"bytes"
	"errors"
	"mime"
	"net/textproto"
	"strings"
)

type MediaType string

const (
	TypeJPEG MediaType = "jpeg"
	TypePNG  MediaType = "png"
	TypeGIF  MediaType = "gif"
	TypeWEBP MediaType = "webp"
	TypeTIFF MediaType = "tiff"
	TypePDF  MediaType = "pdf"
)

// HeadSize is how many leading bytes DetectHead needs at most.
const HeadSize = 512

var ErrUnknownType = errors.New("unknown media type")

type Result struct {
	Type MediaType
	MIME string
}

// Extension is the file extension used for stored objects.
func (r Result) Extension() string {
	switch r.Type {
	case TypeJPEG:
		return "jpg"
	case TypeTIFF:
		return "tif"
	}
	return string(r.Type)
}

// IsImage reports whether the format can be shown as an avatar.
func (r Result) IsImage() bool {
	return strings.HasPrefix(r.MIME, "image/") && r.Type != TypeTIFF
}

type signature struct {
	result Result
	match  func(head []byte) bool
}

func prefix(magic ...string) func([]byte) bool {
	return func(head []byte) bool {
		for _, m := range magic {
			if bytes.HasPrefix(head, []byte(m)) {
				return true
			}
		}
		return false
	}
}

var signatures = []signature{
	{Result{TypeJPEG, "image/jpeg"}, prefix("\xff\xd8\xff")},
	{Result{TypePNG, "image/png"}, prefix("\x89PNG\r\n\x1a\n")},
	{Result{TypeGIF, "image/gif"}, prefix("GIF87a", "GIF89a")},
	{Result{TypeWEBP, "image/webp"}, func(head []byte) bool {
		return len(head) >= 12 && bytes.Equal(head[:4], []byte("RIFF")) && bytes.Equal(head[8:12], []byte("WEBP"))
	}},
	// little and big endian TIFF, as produced by document scanners
	{Result{TypeTIFF, "image/tiff"}, prefix("II*\x00", "MM\x00*")},
	{Result{TypePDF, "application/pdf"}, prefix("%PDF-")},
}

func DetectHead(head []byte) (Result, error) {
	for _, sig := range signatures {
		if sig.match(head) {
			return sig.result, nil
		}
	}
	return Result{}, ErrUnknownType
}

// DeclaredMimeType returns the media type of a multipart part's Content-Type
// header without parameters. application/octet-stream counts as undeclared.
func DeclaredMimeType(header textproto.MIMEHeader) string {
	raw := header.Get("Content-Type")
	if raw == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(raw)
	if err != nil {
		mediaType, _, _ = strings.Cut(raw, ";")
	}
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))
	if mediaType == "application/octet-stream" {
		return ""
	}
	return mediaType
}
