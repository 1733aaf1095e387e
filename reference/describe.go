package reference

import (
	"net/url"
	"path"
	"strings"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// Info is a presentation-only summary of a reference.
type Info struct {
	Name      string // last path segment, or "file"
	Extension string // lowercase, without the dot
	Kind      string // human-readable type, e.g. "PDF Document"
	MimeType  string
	IsImage   bool
	CID       string // canonical CID string when the reference names IPFS content
	HashFunc  string // multihash function name of CID, e.g. "sha2-256"
}

var kinds = map[string]string{
	"pdf":  "PDF Document",
	"doc":  "Word Document",
	"docx": "Word Document",
	"txt":  "Text File",
	"jpg":  "JPEG Image",
	"jpeg": "JPEG Image",
	"png":  "PNG Image",
	"gif":  "GIF Image",
	"mp4":  "MP4 Video",
	"avi":  "AVI Video",
	"mov":  "MOV Video",
	"mp3":  "MP3 Audio",
	"wav":  "WAV Audio",
	"zip":  "ZIP Archive",
	"rar":  "RAR Archive",
}

var imageExts = map[string]bool{
	"jpg": true, "jpeg": true, "png": true, "gif": true, "bmp": true, "webp": true,
}

// Describe derives display metadata from ref. It never fails; unknown
// shapes yield Kind "File" and an empty CID.
func Describe(ref string) Info {
	p := ref
	if u, err := url.Parse(ref); err == nil && u.Path != "" {
		p = u.Path
	}
	p = strings.TrimRight(p, "/")

	info := Info{Name: path.Base(p)}
	if info.Name == "." || info.Name == "/" || info.Name == "" {
		info.Name = "file"
	}

	if ext := path.Ext(info.Name); ext != "" {
		info.Extension = strings.ToLower(ext[1:])
	}
	info.Kind = kinds[info.Extension]
	if info.Kind == "" {
		info.Kind = "File"
	}
	info.IsImage = imageExts[info.Extension]
	info.MimeType = mimeType(info.Extension)

	if c, ok := findCID(p); ok {
		info.CID = c.String()
		if dec, err := multihash.Decode(c.Hash()); err == nil {
			info.HashFunc = dec.Name
		}
	}
	return info
}

// findCID returns the content identifier in a gateway path
// (".../ipfs/<cid>[/...]") or a bare CID.
func findCID(p string) (cid.Cid, bool) {
	segments := strings.Split(strings.Trim(p, "/"), "/")
	for i, seg := range segments {
		if seg == "ipfs" && i+1 < len(segments) {
			if c, err := cid.Decode(segments[i+1]); err == nil {
				return c, true
			}
		}
	}
	if len(segments) == 1 {
		if c, err := cid.Decode(strings.TrimPrefix(segments[0], "ipfs:")); err == nil {
			return c, true
		}
	}
	return cid.Undef, false
}

func mimeType(ext string) string {
	switch ext {
	case "txt":
		return "text/plain"
	case "html", "htm":
		return "text/html"
	case "json":
		return "application/json"
	case "pdf":
		return "application/pdf"
	case "doc":
		return "application/msword"
	case "docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case "png":
		return "image/png"
	case "jpg", "jpeg":
		return "image/jpeg"
	case "gif":
		return "image/gif"
	case "bmp":
		return "image/bmp"
	case "webp":
		return "image/webp"
	case "mp4":
		return "video/mp4"
	case "mov":
		return "video/quicktime"
	case "avi":
		return "video/x-msvideo"
	case "mp3":
		return "audio/mpeg"
	case "wav":
		return "audio/wav"
	case "zip":
		return "application/zip"
	case "rar":
		return "application/vnd.rar"
	default:
		return "application/octet-stream"
	}
}
