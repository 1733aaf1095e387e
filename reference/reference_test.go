package reference

import (
	"strings"
	"testing"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// Validate
// ---------------------------------------------------------------------------

func TestValidate_Accepts(t *testing.T) {
	refs := []string{
		"https://gateway.pinata.cloud/ipfs/QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG",
		"ipfs://bafkreigh2akiscaildcqabsyg3dfr6chu3fgpregiymsck7e7aqa4s52zy",
		"x",
		"ünïcödé/ok",
	}
	for _, ref := range refs {
		assert.NoError(t, Validate(ref, 0), ref)
	}
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		ref    string
		maxLen int
	}{
		{"empty", "", 0},
		{"blank", "  \t ", 0},
		{"too_long_default", strings.Repeat("a", DefaultMaxLen+1), 0},
		{"too_long_custom", "abcdef", 5},
		{"newline", "a\nb", 0},
		{"nul", "a\x00b", 0},
		{"bad_utf8", "a\xffb", 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, Validate(tc.ref, tc.maxLen), ErrInvalidReference)
		})
	}
}

func TestValidate_ExactlyAtLimit(t *testing.T) {
	assert.NoError(t, Validate(strings.Repeat("a", 10), 10))
}

// ---------------------------------------------------------------------------
// Describe
// ---------------------------------------------------------------------------

func testCID(t *testing.T, data string) cid.Cid {
	t.Helper()
	sum, err := multihash.Sum([]byte(data), multihash.SHA2_256, -1)
	require.NoError(t, err)
	return cid.NewCidV1(cid.Raw, sum)
}

func TestDescribe_GatewayURL(t *testing.T) {
	c := testCID(t, "hello")
	info := Describe("https://gateway.pinata.cloud/ipfs/" + c.String())

	assert.Equal(t, c.String(), info.Name)
	assert.Equal(t, c.String(), info.CID)
	assert.Equal(t, "sha2-256", info.HashFunc)
	assert.Equal(t, "File", info.Kind)
	assert.False(t, info.IsImage)
}

func TestDescribe_GatewayURLWithFilename(t *testing.T) {
	c := testCID(t, "pic")
	info := Describe("https://ipfs.io/ipfs/" + c.String() + "/holiday.JPG")

	assert.Equal(t, "holiday.JPG", info.Name)
	assert.Equal(t, "jpg", info.Extension)
	assert.Equal(t, "JPEG Image", info.Kind)
	assert.Equal(t, "image/jpeg", info.MimeType)
	assert.True(t, info.IsImage)
	assert.Equal(t, c.String(), info.CID)
}

func TestDescribe_BareCID(t *testing.T) {
	c := testCID(t, "bare")
	info := Describe(c.String())
	assert.Equal(t, c.String(), info.CID)
}

func TestDescribe_Kinds(t *testing.T) {
	tests := []struct {
		ref     string
		kind    string
		isImage bool
	}{
		{"https://x/report.pdf", "PDF Document", false},
		{"https://x/notes.docx", "Word Document", false},
		{"https://x/a.webp", "File", true},
		{"https://x/song.mp3", "MP3 Audio", false},
		{"https://x/archive.rar", "RAR Archive", false},
		{"https://x/noext", "File", false},
	}
	for _, tc := range tests {
		t.Run(tc.ref, func(t *testing.T) {
			info := Describe(tc.ref)
			assert.Equal(t, tc.kind, info.Kind)
			assert.Equal(t, tc.isImage, info.IsImage)
			assert.Empty(t, info.CID)
		})
	}
}

func TestDescribe_EmptyPathFallsBackToFile(t *testing.T) {
	assert.Equal(t, "file", Describe("https://example.com/").Name)
}
