package sanitize

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"script tag", `Hello <script>alert('xss')</script> World`, `Hello  World`},
		{"inline event handler", `<div onclick="alert('xss')">Click me</div>`, `Click me`},
		{"iframe", `Safe text <iframe src="evil.com"></iframe> more text`, `Safe text  more text`},
		{"ampersand survives", `R&D Engineer`, `R&D Engineer`},
		{"quotes survive", `"Go" developer's role`, `"Go" developer's role`},
		{"trims", "  B.Tech  ", "B.Tech"},
		{"empty", "", ""},
		{"encoded script", "&lt;script&gt;alert(1)&lt;/script&gt;", ""},
		{"encoded tag keeps text", "&lt;b&gt;Go&lt;/b&gt; developer", "Go developer"},
		{"double encoded tag", "&amp;lt;i&amp;gt;x&amp;lt;/i&amp;gt;", "x"},
		{"encoded ampersand", "R&amp;D", "R&D"},
		{"less than in prose", "CGPA < 7 not eligible", "CGPA < 7 not eligible"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, Text(tt.input))
		})
	}
}

func TestOptionalText(t *testing.T) {
	require.Nil(t, OptionalText(nil))

	in := "<b>Go</b>, SQL"
	out := OptionalText(&in)
	require.NotNil(t, out)
	require.Equal(t, "Go, SQL", *out)
}

func TestText_OutputHasNoMarkup(t *testing.T) {
	inputs := []string{
		"&lt;img src=x onerror=alert(1)&gt;",
		"&#60;script&#62;alert(1)&#60;/script&#62;",
		"<scr<script>ipt>alert(1)</script>",
	}
	for _, in := range inputs {
		out := Text(in)
		require.NotContains(t, out, "<script", in)
		require.NotContains(t, out, "<img", in)
		require.Equal(t, out, Text(out), in)
	}
}
