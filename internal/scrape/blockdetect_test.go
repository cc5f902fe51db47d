package scrape

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectBlock(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		resp   *http.Response
		body   string
		want   bool
		wantBT BlockType
	}{
		{
			name:   "cloudflare 403 header",
			resp:   &http.Response{StatusCode: 403, Header: http.Header{"Cf-Ray": {"abc123"}}},
			want:   true,
			wantBT: BlockCloudflare,
		},
		{
			name:   "cloudflare 503 server",
			resp:   &http.Response{StatusCode: 503, Header: http.Header{"Server": {"cloudflare"}}},
			want:   true,
			wantBT: BlockCloudflare,
		},
		{
			name:   "perimeterx wall",
			resp:   &http.Response{StatusCode: 200, Header: http.Header{}},
			body:   `<div id="px-captcha"></div>`,
			want:   true,
			wantBT: BlockPerimeterX,
		},
		{
			name:   "recaptcha",
			resp:   &http.Response{StatusCode: 200, Header: http.Header{}},
			body:   "Please complete the reCAPTCHA to continue",
			want:   true,
			wantBT: BlockCaptcha,
		},
		{
			name:   "access denied",
			resp:   &http.Response{StatusCode: 403, Header: http.Header{}},
			body:   "<h1>Access Denied</h1>",
			want:   true,
			wantBT: BlockAccessDeny,
		},
		{
			name:   "listing json",
			resp:   &http.Response{StatusCode: 200, Header: http.Header{}},
			body:   `{"success":true,"data":{"bedrooms":3}}`,
			want:   false,
			wantBT: BlockNone,
		},
		{
			name:   "nil response",
			want:   false,
			wantBT: BlockNone,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blocked, bt := DetectBlock(tt.resp, []byte(tt.body))
			assert.Equal(t, tt.want, blocked)
			assert.Equal(t, tt.wantBT, bt)
		})
	}
}
