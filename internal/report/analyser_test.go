// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package report

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pdiddy/doc-conv-agent/pkg/types"
)

func TestAnalyse(t *testing.T) {
	tests := []struct {
		name        string
		report      string
		wantCode    string
		wantPayload string
	}{
		{
			name:        "valid payload",
			report:      `{"info":{"id":42},"signatures":[],"converted":"SGVsbG8="}`,
			wantCode:    types.CodeSuccess,
			wantPayload: "Hello",
		},
		{
			name:        "payload with MIME line breaks",
			report:      `{"info":{"id":42},"signatures":[],"converted":"SGVs\nbG8=\n"}`,
			wantCode:    types.CodeSuccess,
			wantPayload: "Hello",
		},
		{
			name:        "harmless signatures are ignored",
			report:      `{"info":{"id":42},"signatures":[{"name":"antivm_generic"}],"converted":"SGVsbG8="}`,
			wantCode:    types.CodeSuccess,
			wantPayload: "Hello",
		},
		{
			name:     "blacklisted signature wins over valid payload",
			report:   `{"info":{"id":42},"signatures":[{"name":"abnormal_doc","description":"writes outside temp"}],"converted":"SGVsbG8="}`,
			wantCode: types.CodeSignatureDetected,
		},
		{
			name:     "blacklisted signature wins over missing payload",
			report:   `{"info":{"id":42},"signatures":[{"name":"dropper"}]}`,
			wantCode: types.CodeSignatureDetected,
		},
		{
			name:     "missing converted field",
			report:   `{"info":{"id":42},"signatures":[]}`,
			wantCode: types.CodeNoPayload,
		},
		{
			name:     "empty converted field",
			report:   `{"info":{"id":42},"signatures":[],"converted":""}`,
			wantCode: types.CodeEmptyPayload,
		},
		{
			name:     "undecodable converted field",
			report:   `{"info":{"id":42},"signatures":[],"converted":"not base64!!"}`,
			wantCode: types.CodeDecodeError,
		},
		{
			name:     "blacklisted signature wins over malformed converted field",
			report:   `{"signatures":[{"name":"abnormal_doc"}],"converted":5}`,
			wantCode: types.CodeSignatureDetected,
		},
		{
			name:     "blacklisted signature wins over malformed info",
			report:   `{"info":"n/a","signatures":[{"name":1},{"name":"dropper","description":7}],"converted":"SGVsbG8="}`,
			wantCode: types.CodeSignatureDetected,
		},
		{
			name:     "null converted field",
			report:   `{"info":{"id":42},"signatures":[],"converted":null}`,
			wantCode: types.CodeEmptyPayload,
		},
		{
			name:     "non-string converted field",
			report:   `{"info":{"id":42},"signatures":[],"converted":5}`,
			wantCode: types.CodeDecodeError,
		},
		{
			name:        "malformed signatures do not hide the payload",
			report:      `{"info":{"id":42},"signatures":"none","converted":"SGVsbG8="}`,
			wantCode:    types.CodeSuccess,
			wantPayload: "Hello",
		},
		{
			name:     "malformed report",
			report:   `{"info":`,
			wantCode: types.CodeNoPayload,
		},
	}

	a := NewAnalyser([]string{"abnormal_doc", " dropper ", ""})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := a.Analyse([]byte(tt.report))
			assert.Equal(t, tt.wantCode, out.Code)
			assert.Equal(t, tt.wantCode == types.CodeSuccess, out.OK())
			if tt.wantPayload != "" {
				assert.Equal(t, tt.wantPayload, string(out.Payload))
			} else {
				assert.Nil(t, out.Payload, "failed outcomes never carry a payload")
			}
		})
	}
}

func TestAnalyse_EmptyBlacklist(t *testing.T) {
	a := NewAnalyser(nil)
	out := a.Analyse([]byte(`{"signatures":[{"name":"abnormal_doc"}],"converted":"SGVsbG8="}`))
	assert.True(t, out.OK())
	assert.Equal(t, []byte("Hello"), out.Payload)
}
