// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDefaults(t *testing.T) {
	var c AgentConfig
	c.ApplyDefaults()

	assert.Equal(t, DefaultPackage, c.Converter.Package)
	assert.Equal(t, DefaultTimeout, c.Converter.Timeout)
	assert.Equal(t, DefaultUserAgent, c.Converter.UserAgent)
	assert.Equal(t, DefaultConverterRetries, c.Converter.MaxRetries)
	assert.Equal(t, DefaultSubmitDelay, c.Submitter.Delay)
	assert.Equal(t, DefaultQueueWait, c.Submitter.QueueWait)
	assert.Equal(t, DefaultPollDelay, c.Poller.Delay)
	assert.Equal(t, DefaultMaxStatusErrors, c.Poller.MaxStatusErrors)
	assert.Equal(t, DefaultQueueCapacity, c.QueueCapacity)
	assert.Equal(t, DefaultResultExt, c.ResultExt)
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	c := AgentConfig{QueueCapacity: 3, ResultExt: ".html"}
	c.Poller.MaxStatusErrors = 9
	c.ApplyDefaults()

	assert.Equal(t, 3, c.QueueCapacity)
	assert.Equal(t, "html", c.ResultExt)
	assert.Equal(t, 9, c.Poller.MaxStatusErrors)
}

func TestValidate(t *testing.T) {
	var c AgentConfig
	err := c.Validate()
	require.Error(t, err)
	for _, key := range []string{"paths.target_dir", "paths.result_dir", "paths.error_dir", "converter.url", "converter.extensions"} {
		assert.Contains(t, err.Error(), key)
	}

	c = AgentConfig{
		Paths:     PathConfig{TargetDir: "t", ResultDir: "r", ErrorDir: "e"},
		Converter: ConverterConfig{URL: "http://sandbox", Extensions: []string{"doc"}},
	}
	assert.NoError(t, c.Validate())
	assert.NoError(t, c.Paths.Validate())
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		in   []string
		want []string
	}{
		{nil, nil},
		{[]string{""}, nil},
		{[]string{"doc,docx"}, []string{"doc", "docx"}},
		{[]string{" doc , ,xls "}, []string{"doc", "xls"}},
		{[]string{"doc", "docx,rtf"}, []string{"doc", "docx", "rtf"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SplitList(tt.in...), "%q", tt.in)
	}
}

func TestLocalStatusTerminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusRunning.Terminal())
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusError.Terminal())
}

func TestOutcome(t *testing.T) {
	ok := Succeeded([]byte("Hello"))
	assert.True(t, ok.OK())
	assert.Equal(t, CodeSuccess, ok.Code)

	bad := Failed(CodeDecodeError)
	assert.False(t, bad.OK())
	assert.Nil(t, bad.Payload)
}
