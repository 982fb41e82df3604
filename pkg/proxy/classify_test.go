package proxy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tidwall/gjson"

	"github.com/tarsyio/llmproxy/pkg/storage"
)

func TestTenantFromHost(t *testing.T) {
	cases := map[string]string{
		"acme.llmproxy.example:443": "acme",
		"acme:8080":                 "acme",
		"acme":                      "acme",
		"acme.example":              "acme",
	}
	for host, want := range cases {
		assert.Equal(t, want, tenantFromHost(host), host)
	}
}

func TestClassifyRequestType_Quota(t *testing.T) {
	body := []byte(`{"messages":[{"role":"user","content":"  Quota  "}]}`)
	assert.Equal(t, storage.RequestTypeQuota, classifyRequestType(body))
}

func TestClassifyRequestType_QueryEvaluation_NoSystemMessage(t *testing.T) {
	body := []byte(`{"messages":[{"role":"user","content":"hello"}]}`)
	assert.Equal(t, storage.RequestTypeQueryEvaluation, classifyRequestType(body))
}

func TestClassifyRequestType_QueryEvaluation_OneSystemMessage(t *testing.T) {
	body := []byte(`{"system":"be concise","messages":[{"role":"user","content":"hello"},{"role":"assistant","content":"hi"},{"role":"user","content":"again"}]}`)
	assert.Equal(t, storage.RequestTypeQueryEvaluation, classifyRequestType(body))
}

func TestClassifyRequestType_Inference_MultipleSystemBlocks(t *testing.T) {
	body := []byte(`{"system":[{"type":"text","text":"one"},{"type":"text","text":"two"}],"messages":[{"role":"user","content":"hello"}]}`)
	assert.Equal(t, storage.RequestTypeInference, classifyRequestType(body))
}

func TestClassifyRequestType_EmptyBodyIsHealthCheck(t *testing.T) {
	assert.Equal(t, storage.RequestTypeHealthCheck, classifyRequestType(nil))
}

func TestSystemMessageCount_RoleSystemEntriesCount(t *testing.T) {
	body := []byte(`{"messages":[{"role":"system","content":"a"},{"role":"system","content":"b"},{"role":"user","content":"c"}]}`)
	assert.Equal(t, 2, systemMessageCount(body))
}

func TestExtractMessageText_ConcatenatesTextBlocks(t *testing.T) {
	body := []byte(`{"messages":[{"role":"user","content":[{"type":"text","text":"hello"},{"type":"tool_use","name":"x"},{"type":"text","text":"world"}]}]}`)
	content := gjson.GetBytes(body, "messages.0.content")
	assert.Equal(t, "hello\nworld", extractMessageText(content))
}
