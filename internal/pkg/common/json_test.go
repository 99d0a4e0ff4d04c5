package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCarveJSON(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    string
	}{
		{"bare object", `{"a":1}`, `{"a":1}`},
		{"leading text", "好的，結果如下：\n{\"a\":1}", `{"a":1}`},
		{"trailing text", `{"a":1}` + "\n希望有幫助", `{"a":1}`},
		{"code fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"no object", "完全沒有 JSON", "完全沒有 JSON"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, CarveJSON(c.content), c.name)
	}
}

func TestParseJSONRejectsTrailingData(t *testing.T) {
	var v map[string]interface{}
	assert.Error(t, ParseJSON(`{"a":1} {"b":2}`, &v))
}

func TestParseJSONStrictRejectsUnknownFields(t *testing.T) {
	var v struct {
		A int `json:"a"`
	}
	require.NoError(t, ParseJSON(`{"a":1,"extra":true}`, &v))
	assert.Error(t, ParseJSONStrict(`{"a":1,"extra":true}`, &v))
}

func TestQuoteJSONKeys(t *testing.T) {
	assert.Equal(t, `{"a": 1, "b": "x"}`, QuoteJSONKeys(`{a: 1, b: "x"}`))
}
