package embedding_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"talent-match-go/internal/config"
	"talent-match-go/internal/embedding"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAliyunEmbedder(t *testing.T) {
	emb, err := embedding.NewAliyunEmbedder("sk-test", config.EmbeddingConfig{Dimensions: 1024})
	require.NoError(t, err)
	assert.Equal(t, 1024, emb.GetDimensions())

	_, err = embedding.NewAliyunEmbedder("", config.EmbeddingConfig{})
	require.Error(t, err, "缺少API密钥应报错")
}

func TestAliyunEmbedder_EmbedStrings(t *testing.T) {
	var gotAuth string
	var gotBody struct {
		Input      interface{} `json:"input"`
		Model      string      `json:"model"`
		Dimensions int         `json:"dimensions"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"object": "list",
			"data": [
				{"object":"embedding","embedding":[0.1,0.2,0.3,0.4],"index":0},
				{"object":"embedding","embedding":[0.5,0.6,0.7,0.8],"index":1}
			],
			"model": "text-embedding-v3",
			"usage": {"prompt_tokens": 12, "total_tokens": 12}
		}`)
	}))
	defer srv.Close()

	emb, err := embedding.NewAliyunEmbedder("sk-test", config.EmbeddingConfig{
		Model:      "text-embedding-v3",
		Dimensions: 4,
		BaseURL:    srv.URL,
	})
	require.NoError(t, err)

	vectors, err := emb.EmbedStrings(context.Background(), []string{"候选人描述", "岗位描述"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float64{0.1, 0.2, 0.3, 0.4}, vectors[0])
	assert.Equal(t, []float64{0.5, 0.6, 0.7, 0.8}, vectors[1])

	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, "text-embedding-v3", gotBody.Model)
	assert.Equal(t, 4, gotBody.Dimensions)
	// 多文本时input为数组
	assert.IsType(t, []interface{}{}, gotBody.Input)
}

func TestAliyunEmbedder_EmbedStrings_SingleText(t *testing.T) {
	var gotInput interface{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotInput = body["input"]

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"object":"list","data":[{"object":"embedding","embedding":[1,0],"index":0}],"model":"text-embedding-v3","usage":{"prompt_tokens":3,"total_tokens":3}}`)
	}))
	defer srv.Close()

	emb, err := embedding.NewAliyunEmbedder("sk-test", config.EmbeddingConfig{Dimensions: 2, BaseURL: srv.URL})
	require.NoError(t, err)

	vectors, err := emb.EmbedStrings(context.Background(), []string{"单条文本"})
	require.NoError(t, err)
	require.Len(t, vectors, 1)

	// 单文本时input为字符串而非数组
	assert.Equal(t, "单条文本", gotInput)
}

func TestAliyunEmbedder_EmbedStrings_Empty(t *testing.T) {
	emb, err := embedding.NewAliyunEmbedder("sk-test", config.EmbeddingConfig{Dimensions: 4})
	require.NoError(t, err)

	vectors, err := emb.EmbedStrings(context.Background(), nil)
	require.NoError(t, err, "空输入不应触发API调用")
	assert.Empty(t, vectors)
}

func TestAliyunEmbedder_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"message":"Invalid API key","type":"invalid_request_error","code":"invalid_api_key"}`)
	}))
	defer srv.Close()

	emb, err := embedding.NewAliyunEmbedder("sk-bad", config.EmbeddingConfig{Dimensions: 4, BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = emb.EmbedStrings(context.Background(), []string{"文本"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Contains(t, err.Error(), "Invalid API key", "应携带API返回的详细错误")
}

func TestAliyunEmbedder_EmbeddedErrorIn200(t *testing.T) {
	// 某些API错误伴随200状态码返回
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"object":"list","data":[],"model":"text-embedding-v3","usage":{"prompt_tokens":0,"total_tokens":0},"error":{"message":"input too long","type":"invalid_request_error","code":"data_inspection_failed"}}`)
	}))
	defer srv.Close()

	emb, err := embedding.NewAliyunEmbedder("sk-test", config.EmbeddingConfig{Dimensions: 4, BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = emb.EmbedStrings(context.Background(), []string{"文本"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "input too long")
}

func TestAliyunEmbedder_RateLimitedRetry(t *testing.T) {
	// 配置限流器后，429响应应自动重试直至成功
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprint(w, `{"message":"Requests rate limit exceeded","type":"rate_limit_error","code":"429"}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"object":"list","data":[{"object":"embedding","embedding":[0.9,0.1],"index":0}],"model":"text-embedding-v3","usage":{"prompt_tokens":3,"total_tokens":3}}`)
	}))
	defer srv.Close()

	emb, err := embedding.NewAliyunEmbedder("sk-test", config.EmbeddingConfig{
		Dimensions:   2,
		BaseURL:      srv.URL,
		RateLimitQPM: 6000,
	})
	require.NoError(t, err)

	vectors, err := emb.EmbedStrings(context.Background(), []string{"文本"})
	require.NoError(t, err)
	require.Len(t, vectors, 1)
	assert.Equal(t, 2, calls, "首次429后应重试一次")
}
