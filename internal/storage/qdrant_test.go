package storage_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"talent-match-go/internal/config"
	"talent-match-go/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testVectorDim = 4

// collectionInfoBody 构造GET /collections/{name}的标准响应体
func collectionInfoBody(size int, distance string) string {
	return fmt.Sprintf(`{"result":{"status":"green","config":{"params":{"vectors":{"size":%d,"distance":"%s"}}}},"status":"ok","time":0.001}`, size, distance)
}

// newExistingCollectionsServer 模拟两个集合均已存在的Qdrant服务器
func newExistingCollectionsServer(t *testing.T, extra func(w http.ResponseWriter, r *http.Request) bool) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if extra != nil && extra(w, r) {
			return
		}
		if r.Method == http.MethodGet && (r.URL.Path == "/collections/people" || r.URL.Path == "/collections/positions") {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, collectionInfoBody(testVectorDim, "Cosine"))
			return
		}
		t.Errorf("收到未预期的请求: %s %s", r.Method, r.URL.Path)
		w.WriteHeader(http.StatusInternalServerError)
	}))
}

func newTestQdrant(t *testing.T, endpoint string) *storage.Qdrant {
	t.Helper()
	q, err := storage.NewQdrant(&config.QdrantConfig{
		Endpoint:  endpoint,
		Dimension: testVectorDim,
	})
	require.NoError(t, err, "初始化Qdrant客户端不应失败")
	return q
}

func TestNewQdrant_ExistingCollections(t *testing.T) {
	srv := newExistingCollectionsServer(t, nil)
	defer srv.Close()

	q := newTestQdrant(t, srv.URL)
	assert.NotNil(t, q)
}

func TestNewQdrant_CreatesMissingCollections(t *testing.T) {
	var mu sync.Mutex
	created := map[string]bool{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet:
			// 两个集合均不存在，触发创建
			w.WriteHeader(http.StatusNotFound)
		case r.Method == http.MethodPut:
			var body struct {
				Vectors struct {
					Size     int    `json:"size"`
					Distance string `json:"distance"`
				} `json:"vectors"`
			}
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, testVectorDim, body.Vectors.Size, "创建集合应使用配置的向量维度")
			assert.Equal(t, "Cosine", body.Vectors.Distance)

			mu.Lock()
			created[r.URL.Path] = true
			mu.Unlock()

			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"result":true,"status":"ok","time":0.002}`)
		default:
			t.Errorf("收到未预期的请求: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	newTestQdrant(t, srv.URL)

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, created["/collections/people"], "应创建people集合")
	assert.True(t, created["/collections/positions"], "应创建positions集合")
}

func TestNewQdrant_InitFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := storage.NewQdrant(&config.QdrantConfig{Endpoint: srv.URL, Dimension: testVectorDim})
	require.Error(t, err, "集合检查失败时初始化应报错")
}

func TestPointID_Deterministic(t *testing.T) {
	id1 := storage.PointID("people", "cand-001")
	id2 := storage.PointID("people", "cand-001")
	assert.Equal(t, id1, id2, "同一集合同一实体的点ID必须稳定")

	// 不同集合或不同实体必须得到不同的点ID
	assert.NotEqual(t, id1, storage.PointID("positions", "cand-001"))
	assert.NotEqual(t, id1, storage.PointID("people", "cand-002"))
}

func TestQdrant_UpsertEntityVector(t *testing.T) {
	var mu sync.Mutex
	var upserted struct {
		Points []struct {
			ID      string                 `json:"id"`
			Vector  []float64              `json:"vector"`
			Payload map[string]interface{} `json:"payload"`
		} `json:"points"`
	}

	srv := newExistingCollectionsServer(t, func(w http.ResponseWriter, r *http.Request) bool {
		if r.Method == http.MethodPut && r.URL.Path == "/collections/people/points" {
			mu.Lock()
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&upserted))
			mu.Unlock()
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"result":{"status":"completed"},"status":"ok","time":0.003}`)
			return true
		}
		return false
	})
	defer srv.Close()

	q := newTestQdrant(t, srv.URL)

	vector := []float64{0.1, 0.2, 0.3, 0.4}
	err := q.UpsertEntityVector(context.Background(), "people", "cand-001", vector, map[string]interface{}{"kind": "person"})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, upserted.Points, 1)
	point := upserted.Points[0]
	assert.Equal(t, storage.PointID("people", "cand-001"), point.ID, "点ID应由集合名与实体ID确定性派生")
	assert.Equal(t, vector, point.Vector)
	assert.Equal(t, "cand-001", point.Payload["entity_id"], "payload中应回填实体ID")
	assert.Equal(t, "person", point.Payload["kind"])
}

func TestQdrant_UpsertEntityVector_DimensionMismatch(t *testing.T) {
	srv := newExistingCollectionsServer(t, nil)
	defer srv.Close()

	q := newTestQdrant(t, srv.URL)

	err := q.UpsertEntityVector(context.Background(), "people", "cand-001", []float64{0.1, 0.2}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "维度", "维度不匹配应在本地拦截")
}

func TestQdrant_UpsertEntityVector_EmptyVectorDeletesPoint(t *testing.T) {
	var mu sync.Mutex
	var deletedIDs []string

	srv := newExistingCollectionsServer(t, func(w http.ResponseWriter, r *http.Request) bool {
		if r.Method == http.MethodPost && r.URL.Path == "/collections/people/points/delete" {
			var body struct {
				Points []string `json:"points"`
			}
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			mu.Lock()
			deletedIDs = append(deletedIDs, body.Points...)
			mu.Unlock()
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"result":{"status":"completed"},"status":"ok","time":0.001}`)
			return true
		}
		return false
	})
	defer srv.Close()

	q := newTestQdrant(t, srv.URL)

	// 零技能实体的空向量应转化为删除既有点，而不是写入空点
	err := q.UpsertEntityVector(context.Background(), "people", "cand-empty", nil, nil)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, deletedIDs, 1)
	assert.Equal(t, storage.PointID("people", "cand-empty"), deletedIDs[0])
}

func TestQdrant_SearchSimilar(t *testing.T) {
	srv := newExistingCollectionsServer(t, func(w http.ResponseWriter, r *http.Request) bool {
		if r.Method == http.MethodPost && r.URL.Path == "/collections/positions/points/search" {
			var body struct {
				Vector      []float64 `json:"vector"`
				Limit       int       `json:"limit"`
				WithPayload bool      `json:"with_payload"`
			}
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, 2, body.Limit)
			assert.True(t, body.WithPayload, "检索必须携带payload以还原实体ID")

			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{
				"result": [
					{"id":"11111111-1111-1111-1111-111111111111","score":0.93,"payload":{"entity_id":"pos-007","kind":"position"}},
					{"id":"22222222-2222-2222-2222-222222222222","score":0.81,"payload":{}}
				],
				"status":"ok","time":0.004
			}`)
			return true
		}
		return false
	})
	defer srv.Close()

	q := newTestQdrant(t, srv.URL)

	hits, err := q.SearchSimilar(context.Background(), "positions", []float64{0.5, 0.5, 0.5, 0.5}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)

	// payload中有entity_id时以其为准
	assert.Equal(t, "pos-007", hits[0].ID)
	assert.InDelta(t, 0.93, hits[0].Similarity, 1e-9)
	assert.Equal(t, "position", hits[0].Metadata["kind"])

	// payload缺失entity_id时回退到点ID
	assert.Equal(t, "22222222-2222-2222-2222-222222222222", hits[1].ID)
	assert.InDelta(t, 0.81, hits[1].Similarity, 1e-9)
}

func TestQdrant_SearchSimilar_DimensionMismatch(t *testing.T) {
	srv := newExistingCollectionsServer(t, nil)
	defer srv.Close()

	q := newTestQdrant(t, srv.URL)

	_, err := q.SearchSimilar(context.Background(), "people", []float64{0.1}, 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "维度")
}

func TestQdrant_SearchSimilar_ServerError(t *testing.T) {
	srv := newExistingCollectionsServer(t, func(w http.ResponseWriter, r *http.Request) bool {
		if r.Method == http.MethodPost && r.URL.Path == "/collections/people/points/search" {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"status":{"error":"internal error"}}`)
			return true
		}
		return false
	})
	defer srv.Close()

	q := newTestQdrant(t, srv.URL)

	_, err := q.SearchSimilar(context.Background(), "people", []float64{0.1, 0.2, 0.3, 0.4}, 5)
	require.Error(t, err, "非2xx响应应向上传播为错误")
}

func TestQdrant_CountPoints(t *testing.T) {
	srv := newExistingCollectionsServer(t, func(w http.ResponseWriter, r *http.Request) bool {
		if r.Method == http.MethodPost && r.URL.Path == "/collections/people/points/count" {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"result":{"count":42},"status":"ok","time":0.001}`)
			return true
		}
		return false
	})
	defer srv.Close()

	q := newTestQdrant(t, srv.URL)

	count, err := q.CountPoints(context.Background(), "people")
	require.NoError(t, err)
	assert.Equal(t, int64(42), count)
}
