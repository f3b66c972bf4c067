package matching

import "math"

// CosineSimilarity 计算两个向量的余弦相似度 dot(a,b)/(‖a‖·‖b‖)。
// 任一向量长度为零或范数为零时返回0.0，绝不产生除零错误。
func CosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0.0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0.0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
