package repository

import (
	"sort"

	"github.com/johnpham4/legal-rag-llm/internal/model"
)

// RRFConstant 是倒数排名融合的平滑常数。
const RRFConstant = 60

// FuseRRF 以倒数排名融合合并多路结果：score(d) = Σ 1/(k + rank)，rank 从 1 开始。
// 同分时保留首次出现的顺序（先遍历的列表优先），结果截断到 limit。
func FuseRRF(lists [][]model.EmbeddedChunk, k, limit int) []model.EmbeddedChunk {
	type fused struct {
		chunk model.EmbeddedChunk
		score float64
		first int
	}
	byID := make(map[string]*fused)
	order := 0
	for _, list := range lists {
		for rank, c := range list {
			f, ok := byID[c.ID]
			if !ok {
				f = &fused{chunk: c, first: order}
				byID[c.ID] = f
				order++
			}
			f.score += 1.0 / float64(k+rank+1)
		}
	}

	all := make([]*fused, 0, len(byID))
	for _, f := range byID {
		all = append(all, f)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].score != all[j].score {
			return all[i].score > all[j].score
		}
		return all[i].first < all[j].first
	})
	if limit >= 0 && len(all) > limit {
		all = all[:limit]
	}

	out := make([]model.EmbeddedChunk, len(all))
	for i, f := range all {
		out[i] = f.chunk
	}
	return out
}
