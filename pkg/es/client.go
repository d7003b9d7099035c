// Package es 提供了与 Elasticsearch 交互的客户端功能。
package es

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"

	"github.com/johnpham4/legal-rag-llm/internal/config"
	"github.com/johnpham4/legal-rag-llm/pkg/log"
)

// ESClient 是全局的 Elasticsearch 客户端，由 InitES 初始化。
var ESClient *elasticsearch.Client

// 片段索引中的字段名。
const (
	FieldID     = "id"
	FieldDense  = "dense"
	FieldSparse = "sparse"
)

// NewClient 根据配置创建一个 Elasticsearch 客户端，不做索引检查。
func NewClient(esCfg config.ElasticsearchConfig) (*elasticsearch.Client, error) {
	addresses := strings.Split(esCfg.Addresses, ",")
	for i := range addresses {
		addresses[i] = strings.TrimSpace(addresses[i])
	}
	return elasticsearch.NewClient(elasticsearch.Config{
		Addresses: addresses,
		Username:  esCfg.Username,
		Password:  esCfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	})
}

// InitES 初始化全局 Elasticsearch 客户端并确保片段索引存在。
func InitES(esCfg config.ElasticsearchConfig) error {
	client, err := NewClient(esCfg)
	if err != nil {
		return err
	}
	ESClient = client
	return EnsureIndex(client, esCfg.IndexName, esCfg.Dims)
}

// chunkIndexMapping 描述片段索引：元数据字段为 keyword 以支持精确过滤，
// dense 为 cosine 相似度的稠密向量，sparse 以 rank_features 存储稀疏向量（键为 t<词表下标>）。
func chunkIndexMapping(dims int) string {
	return fmt.Sprintf(`{
		"mappings": {
			"properties": {
				"id": { "type": "keyword" },
				"content": { "type": "text" },
				"document_id": { "type": "keyword" },
				"document_number": { "type": "keyword" },
				"document_type": { "type": "keyword" },
				"field": { "type": "keyword" },
				"link": { "type": "keyword", "index": false },
				"platform": { "type": "keyword" },
				"dense": {
					"type": "dense_vector",
					"dims": %d,
					"index": true,
					"similarity": "cosine"
				},
				"sparse": { "type": "rank_features" }
			}
		}
	}`, dims)
}

// EnsureIndex 检查索引是否存在，如果不存在则创建它。
func EnsureIndex(client *elasticsearch.Client, indexName string, dims int) error {
	res, err := client.Indices.Exists([]string{indexName})
	if err != nil {
		log.Errorf("检查索引是否存在时出错: %v", err)
		return err
	}
	defer res.Body.Close()

	if !res.IsError() && res.StatusCode == http.StatusOK {
		log.Infof("索引 '%s' 已存在", indexName)
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		log.Errorf("检查索引 '%s' 是否存在时收到意外的状态码: %d", indexName, res.StatusCode)
		return fmt.Errorf("检查索引是否存在时收到意外的状态码: %d", res.StatusCode)
	}
	if dims <= 0 {
		return fmt.Errorf("创建索引 '%s' 需要正的向量维度, 当前为 %d", indexName, dims)
	}

	created, err := client.Indices.Create(
		indexName,
		client.Indices.Create.WithBody(strings.NewReader(chunkIndexMapping(dims))),
	)
	if err != nil {
		log.Errorf("创建索引 '%s' 失败: %v", indexName, err)
		return err
	}
	defer created.Body.Close()
	if created.IsError() {
		log.Errorf("创建索引 '%s' 时 Elasticsearch 返回错误: %s", indexName, created.String())
		return errors.New("创建索引时 Elasticsearch 返回错误")
	}

	log.Infof("索引 '%s' 创建成功, dims: %d", indexName, dims)
	return nil
}

// SparseFeatureKey 返回词表下标在 rank_features 字段中的键。
func SparseFeatureKey(index uint32) string {
	return fmt.Sprintf("t%d", index)
}
