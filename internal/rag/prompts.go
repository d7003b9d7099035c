// Package rag 实现检索链路中依赖 LLM 与重排序模型的步骤：自查询元数据抽取、查询扩展与重排序。
package rag

import (
	"fmt"
	"strings"

	"github.com/johnpham4/legal-rag-llm/internal/model"
)

// ExpansionSeparator 分隔 LLM 返回的多个改写问题。
const ExpansionSeparator = "#next-question"

const expansionPrompt = `Bạn là trợ lý AI hỗ trợ tìm kiếm văn bản pháp luật. Nhiệm vụ của bạn là tạo ra %d
phiên bản khác nhau của câu hỏi người dùng để truy xuất các văn bản liên quan từ cơ sở dữ liệu vector.
Bằng cách tạo nhiều góc nhìn khác nhau về câu hỏi, bạn giúp người dùng vượt qua những hạn chế
của tìm kiếm dựa trên độ tương đồng khoảng cách.
Hãy cung cấp các câu hỏi thay thế được phân tách bởi '%s'.
Câu hỏi gốc: %s`

// ExpansionPrompt 要求 LLM 生成 n 个改写问题。
func ExpansionPrompt(question string, n int) string {
	return fmt.Sprintf(expansionPrompt, n, ExpansionSeparator, question)
}

// selfQueryExamples 是提示词中的少样本示例。
var selfQueryExamples = []struct {
	question       string
	documentType   string
	field          string
	documentNumber string
}{
	{"Điều 97 Bộ luật Lao động quy định về thời giờ làm việc?", "Luật", "Lao động", ""},
	{"Nghị định 86/2015/NĐ-CP về bảo hiểm xã hội", "Nghị định", "Lao động", "86/2015/NĐ-CP"},
	{"Quy định về thuế thu nhập cá nhân như thế nào?", "", "Thuế", ""},
	{"Thông tư 01/2021/TT-BCA về đăng ký cư trú", "Thông tư", "Hành chính", "01/2021/TT-BCA"},
	{"Quyền lợi của người lao động khi bị sa thải?", "", "Lao động", ""},
}

func jsonOrNull(s string) string {
	if s == "" {
		return "null"
	}
	return fmt.Sprintf("%q", s)
}

// SelfQueryPrompt 构造元数据抽取提示词，合法取值直接来自 model 中的封闭集合。
func SelfQueryPrompt(question string) string {
	var sb strings.Builder
	sb.WriteString("Bạn là trợ lý AI chuyên về pháp luật Việt Nam. Nhiệm vụ của bạn là trích xuất thông tin có cấu trúc từ câu hỏi của người dùng để tìm kiếm văn bản pháp luật chính xác hơn.\n\n")
	sb.WriteString("Hãy trích xuất 3 thông tin SAU (nếu có trong câu hỏi):\n\n")

	sb.WriteString("1. **document_type**: Loại văn bản - CHỈ chọn MỘT trong các giá trị:\n")
	for _, t := range model.DocumentTypes {
		if t == model.DocumentTypeLuat {
			fmt.Fprintf(&sb, "   • %q (bao gồm: Bộ luật, Luật)\n", string(t))
			continue
		}
		fmt.Fprintf(&sb, "   • %q\n", string(t))
	}

	sb.WriteString("\n2. **field**: Lĩnh vực - CHỈ chọn MỘT trong các giá trị:\n")
	for _, f := range model.LegalFields {
		fmt.Fprintf(&sb, "   • %q\n", string(f))
	}

	sb.WriteString("\n3. **document_number**: Số hiệu văn bản (VD: 45/2019/QH14, 86/2015/NĐ-CP, 01/2021/TT-BCA)\n\n")
	sb.WriteString("LƯU Ý:\n")
	sb.WriteString("- Nếu KHÔNG tìm thấy → để null\n")
	sb.WriteString("- document_type và field PHẢI khớp CHÍNH XÁC danh sách trên\n")
	sb.WriteString("- \"Bộ luật Lao động\" → document_type=\"Luật\", field=\"Lao động\"\n")
	sb.WriteString("- CHỈ trả về JSON, KHÔNG giải thích\n\n")
	sb.WriteString("Format:\n{\n    \"document_type\": \"...\",\n    \"field\": \"...\",\n    \"document_number\": \"...\"\n}\n\nVÍ DỤ:\n")

	for _, ex := range selfQueryExamples {
		fmt.Fprintf(&sb, "\nQUESTION: %s\nRESPONSE:\n{\n    \"document_type\": %s,\n    \"field\": %s,\n    \"document_number\": %s\n}\n",
			ex.question, jsonOrNull(ex.documentType), jsonOrNull(ex.field), jsonOrNull(ex.documentNumber))
	}

	fmt.Fprintf(&sb, "\n---\nUser question: %s\nResponse (JSON only):", question)
	return sb.String()
}

// AnswerPrompt 构造基于检索上下文的问答提示词。
func AnswerPrompt(question, context string) string {
	return fmt.Sprintf("Dựa vào ngữ cảnh sau để trả lời câu hỏi.\n\nNgữ cảnh:\n%s\n\nCâu hỏi: %s\n\nTrả lời:", context, question)
}

// FormatContext 将片段编号拼接为问答上下文。
func FormatContext(chunks []model.EmbeddedChunk) string {
	parts := make([]string, 0, len(chunks))
	for i, c := range chunks {
		parts = append(parts, fmt.Sprintf("Chunk %d:\nPlatform: %s\nType: %s\nContent: %s",
			i+1, c.PlatformOrDefault(), c.DocumentType, c.Content))
	}
	return strings.Join(parts, "\n\n")
}
