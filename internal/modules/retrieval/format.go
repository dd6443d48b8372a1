package retrieval

import (
	"regexp"
	"strings"

	types "github.com/hedspi/phone-assistant/internal/domain"
)

const contactForPrice = "Liên hệ để trao đổi thêm"

var (
	punctuation = regexp.MustCompile(`[^\p{L}\p{M}\p{N}_\s]`)
	whitespace  = regexp.MustCompile(`\s+`)
)

// CleanQuery drops punctuation, collapses whitespace and lower-cases.
func CleanQuery(text string) string {
	text = punctuation.ReplaceAllString(text, "")
	text = whitespace.ReplaceAllString(text, " ")
	return strings.ToLower(strings.TrimSpace(text))
}

func field(label, text string) string {
	text = strings.ReplaceAll(text, "\n", ".")
	if text == "" {
		return ""
	}
	return label + " " + text + ".\n"
}

// FormatProduct flattens a hit into the labelled block handed to the LLM.
func FormatProduct(h types.ProductHit) string {
	price := h.Price
	if price == "" {
		price = contactForPrice
	}
	var b strings.Builder
	b.WriteString(field("Tên sản phẩm:", h.Title))
	b.WriteString(field("Ưu đãi:", h.Promotion))
	b.WriteString(field("Chi tiết sản phẩm:", h.Specs))
	b.WriteString(field("Giá tiền:", price))
	b.WriteString(field("Các màu điện thoại:", strings.Join(h.ColorOptions, ", ")))
	return b.String()
}

func FormatProducts(hits []types.ProductHit) []string {
	out := make([]string, 0, len(hits))
	for _, h := range hits {
		out = append(out, FormatProduct(h))
	}
	return out
}
