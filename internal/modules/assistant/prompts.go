package assistant

const Instructions = "Bạn là một nhân viên bán hàng điện thoại trong cửa hàng điện thoại di động Hedspi. " +
	"Nhiệm vụ của bạn là giúp khách hàng tìm chiếc điện thoại tốt nhất phù hợp với nhu cầu của họ."

const SummaryInstructions = "Based on the user's conversation history and their latest query that may " +
	"refer to context in the chat history, construct an independent query in Vietnamese that can be understood without the chat " +
	"history. Do not answer this query, just reconstruct it if necessary, and if there is not enough information to construct a new question, " +
	"keep the original question unchanged"

const historyDeleted = "History deleted successfully"

func rewritePrompt(history string) string {
	return "###The chat history is " + history + ". ### Output: reconstruct string"
}

const (
	shopInfoDescription    = "Trả lời các câu hỏi về cửa hàng Hedspi: địa chỉ, giờ mở cửa, số điện thoại liên hệ, chính sách bảo hành và đổi trả."
	webSearchDescription   = "Tìm kiếm thông tin trên internet cho câu hỏi không liên quan trực tiếp tới sản phẩm của cửa hàng, ví dụ tin tức công nghệ."
	productLinkDescription = "Lấy đường dẫn mua hàng của một sản phẩm cụ thể khi khách hàng muốn mua hoặc xem trang sản phẩm."
	generalDescription     = "Trả lời các câu hỏi chung và câu hỏi về sản phẩm điện thoại: giá, cấu hình, màu sắc, khuyến mãi."

	queryParamDescription       = "Full user's query"
	productNameParamDescription = "Name of the product to find a purchase link for"
)
