package dto

// Conversation filters accepted by the admin listing.
const (
	ChatListTypeAll     = "all"
	ChatListTypeAdmin   = "admin"
	ChatListTypeReport  = "report"
	ChatListTypeCompany = "company"
)

// PaginationMeta captures pagination metadata for list responses.
type PaginationMeta struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
}

// NewPaginationMeta computes the page count for the given totals.
func NewPaginationMeta(page, pageSize int, total int64) PaginationMeta {
	totalPages := 0
	if pageSize > 0 {
		totalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	return PaginationMeta{Page: page, PageSize: pageSize, TotalItems: total, TotalPages: totalPages}
}

// AdminChatListRequest defines filters for the admin conversation listing.
type AdminChatListRequest struct {
	Page     int    `query:"page" validate:"omitempty,min=1"`
	PageSize int    `query:"page_size" validate:"omitempty,min=1,max=100"`
	Type     string `query:"type" validate:"omitempty,oneof=all admin report company"`
	UserID   string `query:"user_id" validate:"omitempty,max=36"`
}

// AdminChatSummary is one row of the admin conversation listing.
type AdminChatSummary struct {
	ConversationResponse
	LastMessage        *ChatMessageResponse `json:"last_message,omitempty"`
	LastMessagePreview string               `json:"last_message_preview,omitempty"`
	MessageCount       int64                `json:"message_count"`
	Online             bool                 `json:"online"`
}

// AdminChatListResponse wraps a page of conversations.
type AdminChatListResponse struct {
	Items      []AdminChatSummary `json:"items"`
	Pagination PaginationMeta     `json:"pagination"`
}
