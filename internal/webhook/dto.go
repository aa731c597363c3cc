package webhook

// CreatePostShortLinkRequest announces a post authored in the admin bot.
// Empty *_name fields mean the post has no such asset.
type CreatePostShortLinkRequest struct {
	ID          int64  `json:"post_short_link_id" validate:"required,gt=0"`
	Name        string `json:"name" validate:"required,notblank,max=255"`
	Description string `json:"description" validate:"max=4096"`
	ImageName   string `json:"image_name"`
	ImageFileID string `json:"image_fid" validate:"required_with=ImageName"`
	FileName    string `json:"file_name"`
	FileFileID  string `json:"file_fid" validate:"required_with=FileName"`
}

// CreatePostShortLinkResponse carries the deep link of the post and its QR code as base64 PNG.
type CreatePostShortLinkResponse struct {
	Status   string `json:"status"`
	DeepLink string `json:"deep_link"`
	QRPNG    string `json:"qr_png"`
}

// SendMessageRequest is a manager reply coming from the CRM. The recipient is
// given directly or as the CRM chat bound to it.
type SendMessageRequest struct {
	ChatID       int64  `json:"tg_chat_id" validate:"required_without=CRMChatID"`
	Text         string `json:"text" validate:"required,notblank,max=4096"`
	CRMChatID    string `json:"crm_chat_id"`
	CRMMessageID string `json:"crm_message_id"`
}

// DeleteStateRequest resets a chat.
type DeleteStateRequest struct {
	ChatID int64 `json:"tg_chat_id" validate:"required,tgchatid"`
}

// SetWebhookResponse reports the registered URL.
type SetWebhookResponse struct {
	Status string `json:"status"`
	URL    string `json:"url"`
}
