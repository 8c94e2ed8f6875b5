package models

// OCRRequest POST /api/ocr 请求体
type OCRRequest struct {
	Img string `json:"img"` // base64 data URL
}

// OCRErrorResponse OCR失败时的响应体
type OCRErrorResponse struct {
	Error string `json:"error"`
}
