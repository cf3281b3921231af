package domain

type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"error"`
	Code    int    `json:"code"`
}
