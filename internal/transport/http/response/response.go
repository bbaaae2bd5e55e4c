package response

import "github.com/gin-gonic/gin"

const (
	CodeOK                 = 0
	CodeBadRequest         = 40000
	CodeUsernameExists     = 40001
	CodeQueryEmpty         = 40002
	CodePayloadTooLarge    = 40003
	CodeLLMConfig          = 40004
	CodeUnauthorized       = 40100
	CodeInvalidCredentials = 40101
	CodeNotFound           = 40400
	CodeDocumentNotFound   = 40401
	CodeItemNotFound       = 40402
	CodeHistoryNotFound    = 40403
	CodeConflict           = 40900
	CodeDetailInFlight     = 40901
	CodeRateLimited        = 42900
	CodeInternalServer     = 50000
	CodeRemoteService      = 50200
	CodeMalformedResponse  = 50201
	CodeUnavailable        = 50300
)

type APIResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func OK(c *gin.Context, data interface{}) {
	c.JSON(200, APIResponse{
		Code:    CodeOK,
		Message: "ok",
		Data:    data,
	})
}

func Error(c *gin.Context, httpStatus, code int, message string) {
	c.JSON(httpStatus, APIResponse{
		Code:    code,
		Message: message,
	})
}
