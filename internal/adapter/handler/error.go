package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/model"
	"github.com/k1s0-platform/system-server-go-configdeploy/internal/usecase"
)

// エラーコード。
const (
	CodeValidationFailed = "SYS_CFGDEPLOY_VALIDATION_FAILED"
	CodeNotFound         = "SYS_CFGDEPLOY_NOT_FOUND"
	CodeConflict         = "SYS_CFGDEPLOY_CONFLICT"
	CodeIllegalState     = "SYS_CFGDEPLOY_ILLEGAL_STATE"
	CodeInternalError    = "SYS_CFGDEPLOY_INTERNAL_ERROR"
)

// ErrorResponse は統一エラーレスポンス。
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail はエラーの詳細情報。
type ErrorDetail struct {
	Code      string   `json:"code"`
	Message   string   `json:"message"`
	RequestID string   `json:"request_id"`
	Details   []string `json:"details"`
}

// WriteError は統一フォーマットのエラーレスポンスを書き込む。
func WriteError(c *gin.Context, statusCode int, code string, message string) {
	writeErrorWithDetails(c, statusCode, code, message, nil)
}

func writeErrorWithDetails(c *gin.Context, statusCode int, code, message string, details []string) {
	requestID, _ := c.Get("request_id")
	reqID, _ := requestID.(string)
	if details == nil {
		details = []string{}
	}

	c.JSON(statusCode, ErrorResponse{
		Error: ErrorDetail{
			Code:      code,
			Message:   message,
			RequestID: reqID,
			Details:   details,
		},
	})
}

// WriteBindError はリクエストボディ・クエリの解析失敗を 400 で返す。
func WriteBindError(c *gin.Context, err error) {
	writeErrorWithDetails(c, http.StatusBadRequest, CodeValidationFailed,
		"リクエストのバリデーションに失敗しました", []string{err.Error()})
}

// WriteUsecaseError はユースケースのエラーを HTTP ステータスとエラーコードに変換して書き込む。
func WriteUsecaseError(c *gin.Context, err error) {
	var validationErr *usecase.ValidationError
	var stateErr *usecase.IllegalStateTransitionError

	switch {
	case errors.As(err, &validationErr):
		writeErrorWithDetails(c, http.StatusUnprocessableEntity, CodeValidationFailed,
			"設定値の検証に失敗しました", validationErr.Errors)
	case errors.Is(err, usecase.ErrValidationFailed):
		WriteError(c, http.StatusBadRequest, CodeValidationFailed, err.Error())
	case errors.Is(err, usecase.ErrNotFound):
		WriteError(c, http.StatusNotFound, CodeNotFound, err.Error())
	case errors.Is(err, usecase.ErrVersionConflict):
		WriteError(c, http.StatusConflict, CodeConflict,
			"設定値が他のユーザーによって更新されています。最新のバージョンを取得してください")
	case errors.Is(err, usecase.ErrConfigAlreadyExists), errors.Is(err, usecase.ErrFlagAlreadyExists):
		WriteError(c, http.StatusConflict, CodeConflict, err.Error())
	case errors.As(err, &stateErr):
		writeErrorWithDetails(c, http.StatusConflict, CodeIllegalState, err.Error(),
			[]string{"from: " + string(stateErr.From), "to: " + string(stateErr.To)})
	case errors.Is(err, usecase.ErrIllegalStateTransition):
		WriteError(c, http.StatusConflict, CodeIllegalState, err.Error())
	case errors.Is(err, usecase.ErrEncryptionUnavailable):
		WriteError(c, http.StatusBadRequest, CodeValidationFailed, err.Error())
	default:
		WriteError(c, http.StatusInternalServerError, CodeInternalError, "内部エラーが発生しました")
	}
}

// actor はリクエストの操作者を返す。
// TODO: 認証ミドルウェア導入後はトークンのクレームから取得する。
func actor(c *gin.Context) string {
	if user := c.GetHeader("X-User-Email"); user != "" {
		return user
	}
	return "unknown"
}

// scopeFromPath はパスパラメータと tenant_id クエリからスコープを組み立てる。
func scopeFromPath(c *gin.Context) model.Scope {
	return model.Scope{
		Environment: c.Param("environment"),
		Application: c.Param("application"),
		TenantID:    c.Query("tenant_id"),
	}
}
