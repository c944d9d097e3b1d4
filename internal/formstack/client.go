package formstack

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"standup-formstack/internal/models"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Client Formstack API v2 客户端
type Client struct {
	httpClient *resty.Client
	baseURL    string
	token      string
	logger     *zap.Logger
}

// NewClient 创建 Formstack 客户端
// 上游调用不重试：表单元数据重复写入无害，但重复发帖不是幂等的
func NewClient(baseURL, token string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Accept", "application/json")

	return &Client{
		httpClient: client,
		baseURL:    baseURL,
		token:      token,
		logger:     logger,
	}
}

// HasToken 是否配置了 access token
func (c *Client) HasToken() bool {
	return c.token != ""
}

// FormAPIURL 表单的 API 根地址，如 https://www.formstack.com/api/v2/form/123
func (c *Client) FormAPIURL(formID string) string {
	return fmt.Sprintf("%s/form/%s", c.baseURL, formID)
}

// GetForm 获取表单元数据（url、timezone、fields）
func (c *Client) GetForm(ctx context.Context, formID string) (*models.Form, error) {
	if !c.HasToken() {
		return nil, models.ErrMissingCredential
	}
	apiURL := c.FormAPIURL(formID)

	c.logger.Info("Calling Formstack API: get form",
		zap.String("form_id", formID),
		zap.String("api_url", apiURL),
	)

	body, err := c.get(ctx, "get form", apiURL+".json", nil)
	if err != nil {
		return nil, err
	}

	var form models.Form
	if err := json.Unmarshal(body, &form); err != nil {
		c.logger.Error("Failed to unmarshal Formstack form", zap.String("form_id", formID), zap.Error(err))
		return nil, &models.UpstreamError{Op: "get form", Msg: "unparseable response", Err: err}
	}
	if form.Error != "" {
		c.logger.Error("Formstack API returned error",
			zap.String("form_id", formID),
			zap.String("error", form.Error),
		)
		return nil, &models.UpstreamError{Op: "get form", Msg: form.Error}
	}

	c.logger.Info("Retrieved form from Formstack API",
		zap.String("form_id", formID),
		zap.Int("field_count", len(form.Fields)),
	)
	return &form, nil
}

// GetSubmissions 获取 min_time 之后的提交记录
// min_time 由 Formstack 按美东时间解析
func (c *Client) GetSubmissions(ctx context.Context, apiBaseURL, minTime string) ([]models.Submission, error) {
	if !c.HasToken() {
		return nil, models.ErrMissingCredential
	}

	params := map[string]string{
		"data":        "true",
		"expand_data": "false",
		"min_time":    minTime,
	}

	c.logger.Info("Calling Formstack API: get submissions",
		zap.String("api_url", apiBaseURL),
		zap.String("min_time", minTime),
	)

	body, err := c.get(ctx, "get submissions", apiBaseURL+"/submission.json", params)
	if err != nil {
		return nil, err
	}

	var list models.SubmissionList
	if err := json.Unmarshal(body, &list); err != nil {
		c.logger.Error("Failed to unmarshal Formstack submissions", zap.Error(err))
		return nil, &models.UpstreamError{Op: "get submissions", Msg: "unparseable response", Err: err}
	}
	if list.Error != "" {
		c.logger.Error("Formstack API returned error", zap.String("error", list.Error))
		return nil, &models.UpstreamError{Op: "get submissions", Msg: list.Error}
	}

	c.logger.Info("Retrieved submissions from Formstack API",
		zap.Int("submission_count", len(list.Submissions)),
		zap.Int("total", list.Total),
	)
	return list.Submissions, nil
}

// get 执行 GET 并返回原始响应体；error 字段由调用方按具体结构解析
func (c *Client) get(ctx context.Context, op, url string, params map[string]string) ([]byte, error) {
	req := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("oauth_token", c.token)
	if len(params) > 0 {
		req.SetQueryParams(params)
	}

	resp, err := req.Get(url)
	if err != nil {
		c.logger.Error("Formstack API call failed", zap.String("op", op), zap.Error(err))
		return nil, &models.UpstreamError{Op: op, Err: err}
	}

	body := resp.Body()
	if resp.IsError() {
		// 错误响应通常也带 {"error": "..."}，尽量取出原因
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(body, &apiErr)
		c.logger.Error("Formstack API returned HTTP error",
			zap.String("op", op),
			zap.Int("status_code", resp.StatusCode()),
			zap.String("error", apiErr.Error),
		)
		return nil, &models.UpstreamError{Op: op, Status: resp.StatusCode(), Msg: apiErr.Error}
	}
	return body, nil
}
