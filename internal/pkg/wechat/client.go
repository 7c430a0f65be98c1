// Package wechat wraps the mini-program login endpoint. The upstream is
// treated as an opaque HTTP contract.
package wechat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/luoxh/trainsys/internal/pkg/apperrors"
)

const sessionEndpoint = "https://api.weixin.qq.com/sns/jscode2session"

// Client exchanges wx.login codes for openids.
type Client struct {
	appID  string
	secret string
	client *http.Client
}

func NewClient(appID, secret string) *Client {
	return &Client{
		appID:  appID,
		secret: secret,
		client: &http.Client{Timeout: 8 * time.Second},
	}
}

// Configured reports whether mini-program credentials are present.
func (c *Client) Configured() bool {
	return c.appID != "" && c.secret != ""
}

type sessionResponse struct {
	Openid     string `json:"openid"`
	SessionKey string `json:"session_key"`
	ErrCode    int    `json:"errcode"`
	ErrMsg     string `json:"errmsg"`
}

// CodeToOpenid resolves a wx.login code to the user's openid.
func (c *Client) CodeToOpenid(ctx context.Context, code string) (string, error) {
	if !c.Configured() {
		return "", apperrors.ErrConfigError
	}

	query := url.Values{
		"appid":      {c.appID},
		"secret":     {c.secret},
		"js_code":    {code},
		"grant_type": {"authorization_code"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sessionEndpoint+"?"+query.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("building session request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling wechat session endpoint: %w", err)
	}
	defer resp.Body.Close()

	var session sessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return "", fmt.Errorf("decoding wechat session response: %w", err)
	}

	if session.ErrCode != 0 || session.Openid == "" {
		return "", apperrors.NewBadRequestError(fmt.Sprintf("微信登录失败: %s", session.ErrMsg))
	}
	return session.Openid, nil
}
