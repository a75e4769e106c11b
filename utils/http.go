/*
 * Copyright 2022 The Go Authors<36625090@qq.com>. All rights reserved.
 * Use of this source code is governed by a MIT-style
 * license that can be found in the LICENSE file.
 */

package utils

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// UnknownClient 无法识别来源的客户端共用的标识
const UnknownClient = "unknown"

var client = &http.Client{Timeout: 10 * time.Second}

// GetRemoteAddr resolves the client identifier used for rate limiting:
// first X-Forwarded-For entry, then X-Real-IP, then UnknownClient.
func GetRemoteAddr(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if realIp := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIp != "" {
		return realIp
	}
	return UnknownClient
}

// PerformHTTPRequest 执行请求, 非 200 时重试
func PerformHTTPRequest(newReq func() (*http.Request, error), retryCounts ...int) (*http.Response, error) {

	// 设置重试次数
	retryCount := 3
	if len(retryCounts) > 0 && retryCounts[0] > 0 {
		retryCount = retryCounts[0]
	}
	var err error
	var resp *http.Response
	for i := 0; i < retryCount; i++ {
		var req *http.Request
		req, err = newReq()
		if err != nil {
			return nil, err
		}
		resp, err = client.Do(req)
		if err == nil && resp.StatusCode == http.StatusOK {
			return resp, nil
		}
		if resp != nil && i < retryCount-1 {
			resp.Body.Close()
		}
		// 如果不是最后一次重试，等待一段时间后重试
		if i < retryCount-1 {
			if ctxErr := req.Context().Err(); ctxErr != nil {
				return nil, ctxErr
			}
			time.Sleep(300 * time.Millisecond)
		}
	}

	if err != nil {
		return nil, fmt.Errorf("failed after %d attempts. Last error: %v", retryCount, err)
	}

	// 最后一次的非 200 响应交给调用方处理
	return resp, nil
}
