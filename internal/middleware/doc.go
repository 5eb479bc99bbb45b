// Package middleware 提供了 HTTP 請求處理的中間件。
//
// 這個包包含了各種中間件函數，用於在 HTTP 請求處理過程中執行額外的操作。
// 目前提供跨域（CORS）設定，涵蓋一般請求與 WebSocket 握手。
package middleware
