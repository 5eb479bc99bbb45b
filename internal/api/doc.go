// Package api 處理 HTTP 請求路由和處理。
//
// 這個包包含了所有的 HTTP 與 WebSocket 處理器（handlers）。
// 它負責將客戶端請求轉換為適當的服務調用，並將結果轉換回響應；
// 房間狀態的推送則由服務層在變更完成後主動觸發。
package api
